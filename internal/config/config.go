package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"coursecal/internal/period"
)

// Strategy names accepted by the expander.
const (
	StrategyAuto       = "auto"
	StrategyOccurrence = "occurrence"
	StrategyRRule      = "rrule"
)

// PeriodConfig is one row of the period-time table.
type PeriodConfig struct {
	Index int    `yaml:"index" json:"index"`
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// SheetConfig locates the timetable grid inside the spreadsheet.
type SheetConfig struct {
	// Name of the worksheet. Empty means the active sheet.
	Name string `yaml:"name" json:"name"`
	// FirstRow / LastRow are 1-based inclusive row bounds of the period rows.
	FirstRow int `yaml:"first_row" json:"first_row"`
	LastRow  int `yaml:"last_row" json:"last_row"`
	// HeaderColumn holds the period indicator of each row (e.g. "第3-4节").
	HeaderColumn string `yaml:"header_column" json:"header_column"`
	// FirstDayColumn is Monday's column; the next six columns follow.
	FirstDayColumn string `yaml:"first_day_column" json:"first_day_column"`
}

// HolidayConfig controls the holiday/workday lookup.
type HolidayConfig struct {
	// APIURL is the base of the holiday service; "/range/..." and
	// "/year/..." are appended.
	APIURL         string `yaml:"api_url" json:"api_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	// CacheDir keeps the last good response per range. Empty disables it.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// FallbackYear is the static table used for years without one.
	FallbackYear int `yaml:"fallback_year" json:"fallback_year"`
}

// LabSafetyConfig describes the lab-safety course and its fixed rooms.
type LabSafetyConfig struct {
	Name             string `yaml:"name" json:"name"`
	NoLocationMarker string `yaml:"no_location_marker" json:"no_location_marker"`
	HallMarker       string `yaml:"hall_marker" json:"hall_marker"`
	DefaultHall      string `yaml:"default_hall" json:"default_hall"`
	DefaultRoom      string `yaml:"default_room" json:"default_room"`
	LastPeriod       int    `yaml:"last_period" json:"last_period"`
}

// MarkerConfig lists substrings that drive location and travel decisions.
type MarkerConfig struct {
	Online     []string `yaml:"online" json:"online"`
	Experiment []string `yaml:"experiment" json:"experiment"`
	Distant    []string `yaml:"distant" json:"distant"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the subscription server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Institution prefixes every physical location ("<institution>-<room>").
	Institution string `yaml:"institution" json:"institution"`
	// OnlineLabel replaces the location of courses without a room.
	OnlineLabel string `yaml:"online_label" json:"online_label"`
	// UnknownLocation is used when a cell carries no location token.
	UnknownLocation string `yaml:"unknown_location" json:"unknown_location"`

	// Timezone is the IANA zone every event is pinned to.
	Timezone string `yaml:"timezone" json:"timezone"`

	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// TravelMinutes is the base reminder lead before each class.
	TravelMinutes int `yaml:"travel_minutes" json:"travel_minutes"`

	// Strategy is one of "auto", "occurrence", "rrule".
	Strategy string `yaml:"strategy" json:"strategy"`

	// Listen is the HTTP listen address of `coursecal serve`.
	Listen string `yaml:"listen" json:"listen"`
	// RefreshCron is a cron-style schedule (e.g. "0 3 * * *") used by
	// `coursecal serve` to regenerate the calendar.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Periods   []PeriodConfig  `yaml:"periods" json:"periods"`
	Sheet     SheetConfig     `yaml:"sheet" json:"sheet"`
	Holiday   HolidayConfig   `yaml:"holiday" json:"holiday"`
	LabSafety LabSafetyConfig `yaml:"lab_safety" json:"lab_safety"`
	Markers   MarkerConfig    `yaml:"markers" json:"markers"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

func defaultPeriods() []PeriodConfig {
	entries := period.DefaultEntries()
	out := make([]PeriodConfig, 0, len(entries))
	for _, e := range entries {
		out = append(out, PeriodConfig{Index: e.Index, Start: e.Start.String(), End: e.End.String()})
	}
	return out
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Institution == "" {
		c.Institution = "南方科技大学"
	}
	if c.OnlineLabel == "" {
		c.OnlineLabel = "线上课程"
	}
	if c.UnknownLocation == "" {
		c.UnknownLocation = "未知地点"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Shanghai"
	}
	if c.CalendarName == "" {
		c.CalendarName = "课程表"
	}
	if c.TravelMinutes < 0 {
		c.TravelMinutes = 0
	}
	if c.TravelMinutes == 0 {
		c.TravelMinutes = 30
	}
	switch c.Strategy {
	case StrategyAuto, StrategyOccurrence, StrategyRRule:
	default:
		c.Strategy = StrategyAuto
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 3 * * *"
	}
	if len(c.Periods) == 0 {
		c.Periods = defaultPeriods()
	}

	if c.Sheet.FirstRow <= 0 {
		c.Sheet.FirstRow = 4
	}
	if c.Sheet.LastRow < c.Sheet.FirstRow {
		c.Sheet.LastRow = c.Sheet.FirstRow + 9
	}
	if c.Sheet.HeaderColumn == "" {
		c.Sheet.HeaderColumn = "A"
	}
	if c.Sheet.FirstDayColumn == "" {
		c.Sheet.FirstDayColumn = "B"
	}

	if c.Holiday.APIURL == "" {
		c.Holiday.APIURL = "https://timor.tech/api/holiday"
	}
	if c.Holiday.TimeoutSeconds <= 0 {
		c.Holiday.TimeoutSeconds = 10
	}
	if c.Holiday.FallbackYear == 0 {
		c.Holiday.FallbackYear = 2025
	}

	if c.LabSafety.Name == "" {
		c.LabSafety.Name = "实验室安全学"
	}
	if c.LabSafety.NoLocationMarker == "" {
		c.LabSafety.NoLocationMarker = "无地点"
	}
	if c.LabSafety.HallMarker == "" {
		c.LabSafety.HallMarker = "报告厅"
	}
	if c.LabSafety.DefaultHall == "" {
		c.LabSafety.DefaultHall = "第一科研楼报告厅"
	}
	if c.LabSafety.DefaultRoom == "" {
		c.LabSafety.DefaultRoom = "第一科研楼101"
	}
	if c.LabSafety.LastPeriod <= 0 {
		c.LabSafety.LastPeriod = 8
	}

	if c.Markers.Online == nil {
		c.Markers.Online = []string{"无地点", "线上", "网络"}
	}
	if c.Markers.Experiment == nil {
		c.Markers.Experiment = []string{"实验", "实践"}
	}
	if c.Markers.Distant == nil {
		c.Markers.Distant = []string{"第一科研楼", "荔园"}
	}
}

// PeriodTable converts the configured periods into an immutable table.
func (c *Config) PeriodTable() (*period.Table, error) {
	entries := make([]period.Entry, 0, len(c.Periods))
	for _, p := range c.Periods {
		start, err := period.ParseClock(p.Start)
		if err != nil {
			return nil, fmt.Errorf("config: period %d: %w", p.Index, err)
		}
		end, err := period.ParseClock(p.End)
		if err != nil {
			return nil, fmt.Errorf("config: period %d: %w", p.Index, err)
		}
		entries = append(entries, period.Entry{Index: p.Index, Start: start, End: end})
	}
	return period.NewTable(entries)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file in the same directory, then rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".coursecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
