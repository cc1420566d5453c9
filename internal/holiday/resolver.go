package holiday

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "coursecal/internal/log"
)

// Origin tells where a Sets value came from.
type Origin string

const (
	OriginAPI    Origin = "api"
	OriginCache  Origin = "cache"
	OriginStatic Origin = "static"
)

// ErrAPI is returned when the service answers with a non-zero code.
var ErrAPI = errors.New("holiday api error")

// Options configures a Resolver.
type Options struct {
	// BaseURL of the service, e.g. "https://timor.tech/api/holiday".
	// Empty disables remote lookup.
	BaseURL string
	// Timeout bounds the whole lookup (all requests of one Resolve call).
	Timeout time.Duration
	// CacheDir stores the last good response per window. Empty disables it.
	CacheDir string
	// FallbackYear is used for years without a built-in table.
	FallbackYear int
}

// Resolver looks up holidays and make-up workdays once per run.
type Resolver struct {
	client *http.Client
	opts   Options
}

// NewResolver creates a Resolver with a plain HTTP client.
func NewResolver(opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.FallbackYear == 0 {
		opts.FallbackYear = 2025
	}
	return &Resolver{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// apiResponse is the JSON shape of the holiday service.
type apiResponse struct {
	Code    int               `json:"code"`
	Msg     string            `json:"msg"`
	Holiday map[string]apiDay `json:"holiday"`
}

type apiDay struct {
	Holiday bool   `json:"holiday"`
	Work    bool   `json:"work"`
	Name    string `json:"name"`
	Date    string `json:"date"`
}

// cacheEntry is the on-disk metadata stored next to a cached body.
type cacheEntry struct {
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resolve returns the holiday and workday sets for [start, end]. It never
// fails: the range endpoint is tried first, then the per-year endpoint, then
// the disk cache, then the built-in tables. Nothing is retried.
func (r *Resolver) Resolve(ctx context.Context, start, end time.Time) (*Sets, Origin) {
	if r.opts.BaseURL == "" {
		appLog.Info("holiday lookup disabled; using built-in table")
		return Static(start, end, r.opts.FallbackYear), OriginStatic
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	base := strings.TrimRight(r.opts.BaseURL, "/")
	rangeURL := fmt.Sprintf("%s/range/%s/%s", base, start.Format("20060102"), end.Format("20060102"))

	appLog.Info("holiday lookup start", "url", rangeURL)
	sets, body, err := r.fetch(ctx, rangeURL)
	if err == nil {
		r.saveCache(rangeURL, body)
		out := sets.within(start, end)
		appLog.Info("holiday lookup success", "holidays", len(out.holidays), "workdays", len(out.workdays))
		return out, OriginAPI
	}
	appLog.Error("holiday range lookup failed", err, "url", rangeURL)

	if sets, err := r.fetchYears(ctx, base, start, end); err == nil {
		out := sets.within(start, end)
		appLog.Info("holiday lookup success (by year)", "holidays", len(out.holidays), "workdays", len(out.workdays))
		return out, OriginAPI
	} else if !errors.Is(err, context.DeadlineExceeded) {
		appLog.Error("holiday year lookup failed", err)
	}

	if body, err := r.loadCache(rangeURL); err == nil {
		if sets, err := decode(body); err == nil {
			appLog.Info("holiday lookup using cached response", "url", rangeURL)
			return sets.within(start, end), OriginCache
		}
	}

	appLog.Warn("holiday lookup falling back to built-in table", "known_years", KnownYears())
	return Static(start, end, r.opts.FallbackYear), OriginStatic
}

// fetchYears asks the per-year endpoint for every year of the window.
func (r *Resolver) fetchYears(ctx context.Context, base string, start, end time.Time) (*Sets, error) {
	out := NewSets(nil, nil)
	for y := start.Year(); y <= end.Year(); y++ {
		sets, _, err := r.fetch(ctx, fmt.Sprintf("%s/year/%d", base, y))
		if err != nil {
			return nil, err
		}
		for d := range sets.holidays {
			out.addHoliday(d)
		}
		for d := range sets.workdays {
			out.addWorkday(d)
		}
	}
	return out, nil
}

func (r *Resolver) fetch(ctx context.Context, url string) (*Sets, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	// The public service rejects the default Go user agent.
	req.Header.Set("User-Agent", "coursecal/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	sets, err := decode(body)
	if err != nil {
		return nil, nil, err
	}
	return sets, body, nil
}

// decode parses a service payload. Keys are ISO dates or "MM-DD"; in the
// latter case the "date" field carries the full date. holiday=true marks a
// day off; holiday=false or work=true marks a make-up workday.
func decode(body []byte) (*Sets, error) {
	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode holiday payload: %w", err)
	}
	if payload.Code != 0 {
		return nil, fmt.Errorf("%w: code=%d msg=%q", ErrAPI, payload.Code, payload.Msg)
	}

	out := NewSets(nil, nil)
	for k, day := range payload.Holiday {
		date := day.Date
		if date == "" {
			date = k
		}
		t, err := time.Parse(dateLayout, date)
		if err != nil {
			appLog.Debug("holiday payload: skipping entry without full date", "key", k)
			continue
		}
		if day.Holiday && !day.Work {
			out.addHoliday(key(t))
		} else {
			out.addWorkday(key(t))
		}
	}
	return out, nil
}

func (r *Resolver) cachePath(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(r.opts.CacheDir, hex.EncodeToString(sum[:8]))
}

func (r *Resolver) loadCache(url string) ([]byte, error) {
	if r.opts.CacheDir == "" {
		return nil, errors.New("cache disabled")
	}
	return os.ReadFile(filepath.Join(r.cachePath(url), "body.json"))
}

// saveCache writes the body first so meta never points at a missing body.
func (r *Resolver) saveCache(url string, body []byte) {
	if r.opts.CacheDir == "" {
		return
	}
	dir := r.cachePath(url)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		appLog.Error("holiday cache mkdir failed", err, "dir", dir)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "body.json"), body, 0o600); err != nil {
		appLog.Error("holiday cache save failed", err, "dir", dir)
		return
	}
	meta, err := json.MarshalIndent(cacheEntry{URL: url, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), meta, 0o600); err != nil {
		appLog.Error("holiday cache meta save failed", err, "dir", dir)
	}
}
