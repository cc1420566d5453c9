package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "南方科技大学", cfg.Institution)
	assert.Equal(t, 30, cfg.TravelMinutes)
	assert.Equal(t, StrategyAuto, cfg.Strategy)
	assert.Len(t, cfg.Periods, 11)

	info, err := os.Stat(path)
	require.NoError(t, err, "expected config file to be created")
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Institution = "Test University"
	cfg.TravelMinutes = 15
	cfg.Strategy = StrategyOccurrence
	cfg.Markers.Distant = []string{"North Campus"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestNormalizePartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("travel_minutes: 20\nstrategy: bogus\nsheet:\n  first_row: 2\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.TravelMinutes)
	assert.Equal(t, StrategyAuto, cfg.Strategy)
	assert.Equal(t, 2, cfg.Sheet.FirstRow)
	assert.Equal(t, 11, cfg.Sheet.LastRow)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone)
}

func TestLoadParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("periods: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPeriodTable(t *testing.T) {
	cfg := DefaultConfig()
	tbl, err := cfg.PeriodTable()
	require.NoError(t, err)

	start, end, err := tbl.Span(3, 4)
	require.NoError(t, err)
	assert.Equal(t, "10:20", start.String())
	assert.Equal(t, "12:10", end.String())

	cfg.Periods = []PeriodConfig{{Index: 1, Start: "8h", End: "09:00"}}
	_, err = cfg.PeriodTable()
	assert.Error(t, err)
}
