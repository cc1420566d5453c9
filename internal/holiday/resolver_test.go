package holiday

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shanghai = time.FixedZone("CST", 8*3600)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, shanghai)
}

func TestResolveFromAPI(t *testing.T) {
	payload := `{
		"code": 0,
		"holiday": {
			"2025-10-01": {"holiday": true, "name": "国庆节"},
			"10-02": {"holiday": true, "name": "国庆节", "date": "2025-10-02"},
			"2025-09-28": {"holiday": false, "name": "国庆节前补班"},
			"2025-10-11": {"holiday": false, "work": true},
			"2026-05-01": {"holiday": true}
		}
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/range/20250908/20260118", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(payload))
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	r := NewResolver(Options{BaseURL: server.URL, CacheDir: cacheDir})
	sets, origin := r.Resolve(context.Background(), day(2025, 9, 8), day(2026, 1, 18))

	assert.Equal(t, OriginAPI, origin)
	assert.Equal(t, []string{"2025-10-01", "2025-10-02"}, sets.Holidays())
	assert.Equal(t, []string{"2025-09-28", "2025-10-11"}, sets.Workdays())
	assert.True(t, sets.IsHoliday(day(2025, 10, 1)))
	assert.True(t, sets.IsWorkday(day(2025, 9, 28)))
	assert.False(t, sets.IsHoliday(day(2026, 5, 1)), "dates outside the window are dropped")
}

func TestResolveNonZeroCodeFallsBackToStatic(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"code": 1, "msg": "rate limited"}`))
	}))
	defer server.Close()

	r := NewResolver(Options{BaseURL: server.URL})
	sets, origin := r.Resolve(context.Background(), day(2025, 9, 8), day(2026, 1, 18))

	assert.Equal(t, OriginStatic, origin)
	assert.True(t, sets.IsHoliday(day(2025, 10, 1)))
	assert.True(t, sets.IsWorkday(day(2025, 10, 11)))
	assert.False(t, sets.IsHoliday(day(2025, 5, 1)), "static table is clipped to the window")
	// one range request, then the per-year lookup stops at its first failure
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestResolveUsesCacheOnFailure(t *testing.T) {
	var down atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"code":0,"holiday":{"2025-11-11":{"holiday":true}}}`))
	}))
	defer server.Close()

	r := NewResolver(Options{BaseURL: server.URL, CacheDir: t.TempDir()})
	_, origin := r.Resolve(context.Background(), day(2025, 9, 8), day(2025, 12, 31))
	require.Equal(t, OriginAPI, origin)

	down.Store(true)
	sets, origin := r.Resolve(context.Background(), day(2025, 9, 8), day(2025, 12, 31))
	assert.Equal(t, OriginCache, origin)
	assert.True(t, sets.IsHoliday(day(2025, 11, 11)))
}

func TestResolveMalformedAndUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	_, origin := NewResolver(Options{BaseURL: server.URL}).Resolve(context.Background(), day(2024, 9, 2), day(2024, 12, 31))
	assert.Equal(t, OriginStatic, origin)

	unreachable := NewResolver(Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	sets, origin := unreachable.Resolve(context.Background(), day(2024, 9, 2), day(2024, 12, 31))
	assert.Equal(t, OriginStatic, origin)
	assert.True(t, sets.IsHoliday(day(2024, 9, 16)))
	assert.True(t, sets.IsWorkday(day(2024, 9, 29)))
}

func TestResolveTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	r := NewResolver(Options{BaseURL: server.URL, Timeout: 100 * time.Millisecond})
	start := time.Now()
	_, origin := r.Resolve(context.Background(), day(2025, 2, 17), day(2025, 6, 15))
	assert.Equal(t, OriginStatic, origin)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResolveDisabled(t *testing.T) {
	sets, origin := NewResolver(Options{}).Resolve(context.Background(), day(2025, 2, 17), day(2025, 6, 15))
	assert.Equal(t, OriginStatic, origin)
	assert.True(t, sets.IsHoliday(day(2025, 5, 1)))
	assert.True(t, sets.IsWorkday(day(2025, 4, 27)))
}

func TestStaticUnknownYear(t *testing.T) {
	sets := Static(day(2030, 9, 2), day(2030, 12, 31), 2025)
	// solar holidays carry over from the fallback table
	assert.True(t, sets.IsHoliday(day(2030, 10, 1)))
	assert.False(t, sets.IsHoliday(day(2025, 10, 1)))
	for _, d := range sets.Holidays() {
		assert.True(t, strings.HasPrefix(d, "2030-"), d)
	}
}

func TestNilSets(t *testing.T) {
	var s *Sets
	assert.False(t, s.IsHoliday(day(2025, 1, 1)))
	assert.False(t, s.IsWorkday(day(2025, 1, 1)))
}
