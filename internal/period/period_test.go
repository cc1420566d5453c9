package period

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSpan(t *testing.T) {
	tbl := Default()

	start, end, err := tbl.Span(3, 4)
	require.NoError(t, err)
	assert.Equal(t, Clock{10, 20}, start)
	assert.Equal(t, Clock{12, 10}, end)

	start, end, err = tbl.Span(1, 8)
	require.NoError(t, err)
	assert.Equal(t, "08:00", start.String())
	assert.Equal(t, "18:10", end.String())
}

func TestUnknownPeriod(t *testing.T) {
	tbl := Default()

	_, _, err := tbl.Span(3, 14)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPeriod))

	_, err = tbl.Start(0)
	assert.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestNewTableRejectsBadEntries(t *testing.T) {
	_, err := NewTable([]Entry{{1, Clock{9, 0}, Clock{8, 0}}})
	assert.Error(t, err)

	_, err = NewTable([]Entry{
		{1, Clock{8, 0}, Clock{8, 50}},
		{1, Clock{9, 0}, Clock{9, 50}},
	})
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, Clock{7, 5}, c)

	for _, bad := range []string{"", "7", "25:00", "10:61", "ab:cd"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestClockOn(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	day := time.Date(2025, 9, 9, 23, 59, 0, 0, loc)
	got := Clock{10, 20}.On(day)
	assert.Equal(t, time.Date(2025, 9, 9, 10, 20, 0, 0, loc), got)
}
