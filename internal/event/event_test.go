package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecal/internal/model"
)

func testPolicy(base int) TravelPolicy {
	return TravelPolicy{
		BaseMinutes:       base,
		ExperimentMarkers: []string{"实验", "实践"},
		DistantMarkers:    []string{"第一科研楼", "荔园"},
	}
}

func TestTravelPolicy(t *testing.T) {
	p := testPolicy(30)

	cases := []struct {
		name      string
		location  string
		labSafety bool
		want      int
	}{
		{"实验室安全学", "南方科技大学-第一科研楼101", true, 60},
		{"大学物理实验", "南方科技大学-荔园1栋", false, 45},
		{"工程实践", "南方科技大学-一教", false, 45},
		{"高等数学", "南方科技大学-荔园1栋", false, 39},
		{"高等数学", "南方科技大学-第一科研楼202", false, 39},
		{"高等数学", "南方科技大学-一教101", false, 30},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, p.Minutes(tc.name, tc.location, tc.labSafety), tc.name+"@"+tc.location)
	}

	assert.Equal(t, 0, testPolicy(0).Minutes("大学物理实验", "", false))
	assert.Equal(t, 13, testPolicy(10).Minutes("高等数学", "荔园", false))
}

func TestBuild(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	b := NewBuilder()
	rec := &model.Recurrence{Interval: 2, Until: time.Date(2025, 12, 30, 23, 59, 59, 0, loc)}

	ev, err := b.Build(Spec{
		Name:          "信号与系统",
		Location:      "南方科技大学-1教101",
		Start:         time.Date(2025, 9, 23, 10, 20, 0, 0, loc),
		End:           time.Date(2025, 9, 23, 12, 10, 0, 0, loc),
		Recurrence:    rec,
		TravelMinutes: 30,
	})
	require.NoError(t, err)

	_, err = uuid.Parse(ev.UID)
	assert.NoError(t, err)
	assert.Equal(t, "信号与系统", ev.Summary)
	assert.Equal(t, 30, ev.ReminderMinutes)
	assert.Equal(t, "出发前往南方科技大学-1教101的时间到了", ev.ReminderText)
	assert.Same(t, rec, ev.Recurrence)
	assert.False(t, ev.Created.IsZero())

	other, err := b.Build(Spec{Name: "x", Start: ev.Start, End: ev.End})
	require.NoError(t, err)
	assert.NotEqual(t, ev.UID, other.UID)
}

func TestBuildRejects(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	start := time.Date(2025, 9, 23, 10, 20, 0, 0, loc)
	b := NewBuilder()

	_, err := b.Build(Spec{Name: " ", Start: start, End: start.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = b.Build(Spec{Name: "a", Start: start, End: start})
	assert.ErrorIs(t, err, ErrBadTimes)

	_, err = b.Build(Spec{Name: "a", Start: start, End: start.Add(20 * time.Hour)})
	assert.ErrorIs(t, err, ErrBadTimes)

	_, err = b.Build(Spec{Name: "a", Start: start, End: start.Add(time.Hour), TravelMinutes: -1})
	assert.ErrorIs(t, err, ErrNegativeLead)
}
