package calendar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecal/internal/model"
)

var shanghai = time.FixedZone("CST", 8*3600)

func sampleCollection() *Collection {
	created := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	c := New("课程表", "Asia/Shanghai")
	c.Add(model.DatedEvent{
		UID:             "11111111-1111-4111-8111-111111111111",
		Summary:         "信号与系统",
		Location:        "南方科技大学-1教101",
		Start:           time.Date(2025, 9, 23, 10, 20, 0, 0, shanghai),
		End:             time.Date(2025, 9, 23, 12, 10, 0, 0, shanghai),
		ReminderMinutes: 30,
		ReminderText:    "出发前往南方科技大学-1教101的时间到了",
		Recurrence: &model.Recurrence{
			Interval: 2,
			Until:    time.Date(2025, 12, 30, 23, 59, 59, 0, shanghai),
			ExDates:  []time.Time{time.Date(2025, 10, 7, 10, 20, 0, 0, shanghai)},
		},
		Created: created,
	})
	c.Add(model.DatedEvent{
		UID:             "22222222-2222-4222-8222-222222222222",
		Summary:         "实验室安全学",
		Location:        "线上课程",
		Start:           time.Date(2025, 11, 29, 8, 0, 0, 0, shanghai),
		End:             time.Date(2025, 11, 29, 9, 50, 0, 0, shanghai),
		ReminderMinutes: 60,
		ReminderText:    "出发前往线上课程的时间到了",
		Created:         created,
	})
	return c
}

func TestRender(t *testing.T) {
	out, err := sampleCollection().Render()
	require.NoError(t, err)

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"X-WR-CALNAME:课程表",
		"DTSTART;TZID=Asia/Shanghai:20250923T102000",
		"DTEND;TZID=Asia/Shanghai:20250923T121000",
		"FREQ=WEEKLY",
		"UNTIL=20251230T155959Z",
		"INTERVAL=2",
		"EXDATE;TZID=Asia/Shanghai:20251007T102000",
		"DTSTART;TZID=Asia/Shanghai:20251129T080000",
		"TRIGGER:-PT30M",
		"TRIGGER:-PT60M",
		"ACTION:DISPLAY",
		"END:VCALENDAR",
	} {
		assert.Contains(t, out, want)
	}

	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VALARM"))
	assert.Equal(t, 1, strings.Count(out, "RRULE"), "one-off events carry no rule")

	first := strings.Index(out, "UID:11111111")
	second := strings.Index(out, "UID:22222222")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second, "insertion order is kept")
}

func TestRenderWeeklyRuleHasNoInterval(t *testing.T) {
	c := New("课程表", "Asia/Shanghai")
	c.Add(model.DatedEvent{
		UID:        "33333333-3333-4333-8333-333333333333",
		Summary:    "高等数学",
		Start:      time.Date(2025, 9, 8, 8, 0, 0, 0, shanghai),
		End:        time.Date(2025, 9, 8, 9, 50, 0, 0, shanghai),
		Recurrence: &model.Recurrence{Interval: 1, Until: time.Date(2025, 12, 29, 23, 59, 59, 0, shanghai)},
	})
	out, err := c.Render()
	require.NoError(t, err)
	assert.Contains(t, out, "UNTIL=20251229T155959Z")
	assert.NotContains(t, out, "INTERVAL")
	assert.NotContains(t, out, "EXDATE")
}

func TestAddKeepsDuplicates(t *testing.T) {
	c := New("课程表", "Asia/Shanghai")
	ev := model.DatedEvent{UID: "x", Summary: "a"}
	c.Add(ev)
	c.Add(ev)
	assert.Equal(t, 2, c.Len())

	events := c.Events()
	events[0].Summary = "changed"
	assert.Equal(t, "a", c.Events()[0].Summary)
}

func TestRenderBadTimezone(t *testing.T) {
	_, err := New("课程表", "Mars/Olympus").Render()
	assert.Error(t, err)
}

func TestPersist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	c := sampleCollection()

	path, err := c.Persist(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "课程表.ics"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := c.Render()
	require.NoError(t, err)
	assert.Equal(t, want, string(body))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	_, err = New("a/b", "Asia/Shanghai").Persist(dir)
	assert.ErrorIs(t, err, ErrBadName)
	_, err = New("", "Asia/Shanghai").Persist(dir)
	assert.ErrorIs(t, err, ErrBadName)
}
