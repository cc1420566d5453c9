package cell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecal/internal/model"
	"coursecal/internal/period"
)

func testParser() *Parser {
	return NewParser(period.Default(), Options{
		Institution:     "南方科技大学",
		OnlineLabel:     "线上课程",
		UnknownLocation: "未知地点",
		OnlineMarkers:   []string{"无地点", "线上"},
		LabSafety: LabSafety{
			Name:             "实验室安全学",
			NoLocationMarker: "无地点",
			HallMarker:       "报告厅",
			DefaultHall:      "第一科研楼报告厅",
			DefaultRoom:      "第一科研楼101",
			LastPeriod:       8,
		},
	})
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("[3-17单周][1教101][3-4节]")
	require.Len(t, tokens, 3)

	assert.Equal(t, TokenWeek, tokens[0].Kind)
	assert.Equal(t, []model.WeekRange{{Start: 3, End: 17}}, tokens[0].Weeks)
	assert.Equal(t, model.OddWeeks, tokens[0].Parity)

	assert.Equal(t, TokenText, tokens[1].Kind)
	assert.Equal(t, "1教101", tokens[1].Raw)

	assert.Equal(t, TokenPeriod, tokens[2].Kind)
	assert.Equal(t, model.PeriodRange{Start: 3, End: 4}, tokens[2].Periods)
}

func TestTokenizeVariants(t *testing.T) {
	cases := []struct {
		in     string
		weeks  []model.WeekRange
		parity model.Parity
	}{
		{"[12周]", []model.WeekRange{{Start: 12, End: 12}}, model.EveryWeek},
		{"[2-16双周]", []model.WeekRange{{Start: 2, End: 16}}, model.EvenWeeks},
		{"[2-16(双)周]", []model.WeekRange{{Start: 2, End: 16}}, model.EvenWeeks},
		{"【1-4,6,9-12周】", []model.WeekRange{{Start: 1, End: 4}, {Start: 6, End: 6}, {Start: 9, End: 12}}, model.EveryWeek},
		{"［３－１７单周］", []model.WeekRange{{Start: 3, End: 17}}, model.OddWeeks},
	}
	for _, tc := range cases {
		tokens := Tokenize(tc.in)
		require.Len(t, tokens, 1, tc.in)
		assert.Equal(t, TokenWeek, tokens[0].Kind, tc.in)
		assert.Equal(t, tc.weeks, tokens[0].Weeks, tc.in)
		assert.Equal(t, tc.parity, tokens[0].Parity, tc.in)
	}

	// A reversed range is not a week token.
	tokens := Tokenize("[9-3周]")
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenText, tokens[0].Kind)
}

func TestParseScenario(t *testing.T) {
	descs, errs := testParser().Parse("信号与系统\n张三\nA101\n[3-17单周][1教101][3-4节]", "第3-4节", 1)
	require.Empty(t, errs)
	require.Len(t, descs, 1)

	d := descs[0]
	assert.Equal(t, "信号与系统", d.Name)
	assert.Equal(t, "张三", d.Teacher)
	assert.Equal(t, "A101", d.ClassInfo)
	assert.Equal(t, "南方科技大学-1教101", d.Location)
	assert.Equal(t, model.WeekRange{Start: 3, End: 17}, d.Weeks)
	assert.Equal(t, model.OddWeeks, d.Parity)
	assert.Equal(t, model.PeriodRange{Start: 3, End: 4}, d.Periods)
	assert.Equal(t, 1, d.DayOffset)
	assert.False(t, d.LabSafety)
}

func TestParseMultipleRecords(t *testing.T) {
	text := "高等数学\n李四\n班级1\n[1-16周][荔园1栋201]\n" +
		"大学物理\n王五\n班级2\n[2-16双周][线上]\n"
	descs, errs := testParser().Parse(text, "5\n6", 0)
	require.Empty(t, errs)
	require.Len(t, descs, 2)

	assert.Equal(t, "南方科技大学-荔园1栋201", descs[0].Location)
	assert.Equal(t, model.PeriodRange{Start: 5, End: 6}, descs[0].Periods, "periods come from the row header")
	assert.Equal(t, model.EveryWeek, descs[0].Parity)

	assert.Equal(t, "线上课程", descs[1].Location)
	assert.Equal(t, model.EvenWeeks, descs[1].Parity)
}

func TestParseUnknownLocation(t *testing.T) {
	descs, errs := testParser().Parse("概率论\n赵六\n班级\n[1-8周][1-2节]", "", 2)
	require.Empty(t, errs)
	require.Len(t, descs, 1)
	assert.Equal(t, "南方科技大学-未知地点", descs[0].Location)
}

func TestParseWeekEnumeration(t *testing.T) {
	descs, errs := testParser().Parse("线性代数\n钱七\n班级\n[1-4,6周][一教201][1-2节]", "", 3)
	require.Empty(t, errs)
	require.Len(t, descs, 2)
	assert.Equal(t, model.WeekRange{Start: 1, End: 4}, descs[0].Weeks)
	assert.Equal(t, model.WeekRange{Start: 6, End: 6}, descs[1].Weeks)
}

func TestParseFailuresAreIsolated(t *testing.T) {
	text := "坏课程\n老师\n班级\n[一教101][1-2节]\n" +
		"好课程\n老师\n班级\n[1-16周][一教102][1-2节]\n" +
		"无节次\n老师\n班级\n[1-16周][一教103]\n" +
		"越界\n老师\n班级\n[1-16周][一教104][11-12节]"
	descs, errs := testParser().Parse(text, "", 0)

	require.Len(t, descs, 1)
	assert.Equal(t, "好课程", descs[0].Name)

	require.Len(t, errs, 3)
	assert.True(t, errors.Is(errs[0], ErrNoWeek))
	assert.True(t, errors.Is(errs[1], ErrNoPeriod))
	assert.True(t, errors.Is(errs[2], period.ErrUnknownPeriod))

	var pe *ParseError
	require.True(t, errors.As(errs[0], &pe))
	assert.Equal(t, 0, pe.Record)
	assert.Equal(t, "坏课程", pe.Name)
}

func TestParseDropsEmptyNameAndIncomplete(t *testing.T) {
	text := "\n\n\n\n课程\n老师"
	descs, errs := testParser().Parse(text, "1-2", 0)
	assert.Empty(t, descs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrIncomplete)
}

func TestParseEmptyAndBadOffset(t *testing.T) {
	descs, errs := testParser().Parse("   ", "1-2", 0)
	assert.Empty(t, descs)
	assert.Empty(t, errs)

	_, errs = testParser().Parse("x\ny\nz\n[1周]", "1-2", 7)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrBadDayOffset)
}

func TestParseLabSafety(t *testing.T) {
	p := testParser()

	descs, errs := p.Parse("实验室安全学\n[无地点]\n[12周][1-8节]", "第1-2节", 5)
	require.Empty(t, errs)
	require.Len(t, descs, 1)
	d := descs[0]
	assert.True(t, d.LabSafety)
	assert.Equal(t, "实验室安全学", d.Name)
	assert.Equal(t, "线上课程", d.Location)
	assert.Equal(t, model.WeekRange{Start: 12, End: 12}, d.Weeks)
	assert.Equal(t, model.PeriodRange{Start: 1, End: 8}, d.Periods)

	descs, errs = p.Parse("实验室安全学\n[12周][第一科研楼报告厅A]", "第3-4节", 0)
	require.Empty(t, errs)
	require.Len(t, descs, 1)
	assert.Equal(t, "南方科技大学-第一科研楼报告厅A", descs[0].Location)
	assert.Equal(t, model.PeriodRange{Start: 3, End: 8}, descs[0].Periods)

	descs, errs = p.Parse("实验室安全学\n[10-11周]", "第1-2节", 0)
	require.Empty(t, errs)
	require.Len(t, descs, 1)
	assert.Equal(t, "南方科技大学-第一科研楼101", descs[0].Location)

	_, errs = p.Parse("实验室安全学\n[1-8节]", "", 0)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNoWeek)
}

func TestParseLabSafetyReportsStackedRecords(t *testing.T) {
	p := testParser()

	text := "信号与系统\n张三\n电子1班\n[3-17单周][1教101][3-4节]\n实验室安全学\n[无地点]\n[12周][1-8节]"
	descs, errs := p.Parse(text, "第1-2节", 5)
	require.Len(t, descs, 1)
	assert.True(t, descs[0].LabSafety)
	assert.Equal(t, model.WeekRange{Start: 12, End: 12}, descs[0].Weeks)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrShadowed)
	var pe *ParseError
	require.ErrorAs(t, errs[0], &pe)
	assert.Equal(t, "信号与系统", pe.Name)

	text = "实验室安全学\n[12周][第一科研楼报告厅A]\n大学物理\n李四\n电子2班\n[1-16周][荔园1栋][5-6节]"
	descs, errs = p.Parse(text, "第3-4节", 0)
	require.Len(t, descs, 1)
	assert.Equal(t, "南方科技大学-第一科研楼报告厅A", descs[0].Location)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrShadowed)
}
