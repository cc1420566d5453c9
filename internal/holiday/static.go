package holiday

import (
	"time"

	appLog "coursecal/internal/log"
)

type staticYear struct {
	holidays []string
	workdays []string
}

// Mainland China public holidays and adjusted (make-up) working days.
var staticTables = map[int]staticYear{
	2024: {
		holidays: []string{
			"2024-01-01",
			"2024-02-10", "2024-02-11", "2024-02-12", "2024-02-13", "2024-02-14", "2024-02-15", "2024-02-16", "2024-02-17",
			"2024-04-04", "2024-04-05", "2024-04-06",
			"2024-05-01", "2024-05-02", "2024-05-03", "2024-05-04", "2024-05-05",
			"2024-06-10",
			"2024-09-15", "2024-09-16", "2024-09-17",
			"2024-10-01", "2024-10-02", "2024-10-03", "2024-10-04", "2024-10-05", "2024-10-06", "2024-10-07",
		},
		workdays: []string{
			"2024-02-04", "2024-02-18", "2024-04-07", "2024-04-28", "2024-05-11",
			"2024-09-14", "2024-09-29", "2024-10-12",
		},
	},
	2025: {
		holidays: []string{
			"2025-01-01",
			"2025-01-28", "2025-01-29", "2025-01-30", "2025-01-31", "2025-02-01", "2025-02-02", "2025-02-03", "2025-02-04",
			"2025-04-04", "2025-04-05", "2025-04-06",
			"2025-05-01", "2025-05-02", "2025-05-03", "2025-05-04", "2025-05-05",
			"2025-05-31", "2025-06-01", "2025-06-02",
			"2025-10-01", "2025-10-02", "2025-10-03", "2025-10-04", "2025-10-05", "2025-10-06", "2025-10-07", "2025-10-08",
		},
		workdays: []string{
			"2025-01-26", "2025-02-08", "2025-04-27", "2025-09-28", "2025-10-11",
		},
	},
}

// KnownYears reports the years that have a built-in table.
func KnownYears() []int {
	return []int{2024, 2025}
}

// Static returns the built-in sets for every year touched by [start, end].
// A year without a table borrows fallbackYear's table, moved onto that year
// by month and day, and logs a warning. Only the solar-calendar holidays of
// the borrowed table are reliable in that case.
func Static(start, end time.Time, fallbackYear int) *Sets {
	out := NewSets(nil, nil)
	for y := start.Year(); y <= end.Year(); y++ {
		tbl, ok := staticTables[y]
		if !ok {
			appLog.Warn("no built-in holiday table for year; using fallback year",
				"year", y, "fallback_year", fallbackYear)
			tbl = staticTables[fallbackYear]
		}
		for _, d := range tbl.holidays {
			if moved, ok := moveToYear(d, y); ok {
				out.addHoliday(moved)
			}
		}
		for _, d := range tbl.workdays {
			if moved, ok := moveToYear(d, y); ok {
				out.addWorkday(moved)
			}
		}
	}
	return out.within(start, end)
}

func moveToYear(d string, year int) (string, bool) {
	t, err := time.Parse(dateLayout, d)
	if err != nil {
		return "", false
	}
	if t.Year() == year {
		return d, true
	}
	moved := time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if moved.Month() != t.Month() {
		return "", false
	}
	return key(moved), true
}
