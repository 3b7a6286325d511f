package pipeline

import (
	"fmt"
	"sort"
	"time"

	"usage-analytics/internal/model"
)

// WeekStart floors t to Monday 00:00 UTC of its Monday-Sunday week. Every
// weekly grouping uses it so trend charts and cohort rows line up.
func WeekStart(t time.Time) time.Time {
	day := model.TruncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekLabel renders "Jan 05 - Jan 11".
func WeekLabel(start time.Time) string {
	return fmt.Sprintf("%s - %s", start.Format("Jan 02"), start.AddDate(0, 0, 6).Format("Jan 02"))
}

// CohortRetention groups companies by signup week and evaluates the
// retention ladder for each week with the same eligibility rule as
// RetentionCurve. Weeks come back in ascending order; companies without a
// signup date are left out.
func CohortRetention(companies []model.Company, measured [model.LadderSize]bool, now time.Time) []model.CohortRecord {
	if len(companies) == 0 || !anyMeasured(measured) {
		return nil
	}

	groups := map[time.Time][]model.Company{}
	for _, c := range companies {
		if c.CreatedAt == nil {
			continue
		}
		week := WeekStart(*c.CreatedAt)
		groups[week] = append(groups[week], c)
	}
	weeks := make([]time.Time, 0, len(groups))
	for w := range groups {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	cohorts := make([]model.CohortRecord, 0, len(weeks))
	for _, week := range weeks {
		group := groups[week]
		record := model.CohortRecord{
			WeekStart:    week,
			Label:        fmt.Sprintf("%s (%d)", WeekLabel(week), len(group)),
			TotalSignups: len(group),
			Periods:      make([]model.CohortPeriod, 0, model.LadderSize),
		}
		for i, p := range model.RetentionLadder {
			period := model.CohortPeriod{Period: p.Label}
			if measured[i] {
				period.Eligible, period.Retained = rung(group, i, now)
				if period.Eligible > 0 {
					rate := float64(period.Retained) / float64(period.Eligible) * 100
					period.Rate = &rate
				}
			}
			record.Periods = append(record.Periods, period)
		}
		cohorts = append(cohorts, record)
	}
	return cohorts
}

// FeatureCohorts is CohortRetention over a whole feature table.
func FeatureCohorts(ft *model.FeatureTable, now time.Time) []model.CohortRecord {
	if ft == nil {
		return nil
	}
	return CohortRetention(ft.Companies, ft.Measured, now)
}
