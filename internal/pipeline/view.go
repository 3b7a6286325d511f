package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"usage-analytics/internal/model"
)

// Select narrows the feature table to the companies matching f. The result
// shares categories and measured rungs with ft; ft itself is not modified.
func Select(ft *model.FeatureTable, f model.ViewFilter) *model.FeatureTable {
	if ft == nil {
		return &model.FeatureTable{}
	}
	out := make([]model.Company, 0, len(ft.Companies))
	for _, c := range ft.Companies {
		if Matches(c, f) {
			out = append(out, c)
		}
	}
	return ft.WithCompanies(out)
}

// Matches reports whether a company passes every criterion of f. Date
// bounds are inclusive calendar days; companies without a signup date never
// pass a date criterion.
func Matches(c model.Company, f model.ViewFilter) bool {
	if f.From != nil || f.To != nil || f.Week != nil {
		if c.CreatedAt == nil {
			return false
		}
		day := model.TruncateDay(*c.CreatedAt)
		if f.From != nil && day.Before(model.TruncateDay(*f.From)) {
			return false
		}
		if f.To != nil && day.After(model.TruncateDay(*f.To)) {
			return false
		}
		if f.Week != nil && !WeekStart(day).Equal(WeekStart(*f.Week)) {
			return false
		}
	}
	if f.PlanSelected() && c.Plan != strings.TrimSpace(f.Plan) {
		return false
	}
	if f.HasBot && !c.HasBot {
		return false
	}
	if f.HasSubscription && !c.HasSubscription {
		return false
	}
	if f.InProduction && !c.HasProdChannel {
		return false
	}
	if f.Paid && !c.ActuallyPaid {
		return false
	}
	for _, i := range f.RequiredRetention() {
		if !c.RetainedAt(i) {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(c.CompanyName), q) && !strings.Contains(strings.ToLower(c.Slug), q) {
			return false
		}
	}
	return true
}

// RangeDays is the length of the filter's date range, never below one.
func RangeDays(f model.ViewFilter) int {
	if f.From == nil || f.To == nil {
		return 1
	}
	return max(1, model.DaysBetween(*f.From, *f.To))
}

// DefaultRange spans the data's signups, starting no earlier than floor.
// With no dated signups it runs from floor to now. When every signup
// predates floor the full data span is used.
func DefaultRange(ft *model.FeatureTable, floor, now time.Time) (time.Time, time.Time) {
	var lo, hi *time.Time
	if ft != nil {
		for _, c := range ft.Companies {
			if c.CreatedAt == nil {
				continue
			}
			if lo == nil || c.CreatedAt.Before(*lo) {
				lo = c.CreatedAt
			}
			if hi == nil || c.CreatedAt.After(*hi) {
				hi = c.CreatedAt
			}
		}
	}
	if lo == nil {
		return model.TruncateDay(floor), model.TruncateDay(now)
	}
	from, to := model.TruncateDay(*lo), model.TruncateDay(*hi)
	if start := model.TruncateDay(floor); from.Before(start) && !to.Before(start) {
		from = start
	}
	return from, to
}

// CompanyTable builds the company data view: newest signups first, with
// days since the last session relative to now.
func CompanyTable(companies []model.Company, now time.Time) []model.CompanyRow {
	rows := make([]model.CompanyRow, 0, len(companies))
	for _, c := range companies {
		row := model.CompanyRow{Company: c}
		if c.LastSession != nil {
			d := model.DaysBetween(*c.LastSession, now)
			row.DaysSinceLastSession = &d
		}
		if row.DaysSinceSignup == nil {
			if age, ok := c.SignupAge(now); ok {
				row.DaysSinceSignup = &age
			}
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].CreatedAt, rows[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return rows
}

// WeekOptions lists the signup weeks present in companies, newest first.
func WeekOptions(companies []model.Company) []model.WeekOption {
	counts := map[time.Time]int{}
	for _, c := range companies {
		if c.CreatedAt != nil {
			counts[WeekStart(*c.CreatedAt)]++
		}
	}
	out := make([]model.WeekOption, 0, len(counts))
	for w, n := range counts {
		out = append(out, model.WeekOption{Start: w, Label: fmt.Sprintf("%s (%d)", WeekLabel(w), n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out
}
