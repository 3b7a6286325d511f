package pipeline

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"usage-analytics/internal/model"
)

// Plan values used by the plan breakdown.
const (
	PlanSelfService = "SELF_SERVICE"
	PlanEnterprise  = "ENTERPRISE"
)

// PlanOptions lists the plan selector values.
var PlanOptions = []string{model.AllPlans, PlanSelfService, PlanEnterprise, "SMB", "POCKET"}

// Overview computes the headline metrics for a filtered set of companies.
// rangeDays is the length of the selected date range, at least one.
func Overview(companies []model.Company, rangeDays int) model.OverviewMetrics {
	m := model.OverviewMetrics{TotalSignups: len(companies), TotalPaid: decimal.Zero}
	if rangeDays < 1 {
		rangeDays = 1
	}
	m.AvgSignupsPerDay = float64(m.TotalSignups) / float64(rangeDays)

	for _, c := range companies {
		count := func(flag bool, n *int) {
			if flag {
				*n++
			}
		}
		count(c.HasBot, &m.HasBot)
		count(c.HasProdChannel, &m.HasProdChannel)
		count(c.UsedConversations, &m.UsedConversations)
		count(c.ExceededFreeTier, &m.ExceededFreeTier)
		count(c.ActuallyPaid, &m.ActuallyPaid)
		count(c.HasSubscription, &m.WithSubscription)
		count(c.HasActive, &m.HasActive)
		count(c.HasBrainStudio, &m.HasBrainStudio)
		count(c.BrainActive, &m.BrainActive)
		count(c.HasConnect, &m.HasConnect)
		count(c.ConnectActive, &m.ConnectActive)
		count(c.ConnectTrialing, &m.ConnectTrialing)
		count(c.Plan == PlanSelfService, &m.SelfService)
		count(c.Plan == PlanEnterprise, &m.Enterprise)
		m.TotalPaid = m.TotalPaid.Add(c.TotalPaid)
	}

	total := m.TotalSignups
	m.BotRate = percent(m.HasBot, total)
	m.ProdRate = percent(m.HasProdChannel, total)
	m.PaidRate = percent(m.ActuallyPaid, total)
	m.ExceededRate = percent(m.ExceededFreeTier, total)
	m.BrainRate = percent(m.HasBrainStudio, total)
	m.ConnectRate = percent(m.HasConnect, total)
	m.SubscriptionRate = percent(m.WithSubscription, total)
	m.TrialToPaid = percent(m.ConnectActive, m.HasConnect)

	m.Status = model.ConversionStatus{
		NoBot:          total - m.HasBot,
		BotOnly:        m.HasBot - m.HasProdChannel,
		ProductionOnly: max(0, m.HasProdChannel-m.ActuallyPaid),
		Paid:           m.ActuallyPaid,
	}
	m.Engagement = EngagementSummary(companies)
	return m
}

// EngagementSummary totals time in app. Accounts with any time count as
// active.
func EngagementSummary(companies []model.Company) model.Engagement {
	e := model.Engagement{}
	for _, c := range companies {
		if c.TotalTimeMinutes != 0 || c.AvgSessionMinutes != 0 || c.SessionCountSD != 0 {
			e.Available = true
		}
		e.TotalMinutes += c.TotalTimeMinutes
		if c.TotalTimeMinutes > 0 {
			e.ActiveAccounts++
		}
	}
	e.TotalHours = e.TotalMinutes / 60
	if e.ActiveAccounts > 0 {
		e.AvgMinutesActive = e.TotalMinutes / float64(e.ActiveAccounts)
	}
	e.ActiveAccountRate = percent(e.ActiveAccounts, len(companies))
	return e
}

// DailySignupSeries counts signups per UTC calendar day, ascending.
func DailySignupSeries(companies []model.Company) []model.DailySignups {
	counts := map[time.Time]int{}
	for _, c := range companies {
		if c.CreatedAt == nil {
			continue
		}
		counts[model.TruncateDay(*c.CreatedAt)]++
	}
	out := make([]model.DailySignups, 0, len(counts))
	for day, n := range counts {
		out = append(out, model.DailySignups{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// WeeklySignupSeries counts signups per Monday-Sunday week with the
// week-over-week change. Only weeks with signups appear; the change is nil
// when the previous listed week had none.
func WeeklySignupSeries(companies []model.Company) []model.WeeklySignups {
	counts := map[time.Time]int{}
	for _, c := range companies {
		if c.CreatedAt == nil {
			continue
		}
		counts[WeekStart(*c.CreatedAt)]++
	}
	weeks := make([]time.Time, 0, len(counts))
	for w := range counts {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	out := make([]model.WeeklySignups, 0, len(weeks))
	for i, w := range weeks {
		row := model.WeeklySignups{
			WeekStart: w,
			WeekEnd:   w.AddDate(0, 0, 6),
			Label:     WeekLabel(w),
			Signups:   counts[w],
		}
		if i > 0 {
			prev := counts[weeks[i-1]]
			row.Previous = &prev
			if prev > 0 {
				change := float64(row.Signups-prev) / float64(prev) * 100
				row.WoWChange = &change
			}
		}
		out = append(out, row)
	}
	return out
}
