package model

import (
	"strings"
	"time"
)

// AllPlans is the plan selector value meaning "no plan filter".
const AllPlans = "All Plans"

// ViewFilter narrows the feature table for one view. Zero values disable a
// criterion; the boolean criteria only ever require a flag to be set.
type ViewFilter struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
	Plan string     `json:"plan,omitempty"`
	// Week is the Monday that starts the selected signup week.
	Week *time.Time `json:"week,omitempty"`

	HasBot          bool `json:"has_bot,omitempty"`
	HasSubscription bool `json:"has_subscription,omitempty"`
	InProduction    bool `json:"in_production,omitempty"`
	Paid            bool `json:"paid,omitempty"`

	RetainedDay1  bool `json:"retained_day1,omitempty"`
	RetainedWeek1 bool `json:"retained_week1,omitempty"`
	RetainedWeek2 bool `json:"retained_week2,omitempty"`
	RetainedWeek3 bool `json:"retained_week3,omitempty"`
	RetainedWeek4 bool `json:"retained_week4,omitempty"`

	Search string `json:"search,omitempty"`
}

// PlanSelected reports whether a concrete plan was chosen.
func (f ViewFilter) PlanSelected() bool {
	p := strings.TrimSpace(f.Plan)
	return p != "" && p != AllPlans
}

// RequiredRetention returns the ladder indexes whose flags must be set.
func (f ViewFilter) RequiredRetention() []int {
	var idx []int
	for i, on := range []bool{f.RetainedDay1, f.RetainedWeek1, f.RetainedWeek2, f.RetainedWeek3, f.RetainedWeek4} {
		if on {
			idx = append(idx, i)
		}
	}
	return idx
}

// CompanyRow is one row of the company data view.
type CompanyRow struct {
	Company
	DaysSinceLastSession *int `json:"days_since_last_session"`
}

// WeekOption is one entry of the signup week selector.
type WeekOption struct {
	Start time.Time `json:"start"`
	Label string    `json:"label"`
}

// CompanyOption is one entry of the explorer picker.
type CompanyOption struct {
	CompanyID int64  `json:"company_id"`
	Label     string `json:"label"`
}

// CompanyDetail is the drill-down for a single company: its joined row plus
// the raw source rows that mention it.
type CompanyDetail struct {
	Company       Company                  `json:"company"`
	SignupAgeDays *int                     `json:"signup_age_days"`
	Subscriptions []map[string]interface{} `json:"subscriptions"`
	Bots          []map[string]interface{} `json:"bots"`
	Transactions  []map[string]interface{} `json:"wallet_transactions"`
	Invoices      []map[string]interface{} `json:"invoices"`
	Sessions      []map[string]interface{} `json:"user_sessions"`
}
