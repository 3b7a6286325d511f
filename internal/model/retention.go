package model

import "time"

// RetentionPeriod is one rung of the retention ladder.
type RetentionPeriod struct {
	Label      string `json:"label"`
	Flag       string `json:"flag"`
	OffsetDays int    `json:"offset_days"`
	MinAgeDays int    `json:"min_age_days"`
}

// LadderSize is the number of rungs in RetentionLadder.
const LadderSize = 9

// RetentionLadder lists the measured offsets in ascending order. Day 1
// requires seven days of age, the same as the week rungs' offset+7 rule
// would give for a zero offset.
var RetentionLadder = [LadderSize]RetentionPeriod{
	{Label: "Day 1", Flag: "retained_day1", OffsetDays: 1, MinAgeDays: 7},
	{Label: "Week 1", Flag: "retained_week1", OffsetDays: 7, MinAgeDays: 14},
	{Label: "Week 2", Flag: "retained_week2", OffsetDays: 14, MinAgeDays: 21},
	{Label: "Week 3", Flag: "retained_week3", OffsetDays: 21, MinAgeDays: 28},
	{Label: "Week 4", Flag: "retained_week4", OffsetDays: 28, MinAgeDays: 35},
	{Label: "Week 5", Flag: "retained_week5", OffsetDays: 35, MinAgeDays: 42},
	{Label: "Week 6", Flag: "retained_week6", OffsetDays: 42, MinAgeDays: 49},
	{Label: "Week 7", Flag: "retained_week7", OffsetDays: 49, MinAgeDays: 56},
	{Label: "Week 8", Flag: "retained_week8", OffsetDays: 56, MinAgeDays: 63},
}

// BaselineLabel is the always-100% first point of every curve.
const BaselineLabel = "Day 0"

// RetentionRecord is one point of a retention curve.
type RetentionRecord struct {
	Period     string  `json:"period"`
	MinAgeDays int     `json:"min_age_days"`
	Eligible   int     `json:"eligible"`
	Retained   int     `json:"retained"`
	Rate       float64 `json:"retention_rate"`
}

// CohortPeriod is a retention rung evaluated for one signup week. Rate is
// nil when no company in the cohort is old enough to be measured.
type CohortPeriod struct {
	Period   string   `json:"period"`
	Eligible int      `json:"eligible"`
	Retained int      `json:"retained"`
	Rate     *float64 `json:"retention_rate"`
}

// CohortRecord is one signup-week row of the cohort heatmap.
type CohortRecord struct {
	WeekStart    time.Time      `json:"signup_week"`
	Label        string         `json:"cohort_label"`
	TotalSignups int            `json:"total_signups"`
	Periods      []CohortPeriod `json:"periods"`
}

// ProductRetention groups the curves shown side by side on the overview.
// A nil curve means there was not enough data for that population.
type ProductRetention struct {
	Overall     []RetentionRecord `json:"overall"`
	BrainStudio []RetentionRecord `json:"brain_studio"`
	Connect     []RetentionRecord `json:"connect"`
}
