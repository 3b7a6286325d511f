package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OverviewMetrics are the headline numbers of the overview page.
type OverviewMetrics struct {
	TotalSignups      int     `json:"total_signups"`
	AvgSignupsPerDay  float64 `json:"avg_signups_per_day"`
	HasBot            int     `json:"has_bot"`
	HasProdChannel    int     `json:"has_prod_channel"`
	UsedConversations int     `json:"used_conversations"`
	ExceededFreeTier  int     `json:"exceeded_free_tier"`
	ActuallyPaid      int     `json:"actually_paid"`
	WithSubscription  int     `json:"with_subscription"`
	HasActive         int     `json:"has_active"`

	HasBrainStudio  int `json:"has_brain_studio"`
	BrainActive     int `json:"brain_active"`
	HasConnect      int `json:"has_connect"`
	ConnectActive   int `json:"connect_active"`
	ConnectTrialing int `json:"connect_trialing"`

	SelfService int `json:"self_service"`
	Enterprise  int `json:"enterprise"`

	BotRate          float64 `json:"bot_rate"`
	ProdRate         float64 `json:"prod_rate"`
	PaidRate         float64 `json:"paid_rate"`
	ExceededRate     float64 `json:"exceeded_rate"`
	BrainRate        float64 `json:"brain_rate"`
	ConnectRate      float64 `json:"connect_rate"`
	SubscriptionRate float64 `json:"subscription_rate"`
	// TrialToPaid is ConnectActive over HasConnect.
	TrialToPaid float64 `json:"trial_to_paid"`

	TotalPaid decimal.Decimal `json:"total_paid"`

	Status     ConversionStatus `json:"conversion_status"`
	Engagement Engagement       `json:"engagement"`
}

// ConversionStatus splits the population into exclusive conversion slices.
type ConversionStatus struct {
	NoBot          int `json:"no_bot"`
	BotOnly        int `json:"bot_only"`
	ProductionOnly int `json:"production"`
	Paid           int `json:"paid"`
}

// Engagement summarises time spent in the app.
type Engagement struct {
	Available         bool    `json:"available"`
	TotalMinutes      float64 `json:"total_minutes"`
	TotalHours        float64 `json:"total_hours"`
	AvgMinutesActive  float64 `json:"avg_minutes_per_active_account"`
	ActiveAccounts    int     `json:"active_accounts"`
	ActiveAccountRate float64 `json:"active_account_rate"`
}

// DailySignups is one point of the daily signups series.
type DailySignups struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// WeeklySignups is one week of the weekly trend. WoWChange is nil when the
// previous week had no signups.
type WeeklySignups struct {
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`
	Label     string    `json:"week_label"`
	Signups   int       `json:"signups"`
	Previous  *int      `json:"prev_signups"`
	WoWChange *float64  `json:"wow_pct_change"`
}
