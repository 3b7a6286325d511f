package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company is one row of the joined feature table. Every derived field is
// always present; a missing source leaves it at its zero value.
type Company struct {
	// identity
	CompanyID   int64      `json:"company_id"`
	CompanyName string     `json:"company_name"`
	Slug        string     `json:"slug"`
	Email       string     `json:"email"`
	Plan        string     `json:"plan"`
	Environment string     `json:"environment"`
	CreatedAt   *time.Time `json:"created_at"`

	// subscriptions
	HasSubscription bool `json:"has_subscription"`
	HasActive       bool `json:"has_active"`
	HasTrialing     bool `json:"has_trialing"`
	HasBrainStudio  bool `json:"has_brain_studio"`
	BrainActive     bool `json:"brain_active"`
	HasConnect      bool `json:"has_connect"`
	ConnectActive   bool `json:"connect_active"`
	ConnectTrialing bool `json:"connect_trialing"`

	// bots and channels
	HasBot         bool `json:"has_bot"`
	BotCount       int  `json:"bot_count"`
	HasProdChannel bool `json:"has_prod_channel"`

	// wallet and payments
	UsedConversations bool            `json:"used_conversations"`
	ExceededFreeTier  bool            `json:"exceeded_free_tier"`
	ActuallyPaid      bool            `json:"actually_paid"`
	TotalPaid         decimal.Decimal `json:"total_paid"`

	// engagement
	SandboxExecutions int64 `json:"sandbox_executions"`
	ProdExecutions    int64 `json:"prod_executions"`
	HasWorkflow       bool  `json:"has_workflow"`
	HasSandbox        bool  `json:"has_sandbox"`
	HasProdExec       bool  `json:"has_prod_exec"`
	CreatedTemplates  int64 `json:"created_templates"`
	TemplateEvents    int64 `json:"template_events"`
	HasTemplateUsage  bool  `json:"has_template_usage"`

	// NodeTypes holds one flag per category of the owning FeatureTable,
	// keyed by NodeCategory.Key. Every category key is present.
	NodeTypes         map[string]bool `json:"node_types"`
	TotalNodesCreated int64           `json:"total_nodes_created"`
	CreatedNode       bool            `json:"created_node"`

	// sessions
	TotalTimeMinutes  float64    `json:"total_time_minutes"`
	AvgSessionMinutes float64    `json:"avg_session_minutes"`
	SessionCountSD    float64    `json:"session_count_sd"`
	FirstSession      *time.Time `json:"first_session"`
	LastSession       *time.Time `json:"last_session"`
	DaysActive        int64      `json:"days_active"`
	TotalSessions     int64      `json:"total_sessions"`

	// retention
	DaysSinceSignup    *int             `json:"days_since_signup"`
	DaysToLastActivity *int             `json:"days_to_last_activity"`
	Retained           [LadderSize]bool `json:"retained"`
}

// SignupAge returns whole days between the signup date and now, both
// truncated to UTC midnight. The stored DaysSinceSignup is used only when the
// signup timestamp is unknown.
func (c Company) SignupAge(now time.Time) (int, bool) {
	if c.CreatedAt != nil {
		return DaysBetween(*c.CreatedAt, now), true
	}
	if c.DaysSinceSignup != nil {
		return *c.DaysSinceSignup, true
	}
	return 0, false
}

// RetainedAt reports the retention flag for ladder index i.
func (c Company) RetainedAt(i int) bool {
	if i < 0 || i >= LadderSize {
		return false
	}
	return c.Retained[i]
}

// NodeCategory is one column-3 bucket of the flow diagram.
type NodeCategory struct {
	Key     string `json:"key"`   // node_type_message, node_type_other, ...
	Label   string `json:"label"` // Message, Other, ...
	TypeID  int64  `json:"type_id,omitempty"`
	Volume  int64  `json:"volume"` // total nodes created across all companies
	Rank    int    `json:"rank"`   // 0 = most created
	IsOther bool   `json:"is_other"`
}

// FeatureTable is the joined, per-company output of the feature join engine.
type FeatureTable struct {
	Companies      []Company      `json:"companies"`
	NodeCategories []NodeCategory `json:"node_categories"`
	// Measured marks the ladder rungs whose Company.Retained flags carry
	// real data, consumed from a precomputed table or derived from sessions.
	Measured [LadderSize]bool `json:"measured"`
	// Origin is OriginDerived or OriginPrecomputed.
	Origin string `json:"origin"`
}

// Feature table origins.
const (
	OriginDerived     = "derived"
	OriginPrecomputed = "precomputed"
)

// HasRetention reports whether any rung was measured.
func (ft *FeatureTable) HasRetention() bool {
	if ft == nil {
		return false
	}
	for _, m := range ft.Measured {
		if m {
			return true
		}
	}
	return false
}

// Len returns the number of companies.
func (ft *FeatureTable) Len() int {
	if ft == nil {
		return 0
	}
	return len(ft.Companies)
}

// WithCompanies returns a shallow copy of ft restricted to companies.
func (ft *FeatureTable) WithCompanies(companies []Company) *FeatureTable {
	if ft == nil {
		return &FeatureTable{Companies: companies}
	}
	cp := *ft
	cp.Companies = companies
	return &cp
}

// Find returns the company with the given id.
func (ft *FeatureTable) Find(id int64) (Company, bool) {
	if ft == nil {
		return Company{}, false
	}
	for _, c := range ft.Companies {
		if c.CompanyID == id {
			return c, true
		}
	}
	return Company{}, false
}

// DaysBetween counts calendar days from a to b in UTC.
func DaysBetween(a, b time.Time) int {
	da := TruncateDay(a)
	db := TruncateDay(b)
	return int(db.Sub(da).Hours() / 24)
}

// TruncateDay returns UTC midnight of t's calendar day.
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
