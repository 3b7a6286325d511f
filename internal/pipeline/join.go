package pipeline

import (
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"usage-analytics/internal/model"
)

const joinWorkers = 4

// Per-company metric names produced from the source tables.
const (
	mRows            = "rows"
	mActive          = "active"
	mTrialing        = "trialing"
	mBrain           = "brain"
	mBrainActive     = "brain_active"
	mConnect         = "connect"
	mConnectActive   = "connect_active"
	mConnectTrialing = "connect_trialing"
	mProdBots        = "prod_bots"
	mUsed            = "total_used"
	mExceeded        = "exceeded"
	mTemplates       = "created_templates"
	mTemplateEvents  = "total_events"
	mSandbox         = "sandbox_executions"
	mProd            = "prod_executions"
	mTotalMinutes    = "total_time_minutes"
	mAvgMinutes      = "avg_session_minutes"
	mSessionCount    = "session_count"
	mFirstSession    = "first_session"
	mLastSession     = "last_session"
	mDaysActive      = "days_active"
	mTotalSessions   = "total_sessions"
)

// contractColumns mark a precomputed table that already carries the full
// derived output.
var contractColumns = []string{"retained_week1", "bot_count"}

// SatisfiesContract reports whether t is a precomputed feature table.
func SatisfiesContract(t *Table) bool {
	if t == nil {
		return false
	}
	for _, col := range contractColumns {
		if !t.Has(col) {
			return false
		}
	}
	return true
}

// Join builds the feature table. A precomputed analysis table that
// satisfies the output contract is backfilled; otherwise features are
// derived from the signups spine. The exclusion rules run on whichever spine
// is used, so a precomputed table that still carries internal accounts is
// cleaned the same way.
func Join(tables Tables, rules ExclusionRules) (*model.FeatureTable, model.ExclusionReport) {
	if analysis := tables.Get(TableAnalysis); SatisfiesContract(analysis) {
		spine, report := rules.FilterTable(analysis)
		return BackfillMissing(spine, tables), report
	}
	signups := tables.Get(TableSignups)
	if signups == nil {
		log.Printf("⚠️ No signups table: feature table is empty")
		return &model.FeatureTable{Origin: model.OriginDerived, Companies: []model.Company{}}, model.ExclusionReport{}
	}
	spine, report := rules.FilterTable(signups)
	return DeriveFromScratch(spine, tables), report
}

// DeriveFromScratch left-joins every source onto the signup spine. Absent
// sources leave their columns at the defaults. Retention flags already on
// the spine are consumed as they are.
func DeriveFromScratch(signups *Table, tables Tables) *model.FeatureTable {
	src := collectSources(tables)
	ft := &model.FeatureTable{Origin: model.OriginDerived, NodeCategories: src.nodes.Categories}
	ft.Companies = buildCompanies(signups, src, retentionOverlays(), ft.NodeCategories)
	ft.Measured = measured(signups, src)
	log.Printf("🔗 Derived %d companies from signups", len(ft.Companies))
	return ft
}

// BackfillMissing keeps every derived column a precomputed table already
// carries and fills only the ones it lacks from the sources: session
// durations, node-type flags, session activity and anything else absent.
func BackfillMissing(precomputed *Table, tables Tables) *model.FeatureTable {
	src := collectSources(tables)
	ft := &model.FeatureTable{Origin: model.OriginPrecomputed}

	overlays := precomputedOverlays()
	if cats := categoriesFromColumns(precomputed); len(cats) > 0 {
		ft.NodeCategories = cats
		overlays = append(overlays, nodeColumnOverlay(cats))
		src.nodes = NodeUsage{}
	} else {
		ft.NodeCategories = src.nodes.Categories
	}
	ft.Companies = buildCompanies(precomputed, src, overlays, ft.NodeCategories)
	ft.Measured = measured(precomputed, src)
	log.Printf("🔗 Backfilled %d companies from precomputed analysis", len(ft.Companies))
	return ft
}

func buildCompanies(spine *Table, src joinSources, overlays []columnOverlay, cats []model.NodeCategory) []model.Company {
	companies := make([]model.Company, 0, spine.Len())
	dropped := 0
	for _, rec := range spine.Records {
		id, ok := idOf(rec)
		if !ok {
			dropped++
			continue
		}
		c := baseCompany(id, rec, cats)
		src.apply(&c)
		for _, o := range overlays {
			if spine.Has(o.column) {
				o.apply(rec, &c)
			}
		}
		finalize(&c)
		companies = append(companies, c)
	}
	if dropped > 0 {
		log.Printf("⚠️ %d %s rows without a usable company_id were left out", dropped, spine.Name)
	}
	return companies
}

func measured(spine *Table, src joinSources) [model.LadderSize]bool {
	var m [model.LadderSize]bool
	for i, p := range model.RetentionLadder {
		m[i] = src.sessionsLoaded || spine.Has(p.Flag)
	}
	return m
}

func baseCompany(id int64, rec GenericRecord, cats []model.NodeCategory) model.Company {
	c := model.Company{
		CompanyID:   id,
		CompanyName: stringOf(rec, "company_name"),
		Slug:        stringOf(rec, "slug"),
		Email:       stringOf(rec, "email"),
		Plan:        stringOf(rec, "plan"),
		Environment: stringOf(rec, "environment"),
		CreatedAt:   timeOf(rec, "created_at"),
		TotalPaid:   decimal.Zero,
		NodeTypes:   make(map[string]bool, len(cats)),
	}
	for _, cat := range cats {
		c.NodeTypes[cat.Key] = false
	}
	return c
}

// finalize keeps the boolean columns consistent with their counts.
func finalize(c *model.Company) {
	c.HasBot = c.HasBot || c.BotCount > 0
	c.HasSandbox = c.HasSandbox || c.SandboxExecutions > 0
	c.HasProdExec = c.HasProdExec || c.ProdExecutions > 0
	c.HasWorkflow = c.HasWorkflow || c.SandboxExecutions+c.ProdExecutions > 0
	c.HasTemplateUsage = c.HasTemplateUsage || c.CreatedTemplates > 0
	for _, on := range c.NodeTypes {
		if on {
			c.CreatedNode = true
			break
		}
	}
}

// ------------------- Sources -------------------

type joinSources struct {
	subscriptions Aggregates
	bots          Aggregates
	wallet        Aggregates
	templates     Aggregates
	engagement    Aggregates
	durations     Aggregates
	sessions      Aggregates
	paid          map[int64]decimal.Decimal
	nodes         NodeUsage

	sessionsLoaded bool
}

func collectSources(tables Tables) joinSources {
	productIs := func(family string) func(GenericRecord) bool {
		return func(rec GenericRecord) bool {
			return strings.Contains(strings.ToLower(stringOf(rec, "product_name")), family)
		}
	}
	both := func(a, b func(GenericRecord) bool) func(GenericRecord) bool {
		return func(rec GenericRecord) bool { return a(rec) && b(rec) }
	}
	active := statusIs("ACTIVE")
	trialing := statusIs("TRIALING")

	src := joinSources{
		subscriptions: AggregateByCompany(tables.Get(TableSubscriptions), []MetricSpec{
			{Name: mRows, Op: AggCount},
			{Name: mActive, Op: AggCount, Where: active},
			{Name: mTrialing, Op: AggCount, Where: trialing},
			{Name: mBrain, Op: AggCount, Where: productIs("brain")},
			{Name: mBrainActive, Op: AggCount, Where: both(productIs("brain"), active)},
			{Name: mConnect, Op: AggCount, Where: productIs("connect")},
			{Name: mConnectActive, Op: AggCount, Where: both(productIs("connect"), active)},
			{Name: mConnectTrialing, Op: AggCount, Where: both(productIs("connect"), trialing)},
		}, joinWorkers),
		bots: AggregateByCompany(tables.Get(TableBots), []MetricSpec{
			{Name: mRows, Op: AggCount},
			{Name: mProdBots, Op: AggCount, Where: liveInProduction},
		}, joinWorkers),
		wallet: AggregateByCompany(tables.Get(TableCreditWallet), []MetricSpec{
			{Name: mUsed, Op: AggMax, Column: "total_used"},
			{Name: mExceeded, Op: AggCount, Where: func(rec GenericRecord) bool { return isOne(rec, "exceeded_free_tier") }},
		}, joinWorkers),
		templates: AggregateByCompany(tables.Get(TableTemplateUsage), []MetricSpec{
			{Name: mTemplates, Op: AggSum, Column: "created_templates"},
			{Name: mTemplateEvents, Op: AggSum, Column: "total_events"},
		}, joinWorkers),
		engagement: AggregateByCompany(tables.Get(TableCompanyEngagement), []MetricSpec{
			{Name: mSandbox, Op: AggSum, Column: "sandbox_executions"},
			{Name: mProd, Op: AggSum, Column: "prod_executions"},
		}, joinWorkers),
		durations: AggregateByCompany(tables.Get(TableSessionsDuration), []MetricSpec{
			{Name: mTotalMinutes, Op: AggSum, Column: "total_time_minutes"},
			{Name: mAvgMinutes, Op: AggMax, Column: "avg_session_minutes"},
			{Name: mSessionCount, Op: AggSum, Column: "session_count"},
		}, joinWorkers),
		sessions: AggregateByCompany(tables.Get(TableUserSessions), []MetricSpec{
			{Name: mFirstSession, Op: AggMin, Column: "first_session"},
			{Name: mLastSession, Op: AggMax, Column: "last_session"},
			{Name: mDaysActive, Op: AggMax, Column: "days_active"},
			{Name: mTotalSessions, Op: AggSum, Column: "total_sessions"},
		}, joinWorkers),
		paid:           sumPaid(tables.Get(TableStripeInvoices)),
		nodes:          BuildNodeUsage(tables.Get(TableNodesUsed)),
		sessionsLoaded: tables.Get(TableUserSessions).Has("last_session"),
	}
	return src
}

func statusIs(status string) func(GenericRecord) bool {
	return func(rec GenericRecord) bool {
		return strings.EqualFold(stringOf(rec, "status"), status)
	}
}

// liveInProduction requires both the production-channel indicator and the
// active state on the same bot row.
func liveInProduction(rec GenericRecord) bool {
	return isOne(rec, "in_production") && isOne(rec, "state")
}

func sumPaid(t *Table) map[int64]decimal.Decimal {
	out := map[int64]decimal.Decimal{}
	if t == nil {
		return out
	}
	for _, rec := range t.Records {
		id, ok := idOf(rec)
		if !ok {
			continue
		}
		amount, err := decimal.NewFromString(stringOf(rec, "amount_paid"))
		if err != nil || !amount.IsPositive() {
			continue
		}
		out[id] = out[id].Add(amount)
	}
	return out
}

// apply left-joins the company's rows from every source.
func (s joinSources) apply(c *model.Company) {
	id := c.CompanyID

	if sub := s.subscriptions.Get(id); sub != nil {
		c.HasSubscription = true
		c.HasActive = sub.Get(mActive) > 0
		c.HasTrialing = sub.Get(mTrialing) > 0
		c.HasBrainStudio = sub.Get(mBrain) > 0
		c.BrainActive = sub.Get(mBrainActive) > 0
		c.HasConnect = sub.Get(mConnect) > 0
		c.ConnectActive = sub.Get(mConnectActive) > 0
		c.ConnectTrialing = sub.Get(mConnectTrialing) > 0
	}

	if bots := s.bots.Get(id); bots != nil {
		c.HasBot = true
		c.BotCount = int(bots.Get(mRows))
		c.HasProdChannel = bots.Get(mProdBots) > 0
	}

	if w := s.wallet.Get(id); w != nil {
		c.UsedConversations = w.Get(mUsed) > 0
		c.ExceededFreeTier = w.Get(mExceeded) > 0
	}

	if total, ok := s.paid[id]; ok {
		c.ActuallyPaid = true
		c.TotalPaid = total
	}

	if t := s.templates.Get(id); t != nil {
		c.CreatedTemplates = int64(t.Get(mTemplates))
		c.TemplateEvents = int64(t.Get(mTemplateEvents))
		c.HasTemplateUsage = c.CreatedTemplates > 0
	}

	if e := s.engagement.Get(id); e != nil {
		c.SandboxExecutions = int64(e.Get(mSandbox))
		c.ProdExecutions = int64(e.Get(mProd))
	}

	if flags, ok := s.nodes.Flags[id]; ok {
		for key, on := range flags {
			c.NodeTypes[key] = on
		}
	}
	c.TotalNodesCreated = s.nodes.Totals[id]

	if d := s.durations.Get(id); d != nil {
		c.TotalTimeMinutes = d.Get(mTotalMinutes)
		c.AvgSessionMinutes = d.Get(mAvgMinutes)
		c.SessionCountSD = d.Get(mSessionCount)
	}

	if sess := s.sessions.Get(id); sess != nil {
		c.FirstSession = sess.Time(mFirstSession)
		c.LastSession = sess.Time(mLastSession)
		c.DaysActive = int64(sess.Get(mDaysActive))
		c.TotalSessions = int64(sess.Get(mTotalSessions))
	}
	if s.sessionsLoaded {
		deriveRetention(c)
	}
}

// deriveRetention sets the ladder flags from the days between signup and the
// last observed session, both taken as calendar dates.
func deriveRetention(c *model.Company) {
	if c.CreatedAt == nil || c.LastSession == nil {
		return
	}
	days := model.DaysBetween(*c.CreatedAt, *c.LastSession)
	c.DaysToLastActivity = &days
	for i, p := range model.RetentionLadder {
		c.Retained[i] = days >= p.OffsetDays
	}
}

// ------------------- Precomputed columns -------------------

// columnOverlay copies one column of a precomputed row onto the company.
type columnOverlay struct {
	column string
	apply  func(GenericRecord, *model.Company)
}

func boolColumn(name string, field func(*model.Company) *bool) columnOverlay {
	return columnOverlay{column: name, apply: func(rec GenericRecord, c *model.Company) {
		*field(c) = boolOf(rec, name)
	}}
}

func intColumn(name string, field func(*model.Company) *int64) columnOverlay {
	return columnOverlay{column: name, apply: func(rec GenericRecord, c *model.Company) {
		*field(c) = intOf(rec, name)
	}}
}

func floatColumn(name string, field func(*model.Company) *float64) columnOverlay {
	return columnOverlay{column: name, apply: func(rec GenericRecord, c *model.Company) {
		*field(c) = numberOf(rec, name)
	}}
}

func dayColumn(name string, field func(*model.Company) **int) columnOverlay {
	return columnOverlay{column: name, apply: func(rec GenericRecord, c *model.Company) {
		if _, ok := rec[name]; !ok {
			*field(c) = nil
			return
		}
		v := int(intOf(rec, name))
		*field(c) = &v
	}}
}

func timeColumn(name string, field func(*model.Company) **time.Time) columnOverlay {
	return columnOverlay{column: name, apply: func(rec GenericRecord, c *model.Company) {
		*field(c) = timeOf(rec, name)
	}}
}

func retentionOverlays() []columnOverlay {
	out := make([]columnOverlay, 0, model.LadderSize+2)
	for i, p := range model.RetentionLadder {
		i, flag := i, p.Flag
		out = append(out, columnOverlay{column: flag, apply: func(rec GenericRecord, c *model.Company) {
			c.Retained[i] = boolOf(rec, flag)
		}})
	}
	out = append(out,
		dayColumn("days_since_signup", func(c *model.Company) **int { return &c.DaysSinceSignup }),
		dayColumn("days_to_last_activity", func(c *model.Company) **int { return &c.DaysToLastActivity }),
	)
	return out
}

func precomputedOverlays() []columnOverlay {
	out := []columnOverlay{
		boolColumn("has_subscription", func(c *model.Company) *bool { return &c.HasSubscription }),
		boolColumn("has_active", func(c *model.Company) *bool { return &c.HasActive }),
		boolColumn("has_trialing", func(c *model.Company) *bool { return &c.HasTrialing }),
		boolColumn("has_brain_studio", func(c *model.Company) *bool { return &c.HasBrainStudio }),
		boolColumn("brain_active", func(c *model.Company) *bool { return &c.BrainActive }),
		boolColumn("has_connect", func(c *model.Company) *bool { return &c.HasConnect }),
		boolColumn("connect_active", func(c *model.Company) *bool { return &c.ConnectActive }),
		boolColumn("connect_trialing", func(c *model.Company) *bool { return &c.ConnectTrialing }),
		boolColumn("has_bot", func(c *model.Company) *bool { return &c.HasBot }),
		boolColumn("has_prod_channel", func(c *model.Company) *bool { return &c.HasProdChannel }),
		boolColumn("used_conversations", func(c *model.Company) *bool { return &c.UsedConversations }),
		boolColumn("exceeded_free_tier", func(c *model.Company) *bool { return &c.ExceededFreeTier }),
		boolColumn("actually_paid", func(c *model.Company) *bool { return &c.ActuallyPaid }),
		boolColumn("has_workflow", func(c *model.Company) *bool { return &c.HasWorkflow }),
		boolColumn("has_sandbox", func(c *model.Company) *bool { return &c.HasSandbox }),
		boolColumn("has_prod_exec", func(c *model.Company) *bool { return &c.HasProdExec }),
		boolColumn("has_template_usage", func(c *model.Company) *bool { return &c.HasTemplateUsage }),
		boolColumn("created_node", func(c *model.Company) *bool { return &c.CreatedNode }),
		{column: "bot_count", apply: func(rec GenericRecord, c *model.Company) { c.BotCount = int(intOf(rec, "bot_count")) }},
		{column: "total_paid", apply: func(rec GenericRecord, c *model.Company) {
			if d, err := decimal.NewFromString(stringOf(rec, "total_paid")); err == nil {
				c.TotalPaid = d
			} else {
				c.TotalPaid = decimal.Zero
			}
		}},
		intColumn("sandbox_executions", func(c *model.Company) *int64 { return &c.SandboxExecutions }),
		intColumn("prod_executions", func(c *model.Company) *int64 { return &c.ProdExecutions }),
		intColumn("created_templates", func(c *model.Company) *int64 { return &c.CreatedTemplates }),
		intColumn("total_events", func(c *model.Company) *int64 { return &c.TemplateEvents }),
		intColumn("total_nodes_created", func(c *model.Company) *int64 { return &c.TotalNodesCreated }),
		intColumn("days_active", func(c *model.Company) *int64 { return &c.DaysActive }),
		intColumn("total_sessions", func(c *model.Company) *int64 { return &c.TotalSessions }),
		floatColumn("total_time_minutes", func(c *model.Company) *float64 { return &c.TotalTimeMinutes }),
		floatColumn("avg_session_minutes", func(c *model.Company) *float64 { return &c.AvgSessionMinutes }),
		floatColumn("session_count_sd", func(c *model.Company) *float64 { return &c.SessionCountSD }),
		timeColumn("first_session", func(c *model.Company) **time.Time { return &c.FirstSession }),
		timeColumn("last_session", func(c *model.Company) **time.Time { return &c.LastSession }),
	}
	return append(out, retentionOverlays()...)
}

// nodeColumnOverlay reads node_type_* flags straight from the row.
func nodeColumnOverlay(cats []model.NodeCategory) columnOverlay {
	return columnOverlay{column: cats[0].Key, apply: func(rec GenericRecord, c *model.Company) {
		for _, cat := range cats {
			c.NodeTypes[cat.Key] = boolOf(rec, cat.Key)
		}
	}}
}
