package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"usage-analytics/internal/model"
)

func TestJoinDefaultsWhenSourcesAbsent(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "signups.csv",
		"company_id,company_name,slug,email,created_at",
		"1,Acme,acme,a@acme.com,2026-01-05",
		",Orphan,orphan,o@x.com,2026-01-05",
	)
	ft, report := Join(loadTables(t, dir), DefaultExclusionRules())

	if ft.Origin != model.OriginDerived {
		t.Fatalf("expected derived origin, got %s", ft.Origin)
	}
	if ft.Len() != 1 || report.Input != 2 {
		t.Fatalf("expected the id-less row dropped, got %d companies (report %+v)", ft.Len(), report)
	}
	c := ft.Companies[0]
	if c.HasSubscription || c.HasBot || c.ActuallyPaid || c.CreatedNode || c.BotCount != 0 {
		t.Fatalf("absent sources should leave defaults: %+v", c)
	}
	if !c.TotalPaid.Equal(decimal.Zero) {
		t.Fatalf("TotalPaid should be zero, got %s", c.TotalPaid)
	}
	if c.NodeTypes == nil {
		t.Fatalf("NodeTypes map should be allocated")
	}
	if ft.HasRetention() {
		t.Fatalf("no sessions and no flag columns: nothing should be measured")
	}
}

func TestJoinWithoutSignupsIsEmpty(t *testing.T) {
	ft, _ := Join(Tables{}, DefaultExclusionRules())
	if ft == nil || ft.Len() != 0 {
		t.Fatalf("expected an empty feature table")
	}
}

func TestJoinProductionChannelNeedsBothFlags(t *testing.T) {
	dir := t.TempDir()
	lines := []string{"company_id,company_name,email,slug,created_at"}
	for i := 1; i <= 10; i++ {
		lines = append(lines, fmt.Sprintf("%d,Company %d,c%d@example.com,c%d,2026-01-0%d", i, i, i, i, 1+i%9))
	}
	writeCSV(t, dir, "signups.csv", lines...)
	writeCSV(t, dir, "bots.csv",
		"company_id,in_production,state",
		"1,1,1",
		"2,1,1",
		"3,1,1",
		"4,1,0",
		"5,0,1",
	)

	ft, _ := Join(loadTables(t, dir), DefaultExclusionRules())
	var bots, prod int
	for _, c := range ft.Companies {
		if c.HasBot {
			bots++
		}
		if c.HasProdChannel {
			prod++
		}
	}
	if bots != 5 || prod != 3 {
		t.Fatalf("expected 5 with bots and 3 in production, got %d/%d", bots, prod)
	}
	stages := StageFunnel(ft.Companies)
	if stages[2].Count != 3 {
		t.Fatalf("Production Channel stage should count 3, got %d", stages[2].Count)
	}
}

func TestJoinReadsBooleanIndicators(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "signups.csv", "company_id,company_name,created_at", "1,Acme,2026-01-05", "2,Beta,2026-01-06", "3,Gamma,2026-01-07")
	writeCSV(t, dir, "bots.csv",
		"company_id,in_production,state",
		"1,true,1",
		"2,True,1",
		"3,false,1",
	)
	writeCSV(t, dir, "credit_wallet.csv",
		"company_id,total_used,exceeded_free_tier",
		"1,10,true",
		"2,10,True",
		"3,10,False",
	)

	ft, _ := Join(loadTables(t, dir), DefaultExclusionRules())
	for _, id := range []int64{1, 2} {
		c := findCompany(t, ft, id)
		if !c.HasProdChannel || !c.ExceededFreeTier {
			t.Fatalf("company %d: boolean true should count, got prod=%v exceeded=%v", id, c.HasProdChannel, c.ExceededFreeTier)
		}
	}
	gamma := findCompany(t, ft, 3)
	if gamma.HasProdChannel || gamma.ExceededFreeTier {
		t.Fatalf("boolean false must not count: %+v", gamma)
	}
}

func TestJoinSubscriptionsAndPayments(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "signups.csv", "company_id,company_name,created_at", "1,Acme,2026-01-05", "2,Beta,2026-01-06")
	writeCSV(t, dir, "subscriptions.csv",
		"company_id,product_name,status,created_at,metadata",
		"1,Brain Studio,active,2026-01-05,{}",
		"1,Connect,TRIALING,2026-01-05,{}",
	)
	writeCSV(t, dir, "stripe_invoices.csv",
		"company_id,amount_paid,paid_at",
		"1,10.50,2026-01-07",
		"1,5.25,2026-01-08",
		"2,0,2026-01-08",
	)
	writeCSV(t, dir, "credit_wallet.csv", "company_id,total_used,exceeded_free_tier", "1,30,1", "2,0,0")

	ft, _ := Join(loadTables(t, dir), DefaultExclusionRules())
	acme := findCompany(t, ft, 1)
	if !acme.HasSubscription || !acme.BrainActive || !acme.ConnectTrialing || acme.ConnectActive {
		t.Fatalf("subscription flags wrong: %+v", acme)
	}
	if !acme.ActuallyPaid || !acme.TotalPaid.Equal(decimal.RequireFromString("15.75")) {
		t.Fatalf("expected 15.75 paid, got %v %s", acme.ActuallyPaid, acme.TotalPaid)
	}
	if !acme.UsedConversations || !acme.ExceededFreeTier {
		t.Fatalf("wallet flags wrong: %+v", acme)
	}
	beta := findCompany(t, ft, 2)
	if beta.ActuallyPaid || beta.UsedConversations || beta.HasSubscription {
		t.Fatalf("zero invoices and wallet usage must not count: %+v", beta)
	}
}

func TestJoinDerivesRetentionFromSessions(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "signups.csv", "company_id,company_name,created_at", "1,Acme,2026-01-01 09:00:00", "2,Beta,2026-01-01")
	writeCSV(t, dir, "user_sessions.csv",
		"company_id,first_session,last_session,days_active,total_sessions",
		"1,2026-01-01,2026-01-10 23:00:00,4,6",
	)

	ft, _ := Join(loadTables(t, dir), DefaultExclusionRules())
	for i, m := range ft.Measured {
		if !m {
			t.Fatalf("rung %d should be measured when sessions are loaded", i)
		}
	}
	acme := findCompany(t, ft, 1)
	if acme.DaysToLastActivity == nil || *acme.DaysToLastActivity != 9 {
		t.Fatalf("expected 9 days to last activity, got %v", acme.DaysToLastActivity)
	}
	if !acme.Retained[0] || !acme.Retained[1] || acme.Retained[2] {
		t.Fatalf("expected Day 1 and Week 1 only, got %v", acme.Retained)
	}
	if acme.TotalSessions != 6 || acme.DaysActive != 4 {
		t.Fatalf("session activity not joined: %+v", acme)
	}
	beta := findCompany(t, ft, 2)
	if beta.Retained != ([model.LadderSize]bool{}) {
		t.Fatalf("company without sessions should not be retained: %v", beta.Retained)
	}
}

func TestJoinBackfillsPrecomputedAnalysis(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "analysis_combined.csv",
		"company_id,company_name,slug,email,created_at,has_bot,bot_count,retained_week1,node_type_message,node_type_other",
		"1,Acme,acme,a@acme.com,2026-01-05,true,2,1,1,0",
		"2,Internal,jelou-internal,x@jelou.ai,2026-01-05,false,0,0,0,0",
		"3,Beta,beta,b@beta.com,2026-01-06,false,0,0,0,1",
	)
	writeCSV(t, dir, "sessions_duration.csv", "id,sum,avg,n", "1,90,30,3")
	writeCSV(t, dir, "signups.csv", "company_id,company_name", "99,Ignored")

	ft, report := Join(loadTables(t, dir), DefaultExclusionRules())
	if ft.Origin != model.OriginPrecomputed {
		t.Fatalf("expected precomputed origin, got %s", ft.Origin)
	}
	if report.Removed() != 1 || ft.Len() != 2 {
		t.Fatalf("internal row should be excluded from the precomputed spine: %+v", report)
	}
	if _, ok := ft.Find(99); ok {
		t.Fatalf("signups must not be used when the analysis table satisfies the contract")
	}
	acme := findCompany(t, ft, 1)
	if acme.BotCount != 2 || !acme.HasBot || !acme.Retained[1] {
		t.Fatalf("precomputed columns not kept: %+v", acme)
	}
	if acme.TotalTimeMinutes != 90 || acme.SessionCountSD != 3 {
		t.Fatalf("session durations not backfilled: %+v", acme)
	}
	if !acme.NodeTypes["node_type_message"] || !acme.CreatedNode {
		t.Fatalf("node flags not read from columns: %v", acme.NodeTypes)
	}
	if !ft.Measured[1] || ft.Measured[0] || ft.Measured[2] {
		t.Fatalf("only the week 1 rung carries a column: %v", ft.Measured)
	}
	if n := len(ft.NodeCategories); n != 2 || !ft.NodeCategories[n-1].IsOther {
		t.Fatalf("other must be the last category: %+v", ft.NodeCategories)
	}
	if acme.CreatedAt == nil || !acme.CreatedAt.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_at not kept: %v", acme.CreatedAt)
	}
}

func TestSatisfiesContract(t *testing.T) {
	if SatisfiesContract(nil) {
		t.Fatalf("nil table cannot satisfy the contract")
	}
	partial := &Table{Columns: []string{CompanyIDColumn, "retained_week1"}}
	if SatisfiesContract(partial) {
		t.Fatalf("bot_count is required")
	}
	full := &Table{Columns: []string{CompanyIDColumn, "retained_week1", "bot_count"}}
	if !SatisfiesContract(full) {
		t.Fatalf("expected contract satisfied")
	}
}
