package pipeline

import (
	"testing"

	"usage-analytics/internal/model"
)

func testCategories() []model.NodeCategory {
	return []model.NodeCategory{
		{Key: NodeTypeKey(3), Label: "Message", TypeID: 3, Volume: 100, Rank: 0},
		{Key: NodeTypeKey(5), Label: "Code", TypeID: 5, Volume: 50, Rank: 1},
		{Key: OtherNodeKey, Label: "Other", Volume: 10, Rank: 2, IsOther: true},
	}
}

func nodeFlags(keys ...string) map[string]bool {
	flags := map[string]bool{}
	for _, cat := range testCategories() {
		flags[cat.Key] = false
	}
	for _, k := range keys {
		flags[k] = true
	}
	return flags
}

func funnelCompanies() []model.Company {
	msg, code := NodeTypeKey(3), NodeTypeKey(5)
	return []model.Company{
		{CompanyID: 1, NodeTypes: nodeFlags(msg, code), CreatedNode: true, HasWorkflow: true, HasSandbox: true, HasConnect: true, HasTemplateUsage: true, ConnectActive: true},
		{CompanyID: 2, NodeTypes: nodeFlags(code), CreatedNode: true, HasWorkflow: true, HasProdExec: true},
		{CompanyID: 3, NodeTypes: nodeFlags(OtherNodeKey), CreatedNode: true, HasConnect: true},
		{CompanyID: 4, NodeTypes: nodeFlags()},
		{CompanyID: 5, NodeTypes: nodeFlags(), HasWorkflow: true},
		{CompanyID: 6, NodeTypes: nodeFlags(msg), CreatedNode: true},
	}
}

func TestAssignFunnelStagesConservesVolume(t *testing.T) {
	companies := funnelCompanies()
	flow := AssignFunnelStages(companies, testCategories())
	total := len(companies)

	if flow.Column(1).Total() != total {
		t.Fatalf("column 1 should hold every signup")
	}
	if flow.Column(2).Total() != total {
		t.Fatalf("column 2 must partition the signups: %d", flow.Column(2).Total())
	}
	if got, want := flow.Column(3).Total(), flow.Column(2).Count(model.BucketCreatedNode); got != want {
		t.Fatalf("column 3 total %d should equal created-node count %d", got, want)
	}
	if flow.Column(4).Total() != total {
		t.Fatalf("column 4 must partition the signups")
	}
	if flow.Column(6).Total() != total {
		t.Fatalf("column 6 must partition the signups")
	}
	if len(flow.Assignments) != total {
		t.Fatalf("expected one assignment per company")
	}
}

func TestAssignFunnelStagesUsesMostPopularType(t *testing.T) {
	msg, code := NodeTypeKey(3), NodeTypeKey(5)
	flow := AssignFunnelStages(funnelCompanies(), testCategories())
	byID := map[int64]model.Assignment{}
	for _, a := range flow.Assignments {
		byID[a.CompanyID] = a
	}
	// message and code tie on view popularity; the global rank wins.
	if byID[1].NodeType != msg {
		t.Fatalf("company with message and code should be counted under message, got %s", byID[1].NodeType)
	}
	if byID[2].NodeType != code || byID[3].NodeType != OtherNodeKey {
		t.Fatalf("unexpected node types %+v %+v", byID[2], byID[3])
	}
	if byID[4].NodeType != "" || byID[4].Created != model.BucketNoNode {
		t.Fatalf("company without nodes has no node type: %+v", byID[4])
	}
}

func TestNodePopularityKeepsTopTypesAndOther(t *testing.T) {
	var cats []model.NodeCategory
	for i := int64(1); i <= 7; i++ {
		cats = append(cats, model.NodeCategory{Key: NodeTypeKey(100 + i), TypeID: 100 + i, Rank: int(i - 1)})
	}
	cats = append(cats, model.NodeCategory{Key: OtherNodeKey, Label: "Other", Rank: 7, IsOther: true})

	flagged := func(id int64, types ...int64) model.Company {
		flags := map[string]bool{}
		for _, tid := range types {
			flags[NodeTypeKey(tid)] = true
		}
		return model.Company{CompanyID: id, NodeTypes: flags, CreatedNode: len(types) > 0}
	}
	companies := []model.Company{
		flagged(1, 101), flagged(2, 102), flagged(3, 103), flagged(4, 104), flagged(5, 105),
		flagged(6, 101),
		flagged(7, 107),
	}

	order := NodePopularity(companies, cats)
	if len(order) != TopNodeTypes+1 || !order[len(order)-1].IsOther {
		t.Fatalf("expected %d named types plus other, got %+v", TopNodeTypes, order)
	}
	for _, cat := range order {
		if cat.Key == NodeTypeKey(107) || cat.Key == NodeTypeKey(106) {
			t.Fatalf("%s should fall outside the top types", cat.Key)
		}
	}

	flow := AssignFunnelStages(companies, cats)
	if n := len(flow.Column(3).Buckets); n != TopNodeTypes+1 {
		t.Fatalf("column 3 should have %d buckets, got %d", TopNodeTypes+1, n)
	}
	for _, a := range flow.Assignments {
		if a.CompanyID == 7 && (a.Created != model.BucketNoNode || a.NodeType != "") {
			t.Fatalf("flag outside the top types should not count as created: %+v", a)
		}
	}
	if got := flow.Column(2).Count(model.BucketCreatedNode); got != 6 {
		t.Fatalf("expected 6 node creators, got %d", got)
	}
}

func TestAssignFunnelStagesOutcomes(t *testing.T) {
	flow := AssignFunnelStages(funnelCompanies(), testCategories())
	want := map[int64]string{
		1: model.BucketPaid,
		2: model.BucketProduction,
		3: model.BucketDropped,
		4: model.BucketNoFurtherSteps,
		5: model.BucketDropped,
		6: model.BucketDropped,
	}
	for _, a := range flow.Assignments {
		if a.Outcome != want[a.CompanyID] {
			t.Fatalf("company %d: outcome %s, want %s", a.CompanyID, a.Outcome, want[a.CompanyID])
		}
	}
	engagement := map[int64]string{1: model.BucketCrossProduct, 2: model.BucketWorkflowOnly, 3: model.BucketTrialOnly, 4: model.BucketNeither}
	for _, a := range flow.Assignments {
		if e, ok := engagement[a.CompanyID]; ok && a.Engagement != e {
			t.Fatalf("company %d: engagement %s, want %s", a.CompanyID, a.Engagement, e)
		}
	}
}

func TestAssignFunnelStagesLinks(t *testing.T) {
	flow := AssignFunnelStages(funnelCompanies(), testCategories())
	if v := flow.LinkValue(model.BucketSignups, model.BucketCreatedNode); v != 4 {
		t.Fatalf("signups -> created node = %d, want 4", v)
	}
	if v := flow.LinkValue(model.BucketNoNode, model.BucketNoFurtherSteps); v != 1 {
		t.Fatalf("no node -> no further actions = %d, want 1", v)
	}
	// cross-product company validated both ways and fans out.
	if flow.LinkValue(model.BucketCrossProduct, model.BucketSandbox) != 1 || flow.LinkValue(model.BucketCrossProduct, model.BucketTemplates) != 1 {
		t.Fatalf("cross-product fan-out missing: %+v", flow.Links)
	}
	for _, l := range flow.Links {
		if l.Value <= 0 {
			t.Fatalf("zero-value link emitted: %+v", l)
		}
	}
}

func TestAssignFunnelStagesEmpty(t *testing.T) {
	flow := AssignFunnelStages(nil, testCategories())
	if flow.Total != 0 || len(flow.Columns) != 0 {
		t.Fatalf("expected an empty diagram, got %+v", flow)
	}
}

func TestStageFunnelDropOff(t *testing.T) {
	companies := []model.Company{
		{CompanyID: 1, HasBot: true, HasProdChannel: true, UsedConversations: true, ActuallyPaid: true},
		{CompanyID: 2, HasBot: true},
		{CompanyID: 3, HasBot: true},
		{CompanyID: 4},
	}
	stages := StageFunnel(companies)
	if len(stages) != 6 || stages[0].Stage != "Signup" || stages[5].Stage != "Actually Paid" {
		t.Fatalf("unexpected stages %+v", stages)
	}
	bot := stages[1]
	if bot.Count != 3 || bot.DropOff != 1 || bot.DropOffPercent != 25 {
		t.Fatalf("Created Bot: %+v", bot)
	}
	prod := stages[2]
	if prod.DropOff != 2 || prod.DropOffPercent != 66.7 {
		t.Fatalf("Production Channel: %+v", prod)
	}
	if stages[0].DropOff != 0 || stages[0].Percentage != 100 {
		t.Fatalf("Signup stage: %+v", stages[0])
	}
	if StageFunnel(nil) != nil {
		t.Fatalf("no companies means no funnel")
	}
}

func TestTimeByStage(t *testing.T) {
	companies := []model.Company{
		{CompanyID: 1, ActuallyPaid: true, TotalTimeMinutes: 100},
		{CompanyID: 2, ActuallyPaid: true, HasBot: true, TotalTimeMinutes: 50},
		{CompanyID: 3, TotalTimeMinutes: 10},
		{CompanyID: 4},
	}
	stages := TimeByStage(companies)
	if len(stages) != 3 {
		t.Fatalf("expected three reached stages, got %+v", stages)
	}
	if stages[0].Stage != StageSignupOnly || stages[2].Stage != StagePaid {
		t.Fatalf("stages out of order: %+v", stages)
	}
	if stages[2].AvgMinutes != 75 || stages[2].AccountCount != 2 {
		t.Fatalf("paid stage: %+v", stages[2])
	}
}
