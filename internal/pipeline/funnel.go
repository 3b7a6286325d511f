package pipeline

import (
	"math"
	"sort"

	"usage-analytics/internal/model"
)

var bucketLabels = map[string]string{
	model.BucketSignups:        "Signups",
	model.BucketCreatedNode:    "Created Node",
	model.BucketNoNode:         "Did Not Create Node",
	model.BucketWorkflowOnly:   "Ran Workflows Only",
	model.BucketTrialOnly:      "Started Connect Trial Only",
	model.BucketCrossProduct:   "Cross-Product",
	model.BucketNeither:        "Neither",
	model.BucketSandbox:        "Validated in Sandbox",
	model.BucketTemplates:      "Created Templates",
	model.BucketProduction:     "Live in Production",
	model.BucketPaid:           "Paid Connect",
	model.BucketDropped:        "Dropped Off",
	model.BucketNoFurtherSteps: "No Further Actions",
}

// NodePopularity orders the node categories by how many companies in the
// view flagged each one and keeps the TopNodeTypes most popular plus "other".
// Ties keep the global volume rank and "other" is always last. It runs once
// per view, before any company is assigned. Flags in a dropped category do
// not count as node creation.
func NodePopularity(companies []model.Company, cats []model.NodeCategory) []model.NodeCategory {
	counts := map[string]int{}
	for _, c := range companies {
		for key, on := range c.NodeTypes {
			if on {
				counts[key]++
			}
		}
	}
	order := make([]model.NodeCategory, len(cats))
	copy(order, cats)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.IsOther != b.IsOther {
			return !a.IsOther
		}
		if counts[a.Key] != counts[b.Key] {
			return counts[a.Key] > counts[b.Key]
		}
		return a.Rank < b.Rank
	})
	kept := order[:0]
	named := 0
	for _, cat := range order {
		if !cat.IsOther {
			if named == TopNodeTypes {
				continue
			}
			named++
		}
		kept = append(kept, cat)
	}
	return kept
}

// AssignFunnelStages places every company in exactly one bucket of each
// partitioning column and computes the flows between columns.
//
// Column 6 precedence is paid, then live in production, then no further
// actions (no node and no workflow or trial), then dropped off.
func AssignFunnelStages(companies []model.Company, cats []model.NodeCategory) model.FlowDiagram {
	total := len(companies)
	diagram := model.FlowDiagram{Total: total, Assignments: make([]model.Assignment, 0, total)}
	if total == 0 {
		return diagram
	}

	order := NodePopularity(companies, cats)
	otherKey := OtherNodeKey
	for _, cat := range order {
		if cat.IsOther {
			otherKey = cat.Key
		}
	}
	anyFlags := false
	for _, c := range companies {
		if firstNodeType(c, order) != "" {
			anyFlags = true
			break
		}
	}

	for _, c := range companies {
		a := model.Assignment{CompanyID: c.CompanyID, Created: model.BucketNoNode}

		nodeType := firstNodeType(c, order)
		created := nodeType != ""
		if !anyFlags {
			created = c.TotalNodesCreated > 0 || c.CreatedNode
		}
		if created {
			a.Created = model.BucketCreatedNode
			if nodeType == "" {
				nodeType = otherKey
			}
			a.NodeType = nodeType
		}

		workflow, trial := c.HasWorkflow, c.HasConnect
		switch {
		case workflow && trial:
			a.Engagement = model.BucketCrossProduct
		case workflow:
			a.Engagement = model.BucketWorkflowOnly
		case trial:
			a.Engagement = model.BucketTrialOnly
		default:
			a.Engagement = model.BucketNeither
		}
		a.Sandbox = workflow && c.HasSandbox
		a.Templates = trial && c.HasTemplateUsage

		switch {
		case c.ConnectActive:
			a.Outcome = model.BucketPaid
		case c.HasProdExec:
			a.Outcome = model.BucketProduction
		case !created && a.Engagement == model.BucketNeither:
			a.Outcome = model.BucketNoFurtherSteps
		default:
			a.Outcome = model.BucketDropped
		}
		diagram.Assignments = append(diagram.Assignments, a)
	}

	diagram.Columns = buildColumns(diagram.Assignments, order, otherKey, total)
	diagram.Links = buildLinks(diagram.Assignments, order, otherKey)
	return diagram
}

func firstNodeType(c model.Company, order []model.NodeCategory) string {
	for _, cat := range order {
		if c.NodeTypes[cat.Key] {
			return cat.Key
		}
	}
	return ""
}

func buildColumns(assignments []model.Assignment, order []model.NodeCategory, otherKey string, total int) []model.FunnelColumn {
	count := func(pred func(model.Assignment) bool) int {
		n := 0
		for _, a := range assignments {
			if pred(a) {
				n++
			}
		}
		return n
	}
	bucket := func(key, label string, n int) model.Bucket {
		if label == "" {
			label = bucketLabels[key]
		}
		return model.Bucket{Key: key, Label: label, Count: n, Percent: percent(n, total)}
	}
	byField := func(field func(model.Assignment) string, key string) model.Bucket {
		return bucket(key, "", count(func(a model.Assignment) bool { return field(a) == key }))
	}
	created := func(a model.Assignment) string { return a.Created }
	engagement := func(a model.Assignment) string { return a.Engagement }
	outcome := func(a model.Assignment) string { return a.Outcome }

	nodeBuckets := make([]model.Bucket, 0, len(order)+1)
	seenOther := false
	for _, cat := range order {
		key := cat.Key
		seenOther = seenOther || key == otherKey
		nodeBuckets = append(nodeBuckets, bucket(key, cat.Label,
			count(func(a model.Assignment) bool { return a.NodeType == key })))
	}
	if !seenOther {
		if n := count(func(a model.Assignment) bool { return a.NodeType == otherKey }); n > 0 {
			nodeBuckets = append(nodeBuckets, bucket(otherKey, "Other", n))
		}
	}

	return []model.FunnelColumn{
		{Index: 1, Title: "Signups", Buckets: []model.Bucket{bucket(model.BucketSignups, "", total)}},
		{Index: 2, Title: "Node Creation", Buckets: []model.Bucket{
			byField(created, model.BucketCreatedNode),
			byField(created, model.BucketNoNode),
		}},
		{Index: 3, Title: "Node Type", Buckets: nodeBuckets},
		{Index: 4, Title: "Engagement", Buckets: []model.Bucket{
			byField(engagement, model.BucketWorkflowOnly),
			byField(engagement, model.BucketTrialOnly),
			byField(engagement, model.BucketCrossProduct),
			byField(engagement, model.BucketNeither),
		}},
		{Index: 5, Title: "Validation", Buckets: []model.Bucket{
			bucket(model.BucketSandbox, "", count(func(a model.Assignment) bool { return a.Sandbox })),
			bucket(model.BucketTemplates, "", count(func(a model.Assignment) bool { return a.Templates })),
		}},
		{Index: 6, Title: "Outcome", Buckets: []model.Bucket{
			byField(outcome, model.BucketProduction),
			byField(outcome, model.BucketPaid),
			byField(outcome, model.BucketDropped),
			byField(outcome, model.BucketNoFurtherSteps),
		}},
	}
}

// buildLinks walks every company through the diagram. Companies skipping
// column 3 or 5 link straight to their next bucket; a cross-product company
// that validated both ways fans out to sandbox and templates.
func buildLinks(assignments []model.Assignment, order []model.NodeCategory, otherKey string) []model.FlowLink {
	type edge struct{ source, target string }
	values := map[edge]int{}
	add := func(source, target string) { values[edge{source, target}]++ }

	for _, a := range assignments {
		add(model.BucketSignups, a.Created)

		from := a.Created
		if a.NodeType != "" {
			add(model.BucketCreatedNode, a.NodeType)
			from = a.NodeType
		}
		if a.Engagement == model.BucketNeither {
			add(from, a.Outcome)
			continue
		}
		add(from, a.Engagement)

		validated := false
		if a.Sandbox {
			add(a.Engagement, model.BucketSandbox)
			add(model.BucketSandbox, a.Outcome)
			validated = true
		}
		if a.Templates {
			add(a.Engagement, model.BucketTemplates)
			add(model.BucketTemplates, a.Outcome)
			validated = true
		}
		if !validated {
			add(a.Engagement, a.Outcome)
		}
	}

	// Fixed rendering order: column by column, sources then targets in
	// bucket order. Zero flows are left out.
	nodeKeys := make([]string, 0, len(order)+1)
	for _, cat := range order {
		nodeKeys = append(nodeKeys, cat.Key)
	}
	if !contains(nodeKeys, otherKey) {
		nodeKeys = append(nodeKeys, otherKey)
	}
	engagement := []string{model.BucketWorkflowOnly, model.BucketTrialOnly, model.BucketCrossProduct}
	validation := []string{model.BucketSandbox, model.BucketTemplates}
	outcomes := []string{model.BucketProduction, model.BucketPaid, model.BucketDropped, model.BucketNoFurtherSteps}

	var links []model.FlowLink
	emit := func(sources, targets []string) {
		for _, s := range sources {
			for _, t := range targets {
				if v := values[edge{s, t}]; v > 0 {
					links = append(links, model.FlowLink{Source: s, Target: t, Value: v})
				}
			}
		}
	}
	emit([]string{model.BucketSignups}, []string{model.BucketCreatedNode, model.BucketNoNode})
	emit([]string{model.BucketCreatedNode}, nodeKeys)
	emit(nodeKeys, append(append([]string{}, engagement...), outcomes...))
	emit([]string{model.BucketNoNode}, append(append([]string{}, engagement...), outcomes...))
	emit(engagement, append(append([]string{}, validation...), outcomes...))
	emit(validation, outcomes)
	return links
}

// StageFunnel is the linear activation funnel with step-to-step drop-off.
func StageFunnel(companies []model.Company) []model.FunnelStage {
	total := len(companies)
	if total == 0 {
		return nil
	}
	counts := [6]int{total}
	for _, c := range companies {
		if c.HasBot {
			counts[1]++
		}
		if c.HasProdChannel {
			counts[2]++
		}
		if c.UsedConversations {
			counts[3]++
		}
		if c.ExceededFreeTier {
			counts[4]++
		}
		if c.ActuallyPaid {
			counts[5]++
		}
	}
	names := [6]string{"Signup", "Created Bot", "Production Channel", "Used Conversations", "Exceeded Free Tier", "Actually Paid"}

	stages := make([]model.FunnelStage, 0, len(names))
	for i, name := range names {
		s := model.FunnelStage{Stage: name, Count: counts[i], Percentage: percent(counts[i], total)}
		if i > 0 {
			prev := counts[i-1]
			s.DropOff = prev - counts[i]
			if prev > 0 {
				s.DropOffPercent = round1(math.Abs(float64(s.DropOff)) / float64(prev) * 100)
			}
		}
		stages = append(stages, s)
	}
	return stages
}

// Journey stages used for the time-in-app correlation, highest first.
const (
	StagePaid       = "4. Paid"
	StageProduction = "3. Production"
	StageCreatedBot = "2. Created Bot"
	StageLoggedIn   = "1. Logged In"
	StageSignupOnly = "0. Signup Only"
)

// JourneyStage returns the furthest stage a company reached.
func JourneyStage(c model.Company) string {
	switch {
	case c.ActuallyPaid:
		return StagePaid
	case c.HasProdChannel:
		return StageProduction
	case c.HasBot:
		return StageCreatedBot
	case c.TotalTimeMinutes > 0:
		return StageLoggedIn
	default:
		return StageSignupOnly
	}
}

// TimeByStage averages time in app per journey stage, in stage order.
// Stages nobody reached are left out.
func TimeByStage(companies []model.Company) []model.StageTime {
	type acc struct {
		minutes float64
		n       int
	}
	sums := map[string]*acc{}
	for _, c := range companies {
		stage := JourneyStage(c)
		if sums[stage] == nil {
			sums[stage] = &acc{}
		}
		sums[stage].minutes += c.TotalTimeMinutes
		sums[stage].n++
	}
	var out []model.StageTime
	for _, stage := range []string{StageSignupOnly, StageLoggedIn, StageCreatedBot, StageProduction, StagePaid} {
		a, ok := sums[stage]
		if !ok {
			continue
		}
		out = append(out, model.StageTime{Stage: stage, AvgMinutes: a.minutes / float64(a.n), AccountCount: a.n})
	}
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
