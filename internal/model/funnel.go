package model

// Flow diagram bucket keys.
const (
	BucketSignups = "signups"

	BucketCreatedNode    = "created_node"
	BucketNoNode         = "did_not_create_node"
	BucketWorkflowOnly   = "ran_workflow_only"
	BucketTrialOnly      = "connect_trial_only"
	BucketCrossProduct   = "cross_product"
	BucketNeither        = "neither"
	BucketSandbox        = "validated_sandbox"
	BucketTemplates      = "created_templates"
	BucketProduction     = "live_in_production"
	BucketPaid           = "paid_connect"
	BucketDropped        = "dropped_off"
	BucketNoFurtherSteps = "no_further_actions"
)

// Assignment is the bucket a company occupies in each partitioning column
// of the flow diagram. NodeType is empty when the company created no node.
type Assignment struct {
	CompanyID  int64  `json:"company_id"`
	Created    string `json:"created"`    // column 2
	NodeType   string `json:"node_type"`  // column 3
	Engagement string `json:"engagement"` // column 4
	Sandbox    bool   `json:"sandbox"`    // column 5
	Templates  bool   `json:"templates"`  // column 5
	Outcome    string `json:"outcome"`    // column 6
}

// Bucket is one labelled node of the flow diagram.
type Bucket struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// FunnelColumn is one vertical slice of the flow diagram.
type FunnelColumn struct {
	Index   int      `json:"index"`
	Title   string   `json:"title"`
	Buckets []Bucket `json:"buckets"`
}

// Total sums the bucket volumes of the column.
func (c FunnelColumn) Total() int {
	total := 0
	for _, b := range c.Buckets {
		total += b.Count
	}
	return total
}

// Count returns the volume of the bucket with the given key.
func (c FunnelColumn) Count(key string) int {
	for _, b := range c.Buckets {
		if b.Key == key {
			return b.Count
		}
	}
	return 0
}

// FlowLink is a volume moving between two buckets.
type FlowLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  int    `json:"value"`
}

// FlowDiagram is the full multi-column journey from signup to outcome.
type FlowDiagram struct {
	Total       int            `json:"total"`
	Columns     []FunnelColumn `json:"columns"`
	Links       []FlowLink     `json:"links"`
	Assignments []Assignment   `json:"assignments,omitempty"`
}

// Column returns the column with the given 1-based index.
func (d *FlowDiagram) Column(index int) FunnelColumn {
	for _, c := range d.Columns {
		if c.Index == index {
			return c
		}
	}
	return FunnelColumn{Index: index}
}

// LinkValue returns the volume of the link source -> target.
func (d *FlowDiagram) LinkValue(source, target string) int {
	for _, l := range d.Links {
		if l.Source == source && l.Target == target {
			return l.Value
		}
	}
	return 0
}

// FunnelStage is one step of the linear activation funnel.
type FunnelStage struct {
	Stage          string  `json:"stage"`
	Count          int     `json:"count"`
	Percentage     float64 `json:"percentage"`
	DropOff        int     `json:"drop_off"`
	DropOffPercent float64 `json:"drop_off_percent"`
}

// StageTime is the average time in app for companies at one journey stage.
type StageTime struct {
	Stage        string  `json:"stage"`
	AvgMinutes   float64 `json:"avg_minutes"`
	AccountCount int     `json:"account_count"`
}
