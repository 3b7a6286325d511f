package model

import "time"

// Table load statuses.
const (
	TableLoaded  = "loaded"
	TableAbsent  = "absent"
	TableInvalid = "invalid"
	TableError   = "error"
)

// TableReport describes how one source table was loaded.
type TableReport struct {
	Table    string        `json:"table"`
	File     string        `json:"file"`
	Status   string        `json:"status"`
	Rows     int           `json:"rows"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// ExclusionReport counts the rows removed by each exclusion rule. A row
// matching several rules is counted under the first one that removed it.
type ExclusionReport struct {
	Input      int `json:"input"`
	ByEmail    int `json:"by_email"`
	BySlug     int `json:"by_slug"`
	ByDenyList int `json:"by_deny_list"`
	Remaining  int `json:"remaining"`
}

// Removed is the total number of rows dropped.
func (r ExclusionReport) Removed() int {
	return r.ByEmail + r.BySlug + r.ByDenyList
}

// LoadReport summarises one snapshot build.
type LoadReport struct {
	SnapshotID string          `json:"snapshot_id"`
	Key        string          `json:"key"`
	BuiltAt    time.Time       `json:"built_at"`
	Duration   time.Duration   `json:"duration"`
	Origin     string          `json:"origin"`
	Companies  int             `json:"companies"`
	Exclusion  ExclusionReport `json:"exclusion"`
	Tables     []TableReport   `json:"tables"`
	Stages     []StageTiming   `json:"stages,omitempty"`
}

// StageTiming records one stage of a snapshot build.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Status   string        `json:"status"`
	Records  int64         `json:"records"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Missing lists the tables that were not loaded.
func (r LoadReport) Missing() []string {
	var out []string
	for _, t := range r.Tables {
		if t.Status != TableLoaded {
			out = append(out, t.Table)
		}
	}
	return out
}
