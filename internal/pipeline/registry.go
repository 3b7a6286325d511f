package pipeline

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"usage-analytics/internal/model"
)

// GenericRecord is one parsed row of a source table. Values are strings,
// UTC time.Time for date columns, or int64 for normalised company ids.
// Null cells are absent from the map.
type GenericRecord map[string]interface{}

// Source table keys.
const (
	TableSignups            = "signups"
	TableSubscriptions      = "subscriptions"
	TableBots               = "bots"
	TableCreditWallet       = "credit_wallet"
	TableStripeInvoices     = "stripe_invoices"
	TableWalletTransactions = "wallet_transactions"
	TableWorkflowExecutions = "workflow_executions"
	TableNodeExecutions     = "node_executions"
	TableUserActivity       = "user_activity"
	TableUserSessions       = "user_sessions"
	TableAnalysis           = "analysis"
	TableCompanyEngagement  = "company_engagement"
	TableTemplateUsage      = "template_usage"
	TableSessionsDuration   = "sessions_duration"
	TableNodesUsed          = "nodes_used"
)

// ErrTableAbsent is returned when a declared table has no backing file.
var ErrTableAbsent = errors.New("table absent")

// TableSpec declares one expected source table.
type TableSpec struct {
	Key   string
	File  string
	Rules ValidationRules
	// MinFields > 0 enables ragged parsing: rows with fewer fields are
	// skipped, the rest are padded or truncated to the header width.
	MinFields int
	// Positional renames the leading header columns by position.
	Positional []string
}

// DeclaredTables is the fixed input file set.
var DeclaredTables = []TableSpec{
	{Key: TableSignups, File: "signups.csv", Rules: ValidationRules{RequiredColumns: []string{CompanyIDColumn}}},
	{Key: TableSubscriptions, File: "subscriptions.csv", MinFields: 5, Rules: ValidationRules{RequiredColumns: []string{CompanyIDColumn}}},
	{Key: TableBots, File: "bots.csv", Rules: ValidationRules{RequiredColumns: []string{CompanyIDColumn}}},
	{Key: TableCreditWallet, File: "credit_wallet.csv", Rules: ValidationRules{RequiredColumns: []string{CompanyIDColumn}}},
	{Key: TableStripeInvoices, File: "stripe_invoices.csv", Rules: ValidationRules{RequiredColumns: []string{CompanyIDColumn}}},
	{Key: TableWalletTransactions, File: "wallet_transactions.csv", Rules: ValidationRules{RequiredColumns: []string{CompanyIDColumn}}},
	{Key: TableWorkflowExecutions, File: "workflow_executions.csv", Rules: ValidationRules{RequiredColumns: []string{CompanyIDColumn}}},
	{Key: TableNodeExecutions, File: "node_executions.csv"},
	{Key: TableUserActivity, File: "user_activity_logs.csv"},
	{Key: TableUserSessions, File: "user_sessions.csv", Rules: ValidationRules{RequiredColumns: []string{CompanyIDColumn}}},
	{Key: TableAnalysis, File: "analysis_combined.csv", Rules: ValidationRules{RequiredColumns: []string{CompanyIDColumn}}},
	{Key: TableCompanyEngagement, File: "company_engagement.csv", Rules: ValidationRules{RequiredColumns: []string{CompanyIDColumn}}},
	{Key: TableTemplateUsage, File: "template_usage_connect.csv", Rules: ValidationRules{RequiredColumns: []string{CompanyIDColumn}}},
	{
		Key:        TableSessionsDuration,
		File:       "sessions_duration.csv",
		Positional: []string{CompanyIDColumn, "total_time_minutes", "avg_session_minutes", "session_count"},
		Rules:      ValidationRules{RequiredColumns: []string{CompanyIDColumn}},
	},
	{
		Key:  TableNodesUsed,
		File: "nodes_used.csv",
		Rules: ValidationRules{
			RequiredColumns: []string{CompanyIDColumn, "nodeTypeId", "nodes_created"},
			NumericColumns:  []string{"nodeTypeId", "nodes_created"},
		},
	},
}

// Table is a loaded source table. A nil *Table is Absent.
type Table struct {
	Name    string
	Columns []string
	Records []GenericRecord
	Skipped int
}

// Len returns the row count; Absent tables have none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Has reports whether the table declares the column.
func (t *Table) Has(column string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Tables maps table keys to loaded tables. Missing keys and nil values are
// both Absent.
type Tables map[string]*Table

// Get returns the table or nil.
func (ts Tables) Get(key string) *Table {
	if ts == nil {
		return nil
	}
	return ts[key]
}

// Registry loads the declared tables from one directory.
type Registry struct {
	Dir    string
	Specs  []TableSpec
	Limit  int
	Stages []string
}

// NewRegistry returns a registry over dir with the default table set.
func NewRegistry(dir string) *Registry {
	return &Registry{
		Dir:    dir,
		Specs:  DeclaredTables,
		Limit:  4,
		Stages: DefaultTransformations,
	}
}

// Path returns the backing file of spec.
func (r *Registry) Path(spec TableSpec) string {
	return filepath.Join(r.Dir, spec.File)
}

// LoadTable loads a single table. Absence and invalid tables come back as a
// nil table with the reason recorded in the report.
func (r *Registry) LoadTable(ctx context.Context, spec TableSpec) (*Table, model.TableReport) {
	start := time.Now()
	report := model.TableReport{Table: spec.Key, File: spec.File}

	t, err := ingestCSV(ctx, r.Path(spec), spec, r.Stages)
	report.Duration = time.Since(start)
	switch {
	case errors.Is(err, ErrTableAbsent):
		report.Status = model.TableAbsent
		return nil, report
	case err != nil:
		report.Status = model.TableError
		report.Error = err.Error()
		log.Printf("⚠️ Error loading %s: %v", spec.File, err)
		return nil, report
	}

	if err := validateTable(t, spec.Rules); err != nil {
		report.Status = model.TableInvalid
		report.Error = err.Error()
		log.Printf("⚠️ %s rejected: %v", spec.File, err)
		return nil, report
	}
	t = NormalizeIDs(t, CompanyIDColumn)

	report.Status = model.TableLoaded
	report.Rows = t.Len()
	report.Skipped = t.Skipped
	return t, report
}

// Load reads every declared table concurrently. It never fails on a single
// table; the returned error is only the context's.
func (r *Registry) Load(ctx context.Context) (Tables, []model.TableReport, error) {
	tables := make(Tables, len(r.Specs))
	reports := make([]model.TableReport, len(r.Specs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	if r.Limit > 0 {
		g.SetLimit(r.Limit)
	}
	for i, spec := range r.Specs {
		i, spec := i, spec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, report := r.LoadTable(ctx, spec)
			mu.Lock()
			tables[spec.Key] = t
			reports[i] = report
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	loaded := 0
	for _, rep := range reports {
		if rep.Status == model.TableLoaded {
			loaded++
		}
	}
	log.Printf("📄 Loaded %d/%d tables from %s", loaded, len(r.Specs), r.Dir)
	return tables, reports, nil
}

// FileSignature identifies the on-disk state of one input file.
type FileSignature struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Signatures stats every declared file. Missing files yield a zero signature.
func (r *Registry) Signatures() []FileSignature {
	sigs := make([]FileSignature, 0, len(r.Specs))
	for _, spec := range r.Specs {
		sigs = append(sigs, statSignature(r.Path(spec), spec.File))
	}
	return sigs
}

func statSignature(path, name string) FileSignature {
	sig := FileSignature{Name: name}
	info, err := os.Stat(path)
	if err != nil {
		return sig
	}
	sig.Size = info.Size()
	sig.ModTime = info.ModTime().UTC()
	return sig
}
