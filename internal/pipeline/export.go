package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"usage-analytics/internal/model"
	"usage-analytics/pkg/utils"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ExportResult represents the result of an export operation
type ExportResult struct {
	Format      string    `json:"format"`
	Path        string    `json:"path"`
	RecordCount int       `json:"record_count"`
	Bytes       int64     `json:"bytes"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}

type exportColumn struct {
	name  string
	value func(model.CompanyRow) string
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// exportColumns lists the fixed columns of the company CSV; node type and
// retention columns follow them.
var exportColumns = []exportColumn{
	{"company_id", func(r model.CompanyRow) string { return strconv.FormatInt(r.CompanyID, 10) }},
	{"company_name", func(r model.CompanyRow) string { return r.CompanyName }},
	{"slug", func(r model.CompanyRow) string { return r.Slug }},
	{"email", func(r model.CompanyRow) string { return r.Email }},
	{"plan", func(r model.CompanyRow) string { return r.Plan }},
	{"environment", func(r model.CompanyRow) string { return r.Environment }},
	{"created_at", func(r model.CompanyRow) string { return formatTime(r.CreatedAt) }},
	{"days_since_signup", func(r model.CompanyRow) string { return formatIntPtr(r.DaysSinceSignup) }},
	{"days_since_last_session", func(r model.CompanyRow) string { return formatIntPtr(r.DaysSinceLastSession) }},
	{"has_subscription", func(r model.CompanyRow) string { return formatBool(r.HasSubscription) }},
	{"has_active", func(r model.CompanyRow) string { return formatBool(r.HasActive) }},
	{"has_trialing", func(r model.CompanyRow) string { return formatBool(r.HasTrialing) }},
	{"has_brain_studio", func(r model.CompanyRow) string { return formatBool(r.HasBrainStudio) }},
	{"brain_active", func(r model.CompanyRow) string { return formatBool(r.BrainActive) }},
	{"has_connect", func(r model.CompanyRow) string { return formatBool(r.HasConnect) }},
	{"connect_active", func(r model.CompanyRow) string { return formatBool(r.ConnectActive) }},
	{"connect_trialing", func(r model.CompanyRow) string { return formatBool(r.ConnectTrialing) }},
	{"has_bot", func(r model.CompanyRow) string { return formatBool(r.HasBot) }},
	{"bot_count", func(r model.CompanyRow) string { return strconv.Itoa(r.BotCount) }},
	{"has_prod_channel", func(r model.CompanyRow) string { return formatBool(r.HasProdChannel) }},
	{"used_conversations", func(r model.CompanyRow) string { return formatBool(r.UsedConversations) }},
	{"exceeded_free_tier", func(r model.CompanyRow) string { return formatBool(r.ExceededFreeTier) }},
	{"actually_paid", func(r model.CompanyRow) string { return formatBool(r.ActuallyPaid) }},
	{"total_paid", func(r model.CompanyRow) string { return r.TotalPaid.StringFixed(2) }},
	{"sandbox_executions", func(r model.CompanyRow) string { return strconv.FormatInt(r.SandboxExecutions, 10) }},
	{"prod_executions", func(r model.CompanyRow) string { return strconv.FormatInt(r.ProdExecutions, 10) }},
	{"created_templates", func(r model.CompanyRow) string { return strconv.FormatInt(r.CreatedTemplates, 10) }},
	{"template_events", func(r model.CompanyRow) string { return strconv.FormatInt(r.TemplateEvents, 10) }},
	{"total_nodes_created", func(r model.CompanyRow) string { return strconv.FormatInt(r.TotalNodesCreated, 10) }},
	{"created_node", func(r model.CompanyRow) string { return formatBool(r.CreatedNode) }},
	{"total_time_minutes", func(r model.CompanyRow) string { return formatFloat(r.TotalTimeMinutes) }},
	{"avg_session_minutes", func(r model.CompanyRow) string { return formatFloat(r.AvgSessionMinutes) }},
	{"session_count_sd", func(r model.CompanyRow) string { return formatFloat(r.SessionCountSD) }},
	{"first_session", func(r model.CompanyRow) string { return formatTime(r.FirstSession) }},
	{"last_session", func(r model.CompanyRow) string { return formatTime(r.LastSession) }},
	{"days_active", func(r model.CompanyRow) string { return strconv.FormatInt(r.DaysActive, 10) }},
	{"total_sessions", func(r model.CompanyRow) string { return strconv.FormatInt(r.TotalSessions, 10) }},
	{"days_to_last_activity", func(r model.CompanyRow) string { return formatIntPtr(r.DaysToLastActivity) }},
}

// CompanyCSVHeader returns the export header for a table with cats.
func CompanyCSVHeader(cats []model.NodeCategory) []string {
	header := make([]string, 0, len(exportColumns)+len(cats)+model.LadderSize)
	for _, col := range exportColumns {
		header = append(header, col.name)
	}
	for _, cat := range cats {
		header = append(header, cat.Key)
	}
	for _, p := range model.RetentionLadder {
		header = append(header, p.Flag)
	}
	return header
}

// WriteCompanyCSV writes rows as CSV and returns the number of data rows
// written.
func WriteCompanyCSV(w io.Writer, rows []model.CompanyRow, cats []model.NodeCategory) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(CompanyCSVHeader(cats)); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	count := 0
	for _, r := range rows {
		rec := make([]string, 0, len(exportColumns)+len(cats)+model.LadderSize)
		for _, col := range exportColumns {
			rec = append(rec, col.value(r))
		}
		for _, cat := range cats {
			rec = append(rec, formatBool(r.NodeTypes[cat.Key]))
		}
		for i := range model.RetentionLadder {
			rec = append(rec, formatBool(r.RetainedAt(i)))
		}
		if err := writer.Write(rec); err != nil {
			return count, fmt.Errorf("failed to write row: %w", err)
		}
		count++
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return count, fmt.Errorf("failed to flush csv: %w", err)
	}
	return count, nil
}

// WriteCompanyJSON writes rows with export metadata as indented JSON.
func WriteCompanyJSON(w io.Writer, rows []model.CompanyRow, snapshotID string) (int, error) {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	doc := map[string]interface{}{
		"export_info": map[string]interface{}{
			"snapshot_id":  snapshotID,
			"exported_at":  time.Now().UTC(),
			"record_count": len(rows),
			"export_type":  "company_table",
		},
		"data": rows,
	}
	if err := encoder.Encode(doc); err != nil {
		return 0, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return len(rows), nil
}

// ExportCompanies writes rows into the run directory under dir. The file is
// companies.csv or companies.json depending on format.
func ExportCompanies(dir *utils.ExportDir, runID string, rows []model.CompanyRow, cats []model.NodeCategory, format string) ExportResult {
	if format != FormatJSON {
		format = FormatCSV
	}
	result := ExportResult{Format: format, ExportedAt: time.Now().UTC()}

	path, err := dir.FilePath(runID, "companies."+format)
	if err != nil {
		return exportFailed(result, err)
	}
	result.Path = path

	file, err := os.Create(path)
	if err != nil {
		return exportFailed(result, fmt.Errorf("failed to create file: %w", err))
	}
	defer file.Close()

	var count int
	switch utils.FormatOf(path) {
	case FormatJSON:
		count, err = WriteCompanyJSON(file, rows, runID)
	default:
		count, err = WriteCompanyCSV(file, rows, cats)
	}
	result.RecordCount = count
	if err != nil {
		return exportFailed(result, err)
	}

	if size, err := utils.FileSize(path); err == nil {
		result.Bytes = size
	}
	result.Success = true
	log.Printf("💾 Exported %d companies to %s", count, path)
	return result
}

func exportFailed(result ExportResult, err error) ExportResult {
	result.Error = err.Error()
	log.Printf("❌ Export failed: %v", err)
	return result
}
