package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"usage-analytics/internal/model"
	"usage-analytics/internal/pipeline"
	"usage-analytics/internal/store"
)

// SnapshotSource returns the snapshot for the current data directory.
type SnapshotSource interface {
	Get(ctx context.Context) (*pipeline.Snapshot, error)
}

// Dashboard serves the read-only views over the latest snapshot.
type Dashboard struct {
	Source       SnapshotSource
	DefaultStart time.Time
	// Now is overridable in tests.
	Now func() time.Time
}

// NewDashboard returns handlers reading from src.
func NewDashboard(src SnapshotSource, defaultStart time.Time) *Dashboard {
	return &Dashboard{Source: src, DefaultStart: defaultStart, Now: func() time.Time { return time.Now().UTC() }}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

func (d *Dashboard) snapshot(w http.ResponseWriter, r *http.Request) (*pipeline.Snapshot, bool) {
	snap, err := d.Source.Get(r.Context())
	if err != nil {
		http.Error(w, "Failed to load data", http.StatusInternalServerError)
		return nil, false
	}
	return snap, true
}

// view resolves the snapshot and the filtered feature table of a request.
func (d *Dashboard) view(w http.ResponseWriter, r *http.Request) (*pipeline.Snapshot, model.ViewFilter, *model.FeatureTable, bool) {
	snap, ok := d.snapshot(w, r)
	if !ok {
		return nil, model.ViewFilter{}, nil, false
	}
	filter, err := ParseFilter(r, snap.Features, d.DefaultStart, d.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, model.ViewFilter{}, nil, false
	}
	return snap, filter, pipeline.Select(snap.Features, filter), true
}

// Status reports which tables the current snapshot loaded
// @Summary Data status
// @Description Loaded and missing tables of the current snapshot
// @Tags dashboard
// @Produce json
// @Success 200 {object} map[string]interface{} "Load report"
// @Failure 500 {string} string "Failed to load data"
// @Router /status [get]
func (d *Dashboard) Status(w http.ResponseWriter, r *http.Request) {
	snap, ok := d.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]interface{}{
		"snapshotId": snap.ID,
		"key":        snap.Key,
		"builtAt":    snap.BuiltAt,
		"origin":     snap.Features.Origin,
		"companies":  snap.Features.Len(),
		"missing":    snap.Report.Missing(),
		"report":     snap.Report,
		"plans":      pipeline.PlanOptions,
	})
}

// Overview returns headline metrics, trends, retention and cohorts
// @Summary Overview
// @Description Headline metrics, signup trends, retention curves and cohorts for the filtered view
// @Tags dashboard
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param plan query string false "Plan"
// @Success 200 {object} map[string]interface{} "Overview"
// @Failure 400 {string} string "Invalid filter"
// @Router /overview [get]
func (d *Dashboard) Overview(w http.ResponseWriter, r *http.Request) {
	snap, filter, view, ok := d.view(w, r)
	if !ok {
		return
	}
	now := d.Now()
	curves := pipeline.ProductCurves(view, now)
	writeJSON(w, map[string]interface{}{
		"snapshotId":            snap.ID,
		"filter":                filter,
		"empty":                 view.Len() == 0,
		"metrics":               pipeline.Overview(view.Companies, pipeline.RangeDays(filter)),
		"dailySignups":          pipeline.DailySignupSeries(view.Companies),
		"weeklySignups":         pipeline.WeeklySignupSeries(view.Companies),
		"retention":             curves,
		"retentionInsufficient": curves.Overall == nil,
		"cohorts":               pipeline.FeatureCohorts(view, now),
		"weeks":                 pipeline.WeekOptions(view.Companies),
	})
}

// Funnel returns the stage funnel and the six-column flow diagram
// @Summary Funnel
// @Description Stage funnel, six-column flow diagram and time-by-stage correlation
// @Tags dashboard
// @Produce json
// @Success 200 {object} map[string]interface{} "Funnel"
// @Failure 400 {string} string "Invalid filter"
// @Router /funnel [get]
func (d *Dashboard) Funnel(w http.ResponseWriter, r *http.Request) {
	snap, filter, view, ok := d.view(w, r)
	if !ok {
		return
	}
	flow := pipeline.AssignFunnelStages(view.Companies, view.NodeCategories)
	flow.Assignments = nil
	writeJSON(w, map[string]interface{}{
		"snapshotId":  snap.ID,
		"filter":      filter,
		"empty":       view.Len() == 0,
		"stages":      pipeline.StageFunnel(view.Companies),
		"flow":        flow,
		"timeByStage": pipeline.TimeByStage(view.Companies),
		"engagement":  pipeline.EngagementSummary(view.Companies),
	})
}

// Companies returns the filtered company table
// @Summary Company table
// @Description Filtered company table, newest signups first
// @Tags companies
// @Produce json
// @Success 200 {object} map[string]interface{} "Company rows"
// @Failure 400 {string} string "Invalid filter"
// @Router /companies [get]
func (d *Dashboard) Companies(w http.ResponseWriter, r *http.Request) {
	snap, filter, view, ok := d.view(w, r)
	if !ok {
		return
	}
	rows := pipeline.CompanyTable(view.Companies, d.Now())
	writeJSON(w, map[string]interface{}{
		"snapshotId":     snap.ID,
		"filter":         filter,
		"nodeCategories": view.NodeCategories,
		"count":          len(rows),
		"companies":      rows,
	})
}

// ExportCompanies streams the filtered company table as CSV
// @Summary Export companies
// @Description CSV download of the filtered company table
// @Tags companies
// @Produce text/csv
// @Success 200 {file} file "CSV file"
// @Failure 400 {string} string "Invalid filter"
// @Router /companies/export [get]
func (d *Dashboard) ExportCompanies(w http.ResponseWriter, r *http.Request) {
	_, filter, view, ok := d.view(w, r)
	if !ok {
		return
	}
	rows := pipeline.CompanyTable(view.Companies, d.Now())
	name := fmt.Sprintf("companies_%s_%s.csv", filter.From.Format("20060102"), filter.To.Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := pipeline.WriteCompanyCSV(w, rows, view.NodeCategories); err != nil {
		log.Printf("❌ Export stream failed: %v", err)
	}
}

// SearchCompanies returns explorer options
// @Summary Search companies
// @Description Explorer options ranked by fuzzy match
// @Tags companies
// @Produce json
// @Param q query string false "Search text"
// @Param limit query int false "Maximum options"
// @Success 200 {array} model.CompanyOption "Options"
// @Router /companies/search [get]
func (d *Dashboard) SearchCompanies(w http.ResponseWriter, r *http.Request) {
	snap, ok := d.snapshot(w, r)
	if !ok {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, pipeline.ExplorerOptions(snap.Features, r.URL.Query().Get("q"), limit))
}

// CompanyDetail returns one company with its raw source rows
// @Summary Company detail
// @Description Joined row and raw source rows for one company
// @Tags companies
// @Produce json
// @Param id path int true "Company ID"
// @Success 200 {object} model.CompanyDetail "Detail"
// @Failure 400 {string} string "Invalid company ID"
// @Failure 404 {string} string "Company not found"
// @Router /companies/{id} [get]
func (d *Dashboard) CompanyDetail(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/companies/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	id, ok := pipeline.NormalizeID(strings.Trim(r.URL.Path[len(prefix):], "/"))
	if !ok {
		http.Error(w, "Invalid company ID", http.StatusBadRequest)
		return
	}
	snap, ok := d.snapshot(w, r)
	if !ok {
		return
	}
	detail, found := pipeline.ExplorerDetail(snap, id, d.Now())
	if !found {
		http.Error(w, "Company not found", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

// ListLoads returns the snapshot build history
// @Summary Load history
// @Description Snapshot build history
// @Tags dashboard
// @Produce json
// @Param limit query int false "Maximum loads"
// @Success 200 {array} model.LoadReport "Loads"
// @Failure 503 {string} string "History disabled"
// @Router /loads [get]
func (d *Dashboard) ListLoads(w http.ResponseWriter, r *http.Request) {
	if !store.Enabled() {
		http.Error(w, "Load history is disabled", http.StatusServiceUnavailable)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	loads, err := store.ListLoads(limit)
	if err != nil {
		http.Error(w, "Failed to fetch loads", http.StatusInternalServerError)
		return
	}
	writeJSON(w, loads)
}
