package pipeline

import (
	"math"
	"sync"
	"time"

	"usage-analytics/pkg/utils"
)

// Aggregation operations.
const (
	AggSum   = "sum"
	AggCount = "count"
	AggMin   = "min"
	AggMax   = "max"
)

// MetricSpec computes one per-company metric. Rows failing Where are
// ignored for this metric only. Date columns aggregate as Unix seconds.
type MetricSpec struct {
	Name   string
	Op     string
	Column string
	Where  func(GenericRecord) bool
}

// AggregatedResult holds the metrics of one company.
type AggregatedResult struct {
	CompanyID   int64              `json:"company_id"`
	Metrics     map[string]float64 `json:"metrics"`
	RecordCount int                `json:"record_count"`
}

// Get returns a metric, zero when the company had no qualifying rows.
func (r *AggregatedResult) Get(name string) float64 {
	if r == nil {
		return 0
	}
	return r.Metrics[name]
}

// Has reports whether any row contributed to the metric.
func (r *AggregatedResult) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Metrics[name]
	return ok
}

// Time converts a min/max metric over a date column back to a timestamp.
func (r *AggregatedResult) Time(name string) *time.Time {
	if !r.Has(name) {
		return nil
	}
	t := time.Unix(int64(r.Metrics[name]), 0).UTC()
	return &t
}

// Aggregates maps company ids to their metrics.
type Aggregates map[int64]*AggregatedResult

// Get returns the company's result or nil.
func (a Aggregates) Get(id int64) *AggregatedResult {
	if a == nil {
		return nil
	}
	return a[id]
}

// aggregationWorker folds a slice of rows into partial results.
type aggregationWorker struct {
	ID      int
	Metrics []MetricSpec
	Results Aggregates
}

// AggregateByCompany groups t by company id. Rows are split across
// workerCount workers whose partial results are merged in worker order, so
// the result does not depend on scheduling. Absent tables yield an empty map.
func AggregateByCompany(t *Table, metrics []MetricSpec, workerCount int) Aggregates {
	if t.Len() == 0 {
		return Aggregates{}
	}
	if workerCount < 1 {
		workerCount = 1
	}
	chunk := (len(t.Records) + workerCount - 1) / workerCount

	workers := make([]*aggregationWorker, 0, workerCount)
	var wg sync.WaitGroup
	for start := 0; start < len(t.Records); start += chunk {
		end := start + chunk
		if end > len(t.Records) {
			end = len(t.Records)
		}
		w := &aggregationWorker{ID: len(workers) + 1, Metrics: metrics, Results: Aggregates{}}
		workers = append(workers, w)

		wg.Add(1)
		go func(w *aggregationWorker, rows []GenericRecord) {
			defer wg.Done()
			for _, rec := range rows {
				w.processRecord(rec)
			}
		}(w, t.Records[start:end])
	}
	wg.Wait()

	final := Aggregates{}
	for _, w := range workers {
		for id, partial := range w.Results {
			existing, ok := final[id]
			if !ok {
				final[id] = partial
				continue
			}
			for _, m := range metrics {
				v, ok := partial.Metrics[m.Name]
				if !ok {
					continue
				}
				if cur, seen := existing.Metrics[m.Name]; seen {
					existing.Metrics[m.Name] = mergeMetricValues(m.Op, cur, v)
				} else {
					existing.Metrics[m.Name] = v
				}
			}
			existing.RecordCount += partial.RecordCount
		}
	}
	return final
}

func (w *aggregationWorker) processRecord(rec GenericRecord) {
	id, ok := idOf(rec)
	if !ok {
		return
	}
	result, ok := w.Results[id]
	if !ok {
		result = &AggregatedResult{CompanyID: id, Metrics: map[string]float64{}}
		w.Results[id] = result
	}
	result.RecordCount++

	for _, m := range w.Metrics {
		if m.Where != nil && !m.Where(rec) {
			continue
		}
		if m.Op == AggCount {
			result.Metrics[m.Name]++
			continue
		}
		v, ok := metricValue(rec, m.Column)
		if !ok {
			continue
		}
		if cur, seen := result.Metrics[m.Name]; seen {
			result.Metrics[m.Name] = mergeMetricValues(m.Op, cur, v)
		} else {
			result.Metrics[m.Name] = v
		}
	}
}

func metricValue(rec GenericRecord, col string) (float64, bool) {
	if t, ok := rec[col].(time.Time); ok {
		return float64(t.Unix()), true
	}
	return utils.Numeric(rec[col])
}

func mergeMetricValues(op string, a, b float64) float64 {
	switch op {
	case AggMin:
		return math.Min(a, b)
	case AggMax:
		return math.Max(a, b)
	default:
		return a + b
	}
}
