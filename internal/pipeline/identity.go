package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"usage-analytics/pkg/utils"
)

// CompanyIDColumn is the join key shared by every source table.
const CompanyIDColumn = "company_id"

// NormalizeID coerces a mixed-representation identifier to int64. Values
// such as "42", "42.0", 42.0 and int64(42) all map to 42; anything that is
// not an integral number is rejected.
func NormalizeID(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		return floatID(x)
	case float32:
		return floatID(float64(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatID(f)
		}
	}
	return 0, false
}

func floatID(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// NormalizeIDs returns a copy of t whose id column holds int64 values.
// Unparseable ids are dropped from the row so it never matches a join.
func NormalizeIDs(t *Table, column string) *Table {
	if t == nil || !t.Has(column) {
		return t
	}
	out := &Table{Name: t.Name, Columns: t.Columns, Skipped: t.Skipped, Records: make([]GenericRecord, len(t.Records))}
	for i, rec := range t.Records {
		cp := make(GenericRecord, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		if id, ok := NormalizeID(rec[column]); ok {
			cp[column] = id
		} else {
			delete(cp, column)
		}
		out.Records[i] = cp
	}
	return out
}

// ------------------- Record accessors -------------------

func idOf(rec GenericRecord) (int64, bool) {
	id, ok := rec[CompanyIDColumn].(int64)
	if ok {
		return id, true
	}
	return NormalizeID(rec[CompanyIDColumn])
}

func stringOf(rec GenericRecord, col string) string {
	switch v := rec[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return strconv.FormatFloat(numberOf(rec, col), 'f', -1, 64)
	}
}

func numberOf(rec GenericRecord, col string) float64 {
	f, _ := utils.Numeric(rec[col])
	return f
}

func intOf(rec GenericRecord, col string) int64 {
	return int64(math.Round(numberOf(rec, col)))
}

func boolOf(rec GenericRecord, col string) bool {
	return utils.Truthy(rec[col])
}

// isOne matches indicator cells equal to 1. Boolean spellings count, so a
// column exported as true/false reads the same as one exported as 1/0.
func isOne(rec GenericRecord, col string) bool {
	if n, ok := utils.Numeric(rec[col]); ok {
		return n == 1
	}
	return utils.Truthy(rec[col])
}

func timeOf(rec GenericRecord, col string) *time.Time {
	switch v := rec[col].(type) {
	case time.Time:
		return &v
	case string:
		if t, ok := ParseTimestamp(v); ok {
			return &t
		}
	}
	return nil
}
