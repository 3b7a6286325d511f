package pipeline

import (
	"fmt"

	"usage-analytics/pkg/utils"
)

// ValidationRules describe the shape a source table must have.
type ValidationRules struct {
	// RequiredColumns must all be declared in the header, otherwise the
	// table is rejected as a whole.
	RequiredColumns []string
	// NumericColumns must parse as numbers when present; rows that fail are
	// dropped as malformed.
	NumericColumns []string
}

// validateTable checks the header against the rules.
func validateTable(t *Table, rules ValidationRules) error {
	if t == nil {
		return nil
	}
	if len(t.Columns) == 0 && len(rules.RequiredColumns) > 0 {
		return fmt.Errorf("empty header")
	}
	for _, col := range rules.RequiredColumns {
		if !t.Has(col) {
			return fmt.Errorf("missing required column: %s", col)
		}
	}
	return nil
}

// validateRecord applies the per-row checks.
func validateRecord(rec GenericRecord, rules ValidationRules) bool {
	for _, field := range rules.NumericColumns {
		val, ok := rec[field]
		if !ok {
			continue
		}
		if _, ok := utils.Numeric(val); !ok {
			return false
		}
	}
	return true
}
