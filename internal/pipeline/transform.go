package pipeline

import (
	"fmt"
	"strings"
)

// DefaultTransformations run on every ingested row, in order.
var DefaultTransformations = []string{"trimStrings", "emptyToNull", "parseDates", "removeNulls"}

// applyTransformations applies all specified transformations to a record
func applyTransformations(rec GenericRecord, transformations []string) (GenericRecord, error) {
	result := make(GenericRecord, len(rec))
	for k, v := range rec {
		result[k] = v
	}

	for _, transform := range transformations {
		switch transform {
		case "trimStrings":
			result = trimStrings(result)
		case "emptyToNull":
			result = emptyToNull(result)
		case "parseDates":
			result = parseDates(result)
		case "removeNulls":
			result = removeNulls(result)
		default:
			return nil, fmt.Errorf("unknown transformation: %s", transform)
		}
	}

	return result, nil
}

// trimStrings trims whitespace from all string fields
func trimStrings(rec GenericRecord) GenericRecord {
	for key, val := range rec {
		if str, ok := val.(string); ok {
			rec[key] = strings.TrimSpace(str)
		}
	}
	return rec
}

// emptyToNull turns empty cells into nulls.
func emptyToNull(rec GenericRecord) GenericRecord {
	for key, val := range rec {
		if str, ok := val.(string); ok && str == "" {
			rec[key] = nil
		}
	}
	return rec
}

// parseDates converts date columns to UTC timestamps. Unparseable values
// become null.
func parseDates(rec GenericRecord) GenericRecord {
	for key, val := range rec {
		str, ok := val.(string)
		if !ok || !IsDateColumn(key) {
			continue
		}
		if t, ok := ParseTimestamp(str); ok {
			rec[key] = t
		} else {
			rec[key] = nil
		}
	}
	return rec
}

// removeNulls removes null/nil values from the record
func removeNulls(rec GenericRecord) GenericRecord {
	for key, val := range rec {
		if val == nil {
			delete(rec, key)
		}
	}
	return rec
}
