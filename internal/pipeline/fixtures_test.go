package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"usage-analytics/internal/model"
)

var testNow = time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)

// writeCSV writes lines joined by newlines to dir/name.
func writeCSV(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func loadTables(t *testing.T, dir string) Tables {
	t.Helper()
	tables, _, err := NewRegistry(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return tables
}

func daysAgo(n int) *time.Time {
	ts := testNow.AddDate(0, 0, -n)
	return &ts
}

func allMeasured() [model.LadderSize]bool {
	var m [model.LadderSize]bool
	for i := range m {
		m[i] = true
	}
	return m
}

func findCompany(t *testing.T, ft *model.FeatureTable, id int64) model.Company {
	t.Helper()
	c, ok := ft.Find(id)
	if !ok {
		t.Fatalf("company %d not in feature table", id)
	}
	return c
}
