package utils

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNumericReadsMixedRepresentations(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" 42.0 ", 42, true},
		{int64(7), 7, true},
		{3.5, 3.5, true},
		{"abc", 0, false},
		{nil, 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := Numeric(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("Numeric(%#v) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []interface{}{"True", "1", "1.0", true, int64(1), "yes"} {
		if !Truthy(v) {
			t.Fatalf("expected %#v to be truthy", v)
		}
	}
	for _, v := range []interface{}{"False", "0", "", nil, false, "nope"} {
		if Truthy(v) {
			t.Fatalf("expected %#v to be falsy", v)
		}
	}
}

func TestParseDurationFallback(t *testing.T) {
	if got := ParseDuration("bogus", time.Hour); got != time.Hour {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := ParseDuration("30m", time.Hour); got != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", got)
	}
}

func TestExportDirKeepsFilesInRun(t *testing.T) {
	base := t.TempDir()
	dir := NewExportDir(base)
	path, err := dir.FilePath("run-1", "../../escape.csv")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(base, "run-1", "escape.csv") {
		t.Fatalf("unexpected path %s", path)
	}
	if FormatOf(path) != "csv" || FormatOf("companies.JSON") != "json" || FormatOf("x.xlsx") != "" {
		t.Fatalf("unexpected export formats")
	}
}
