package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"usage-analytics/internal/model"
)

func specFor(t *testing.T, key string) TableSpec {
	t.Helper()
	for _, s := range DeclaredTables {
		if s.Key == key {
			return s
		}
	}
	t.Fatalf("no spec for %s", key)
	return TableSpec{}
}

func TestReadCSVPadsShortRowsAndSkipsLongOnes(t *testing.T) {
	in := "company_id,company_name,created_at\n1,Acme,2025-01-02\n2,Short\n3,Beta,2025-01-03 10:00:00\n4,Long,2025-01-04,extra\n"
	tbl, err := readCSV(context.Background(), strings.NewReader(in), specFor(t, TableSignups), DefaultTransformations)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 3 || tbl.Skipped != 1 {
		t.Fatalf("expected 3 rows and 1 skipped, got %d/%d", tbl.Len(), tbl.Skipped)
	}
	if tbl.Records[1]["company_name"] != "Short" {
		t.Fatalf("short row should be kept: %#v", tbl.Records[1])
	}
	if _, ok := tbl.Records[1]["created_at"]; ok {
		t.Fatalf("missing trailing cell should be null")
	}
	created, ok := tbl.Records[2]["created_at"].(time.Time)
	if !ok {
		t.Fatalf("created_at not parsed: %#v", tbl.Records[2]["created_at"])
	}
	if !created.Equal(time.Date(2025, 1, 3, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created_at %v", created)
	}
}

func TestReadCSVRaggedSubscriptions(t *testing.T) {
	in := strings.Join([]string{
		"company_id,product_name,status,created_at,metadata,extra",
		`1,Connect Pro,ACTIVE,2025-01-02,"{""a"":1}",x,overflow`,
		"2,Brain,TRIALING,2025-01-02,{}",
		"3,Brain,ACTIVE",
	}, "\n")
	tbl, err := readCSV(context.Background(), strings.NewReader(in), specFor(t, TableSubscriptions), DefaultTransformations)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if tbl.Skipped != 1 {
		t.Fatalf("expected the 3-field row skipped, got %d", tbl.Skipped)
	}
	if _, ok := tbl.Records[1]["extra"]; ok {
		t.Fatalf("padded cell should be null and removed")
	}
}

func TestReadCSVPositionalColumnsAndBOM(t *testing.T) {
	in := "\ufeffid,sum_minutes,avg,n\n7,120.5,30,4\n"
	tbl, err := readCSV(context.Background(), strings.NewReader(in), specFor(t, TableSessionsDuration), DefaultTransformations)
	if err != nil {
		t.Fatal(err)
	}
	for _, col := range []string{CompanyIDColumn, "total_time_minutes", "avg_session_minutes", "session_count"} {
		if !tbl.Has(col) {
			t.Fatalf("missing renamed column %s in %v", col, tbl.Columns)
		}
	}
}

func TestUnparseableDateBecomesNull(t *testing.T) {
	in := "company_id,created_at\n1,not a date\n"
	tbl, err := readCSV(context.Background(), strings.NewReader(in), specFor(t, TableSignups), DefaultTransformations)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tbl.Records[0]["created_at"]; ok {
		t.Fatalf("expected unparseable date to be dropped, got %#v", tbl.Records[0]["created_at"])
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	want := time.Date(2025, 11, 20, 8, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"2025-11-20T08:30:00Z",
		"2025-11-20 08:30:00",
		"2025-11-20 08:30:00.000",
		"2025-11-20 03:30:00-05:00",
	} {
		got, ok := ParseTimestamp(s)
		if !ok || !got.Equal(want) {
			t.Fatalf("ParseTimestamp(%q) = %v,%v", s, got, ok)
		}
	}
	if _, ok := ParseTimestamp("20/11/2025"); ok {
		t.Fatalf("expected unsupported layout to fail")
	}
}

func TestRegistryReportsAbsentAndInvalid(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "signups.csv", "company_id,company_name", "1,Acme")
	writeCSV(t, dir, "bots.csv", "bot_id,state", "9,1")

	tables, reports, err := NewRegistry(dir).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	status := map[string]string{}
	for _, r := range reports {
		status[r.Table] = r.Status
	}
	if status[TableSignups] != model.TableLoaded {
		t.Fatalf("signups: %s", status[TableSignups])
	}
	if status[TableBots] != model.TableInvalid {
		t.Fatalf("bots without company_id should be invalid, got %s", status[TableBots])
	}
	if status[TableStripeInvoices] != model.TableAbsent {
		t.Fatalf("invoices: %s", status[TableStripeInvoices])
	}
	if tables.Get(TableBots) != nil || tables.Get(TableStripeInvoices) != nil {
		t.Fatalf("invalid and absent tables must be nil")
	}
	if id, ok := tables.Get(TableSignups).Records[0][CompanyIDColumn].(int64); !ok || id != 1 {
		t.Fatalf("company_id not normalised: %#v", tables.Get(TableSignups).Records[0][CompanyIDColumn])
	}
}

func TestNodesUsedDropsNonNumericRows(t *testing.T) {
	in := "company_id,nodeTypeId,nodes_created\n1,3,5\n2,abc,1\n"
	tbl, err := readCSV(context.Background(), strings.NewReader(in), specFor(t, TableNodesUsed), DefaultTransformations)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 1 || tbl.Skipped != 1 {
		t.Fatalf("expected 1 row and 1 skipped, got %d/%d", tbl.Len(), tbl.Skipped)
	}
}
