package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"usage-analytics/internal/model"
)

func TestMatchRuleOrder(t *testing.T) {
	r := DefaultExclusionRules()
	r.DenyList = map[string]struct{}{"acme test co": {}}

	cases := []struct {
		email, slug, name string
		want              string
	}{
		{"ops@JELOU.ai", "jelou-demo", "Acme Test Co", RuleEmail},
		{"impersonate+1@x.com", "", "", RuleEmail},
		{"a@b.com", "my-jelou-bot", "", RuleSlug},
		{"a@b.com", "acme", "  ACME test co ", RuleDenyList},
		{"a@b.com", "acme", "Acme Ltd", ""},
		{"", "", "", ""},
	}
	for _, tc := range cases {
		if got := r.Match(tc.email, tc.slug, tc.name); got != tc.want {
			t.Fatalf("Match(%q,%q,%q) = %q, want %q", tc.email, tc.slug, tc.name, got, tc.want)
		}
	}
}

func TestFilterTableIsIdempotent(t *testing.T) {
	signups := &Table{
		Name:    TableSignups,
		Columns: []string{CompanyIDColumn, "email", "slug", "company_name"},
		Records: []GenericRecord{
			{CompanyIDColumn: int64(1), "email": "a@acme.com", "slug": "acme", "company_name": "Acme"},
			{CompanyIDColumn: int64(2), "email": "dev@jelou.ai", "slug": "x", "company_name": "X"},
			{CompanyIDColumn: int64(3), "email": "b@b.com", "slug": "jelou-qa", "company_name": "QA"},
		},
	}
	rules := DefaultExclusionRules()
	once, report := rules.FilterTable(signups)
	if once.Len() != 1 || report.ByEmail != 1 || report.BySlug != 1 {
		t.Fatalf("unexpected first pass: len=%d report=%+v", once.Len(), report)
	}
	twice, report2 := rules.FilterTable(once)
	if twice.Len() != once.Len() || report2.Removed() != 0 {
		t.Fatalf("second pass removed rows: %+v", report2)
	}
	if signups.Len() != 3 {
		t.Fatalf("input table was modified")
	}
}

func TestDenyListNormalisesNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "excluded_companies.json")
	if err := os.WriteFile(path, []byte(`{"excluded_companies": ["Acme Test Co"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	rules := DefaultExclusionRules().WithDenyList(path)

	companies := []model.Company{
		{CompanyID: 1, CompanyName: "acme test co "},
		{CompanyID: 2, CompanyName: "Acme Testing"},
	}
	kept, report := rules.FilterCompanies(companies)
	if len(kept) != 1 || kept[0].CompanyID != 2 {
		t.Fatalf("expected only company 2 kept, got %+v", kept)
	}
	if report.ByDenyList != 1 || report.Remaining != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestLoadDenyListYAMLAndMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deny.yaml")
	if err := os.WriteFile(path, []byte("excluded_companies:\n  - Beta Corp\n  - \"  \"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	names, err := LoadDenyList(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := names["beta corp"]; !ok || len(names) != 1 {
		t.Fatalf("unexpected deny-list %v", names)
	}

	names, err = LoadDenyList(filepath.Join(dir, "missing.json"))
	if err != nil || len(names) != 0 {
		t.Fatalf("missing file should be an empty list, got %v %v", names, err)
	}
}
