package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"usage-analytics/internal/model"
)

// Exclusion rule names, in evaluation order.
const (
	RuleEmail    = "email"
	RuleSlug     = "slug"
	RuleDenyList = "deny_list"
)

// ExclusionRules removes internal and test accounts from the signup universe.
type ExclusionRules struct {
	EmailMarkers []string
	SlugMarkers  []string
	// DenyList holds normalised company names.
	DenyList map[string]struct{}
}

// DefaultExclusionRules returns the internal-account markers with an empty
// deny-list.
func DefaultExclusionRules() ExclusionRules {
	return ExclusionRules{
		EmailMarkers: []string{"@jelou.ai", "impersonate"},
		SlugMarkers:  []string{"jelou"},
		DenyList:     map[string]struct{}{},
	}
}

type denyListFile struct {
	ExcludedCompanies []string `json:"excluded_companies" yaml:"excluded_companies"`
}

// LoadDenyList reads {"excluded_companies": [...]} from a JSON or YAML
// file. A missing file is an empty deny-list, not an error.
func LoadDenyList(path string) (map[string]struct{}, error) {
	names := map[string]struct{}{}
	if path == "" {
		return names, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return names, nil
		}
		return names, fmt.Errorf("read deny-list: %w", err)
	}

	var doc denyListFile
	if jerr := json.Unmarshal(data, &doc); jerr != nil {
		if yerr := yaml.Unmarshal(data, &doc); yerr != nil {
			return names, fmt.Errorf("decode deny-list: %w", yerr)
		}
	}
	for _, n := range doc.ExcludedCompanies {
		if key := NormalizeName(n); key != "" {
			names[key] = struct{}{}
		}
	}
	return names, nil
}

// WithDenyList loads the deny-list into the rules. An unreadable file is
// logged and leaves the deny-list empty.
func (r ExclusionRules) WithDenyList(path string) ExclusionRules {
	names, err := LoadDenyList(path)
	if err != nil {
		log.Printf("[WARNING] Could not load %s: %v", path, err)
		names = map[string]struct{}{}
	}
	r.DenyList = names
	return r
}

// NormalizeName trims and lower-cases a company name for deny-list lookup.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Match returns the first rule that excludes the account, or "".
func (r ExclusionRules) Match(email, slug, name string) string {
	if containsAny(email, r.EmailMarkers) {
		return RuleEmail
	}
	if containsAny(slug, r.SlugMarkers) {
		return RuleSlug
	}
	if len(r.DenyList) > 0 {
		if _, ok := r.DenyList[NormalizeName(name)]; ok && name != "" {
			return RuleDenyList
		}
	}
	return ""
}

func containsAny(s string, markers []string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, m := range markers {
		if m != "" && strings.Contains(s, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func (r ExclusionRules) count(report *model.ExclusionReport, rule string) {
	switch rule {
	case RuleEmail:
		report.ByEmail++
	case RuleSlug:
		report.BySlug++
	case RuleDenyList:
		report.ByDenyList++
	}
}

// FilterTable returns the rows of t that no rule excludes. The input table
// is left untouched.
func (r ExclusionRules) FilterTable(t *Table) (*Table, model.ExclusionReport) {
	report := model.ExclusionReport{Input: t.Len()}
	if t == nil {
		return nil, report
	}
	out := &Table{Name: t.Name, Columns: t.Columns, Skipped: t.Skipped}
	for _, rec := range t.Records {
		rule := r.Match(stringOf(rec, "email"), stringOf(rec, "slug"), stringOf(rec, "company_name"))
		if rule != "" {
			r.count(&report, rule)
			continue
		}
		out.Records = append(out.Records, rec)
	}
	report.Remaining = out.Len()
	logExclusion(t.Name, report)
	return out, report
}

// FilterCompanies applies the rules to joined rows.
func (r ExclusionRules) FilterCompanies(companies []model.Company) ([]model.Company, model.ExclusionReport) {
	report := model.ExclusionReport{Input: len(companies)}
	out := make([]model.Company, 0, len(companies))
	for _, c := range companies {
		rule := r.Match(c.Email, c.Slug, c.CompanyName)
		if rule != "" {
			r.count(&report, rule)
			continue
		}
		out = append(out, c)
	}
	report.Remaining = len(out)
	logExclusion("analysis", report)
	return out, report
}

func logExclusion(table string, report model.ExclusionReport) {
	if report.Removed() == 0 {
		return
	}
	log.Printf("🧹 [INFO] Filtered out %d internal users, %d internal slugs, %d deny-listed companies from %s",
		report.ByEmail, report.BySlug, report.ByDenyList, table)
}
