package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"usage-analytics/internal/model"
)

func optionLabel(c model.Company) string {
	name := c.CompanyName
	if name == "" {
		name = fmt.Sprintf("Company %d", c.CompanyID)
	}
	if c.Slug == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, c.Slug)
}

// ExplorerOptions lists the companies for the explorer picker, sorted by
// name. With a query the options are ranked by fuzzy match against the
// label instead, best first. limit <= 0 returns every option.
func ExplorerOptions(ft *model.FeatureTable, query string, limit int) []model.CompanyOption {
	if ft == nil {
		return nil
	}
	options := make([]model.CompanyOption, 0, len(ft.Companies))
	for _, c := range ft.Companies {
		options = append(options, model.CompanyOption{CompanyID: c.CompanyID, Label: optionLabel(c)})
	}
	sort.SliceStable(options, func(i, j int) bool {
		return strings.ToLower(options[i].Label) < strings.ToLower(options[j].Label)
	})

	if q := strings.TrimSpace(query); q != "" {
		labels := make([]string, len(options))
		for i, o := range options {
			labels[i] = o.Label
		}
		matches := fuzzy.Find(q, labels)
		ranked := make([]model.CompanyOption, 0, len(matches))
		for _, m := range matches {
			ranked = append(ranked, options[m.Index])
		}
		options = ranked
	}

	if limit > 0 && len(options) > limit {
		options = options[:limit]
	}
	return options
}

// ExplorerDetail returns the joined row of one company plus the raw source
// rows that reference it.
func ExplorerDetail(snap *Snapshot, id int64, now time.Time) (model.CompanyDetail, bool) {
	if snap == nil {
		return model.CompanyDetail{}, false
	}
	c, ok := snap.Features.Find(id)
	if !ok {
		return model.CompanyDetail{}, false
	}
	detail := model.CompanyDetail{
		Company:       c,
		Subscriptions: rowsFor(snap.Tables.Get(TableSubscriptions), id),
		Bots:          rowsFor(snap.Tables.Get(TableBots), id),
		Transactions:  rowsFor(snap.Tables.Get(TableWalletTransactions), id),
		Invoices:      rowsFor(snap.Tables.Get(TableStripeInvoices), id),
		Sessions:      rowsFor(snap.Tables.Get(TableUserSessions), id),
	}
	if age, ok := c.SignupAge(now); ok {
		detail.SignupAgeDays = &age
	}
	return detail, true
}

func rowsFor(t *Table, id int64) []map[string]interface{} {
	out := []map[string]interface{}{}
	if t == nil {
		return out
	}
	for _, rec := range t.Records {
		if rid, ok := idOf(rec); ok && rid == id {
			out = append(out, map[string]interface{}(rec))
		}
	}
	return out
}
