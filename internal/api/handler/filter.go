package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"usage-analytics/internal/model"
	"usage-analytics/internal/pipeline"
)

const dateLayout = "2006-01-02"

func parseDate(r *http.Request, name string) (*time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", name, v)
	}
	return &t, nil
}

func parseFlag(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// ParseFilter reads a view filter from query parameters. Missing dates
// default to the span of the data, starting no earlier than floor.
func ParseFilter(r *http.Request, ft *model.FeatureTable, floor, now time.Time) (model.ViewFilter, error) {
	from, err := parseDate(r, "from")
	if err != nil {
		return model.ViewFilter{}, err
	}
	to, err := parseDate(r, "to")
	if err != nil {
		return model.ViewFilter{}, err
	}
	week, err := parseDate(r, "week")
	if err != nil {
		return model.ViewFilter{}, err
	}
	if from == nil || to == nil {
		defFrom, defTo := pipeline.DefaultRange(ft, floor, now)
		switch {
		case from == nil && to == nil:
			from, to = &defFrom, &defTo
		case from == nil:
			if defFrom.After(*to) {
				defFrom = *to
			}
			from = &defFrom
		default:
			if defTo.Before(*from) {
				defTo = *from
			}
			to = &defTo
		}
	}
	if to.Before(*from) {
		return model.ViewFilter{}, fmt.Errorf("invalid range: %s is after %s", from.Format(dateLayout), to.Format(dateLayout))
	}

	q := r.URL.Query()
	return model.ViewFilter{
		From:            from,
		To:              to,
		Plan:            strings.TrimSpace(q.Get("plan")),
		Week:            week,
		HasBot:          parseFlag(r, "has_bot"),
		HasSubscription: parseFlag(r, "has_subscription"),
		InProduction:    parseFlag(r, "in_production"),
		Paid:            parseFlag(r, "paid"),
		RetainedDay1:    parseFlag(r, "retained_day1"),
		RetainedWeek1:   parseFlag(r, "retained_week1"),
		RetainedWeek2:   parseFlag(r, "retained_week2"),
		RetainedWeek3:   parseFlag(r, "retained_week3"),
		RetainedWeek4:   parseFlag(r, "retained_week4"),
		Search:          strings.TrimSpace(q.Get("q")),
	}, nil
}
