package pipeline

import (
	"time"

	"usage-analytics/internal/model"
)

// RetentionCurve computes the retention ladder over companies. Each rung
// counts only companies old enough to have reached it; rungs with nobody
// eligible, or that were never measured, are omitted. Day 0 is always the
// 100% baseline. A nil result means there is not enough data.
func RetentionCurve(companies []model.Company, measured [model.LadderSize]bool, now time.Time) []model.RetentionRecord {
	if len(companies) == 0 || !anyMeasured(measured) {
		return nil
	}

	curve := []model.RetentionRecord{{
		Period:   model.BaselineLabel,
		Eligible: len(companies),
		Retained: len(companies),
		Rate:     100,
	}}
	for i, p := range model.RetentionLadder {
		if !measured[i] {
			continue
		}
		eligible, retained := rung(companies, i, now)
		if eligible == 0 {
			continue
		}
		curve = append(curve, model.RetentionRecord{
			Period:     p.Label,
			MinAgeDays: p.MinAgeDays,
			Eligible:   eligible,
			Retained:   retained,
			Rate:       float64(retained) / float64(eligible) * 100,
		})
	}
	return curve
}

// FeatureRetention is RetentionCurve over a whole feature table.
func FeatureRetention(ft *model.FeatureTable, now time.Time) []model.RetentionRecord {
	if ft == nil {
		return nil
	}
	return RetentionCurve(ft.Companies, ft.Measured, now)
}

// ProductCurves splits retention by product family.
func ProductCurves(ft *model.FeatureTable, now time.Time) model.ProductRetention {
	if ft == nil {
		return model.ProductRetention{}
	}
	var brain, connect []model.Company
	for _, c := range ft.Companies {
		if c.HasBrainStudio {
			brain = append(brain, c)
		}
		if c.HasConnect {
			connect = append(connect, c)
		}
	}
	return model.ProductRetention{
		Overall:     RetentionCurve(ft.Companies, ft.Measured, now),
		BrainStudio: RetentionCurve(brain, ft.Measured, now),
		Connect:     RetentionCurve(connect, ft.Measured, now),
	}
}

// Eligible reports whether a company is old enough for ladder rung i.
func Eligible(c model.Company, i int, now time.Time) bool {
	age, ok := c.SignupAge(now)
	return ok && age >= model.RetentionLadder[i].MinAgeDays
}

func rung(companies []model.Company, i int, now time.Time) (eligible, retained int) {
	for _, c := range companies {
		if !Eligible(c, i, now) {
			continue
		}
		eligible++
		if c.RetainedAt(i) {
			retained++
		}
	}
	return eligible, retained
}

func anyMeasured(measured [model.LadderSize]bool) bool {
	for _, m := range measured {
		if m {
			return true
		}
	}
	return false
}
