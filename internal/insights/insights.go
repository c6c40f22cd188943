// Package insights aggregates a batch of assessments into pantry-wide
// analytics: risk and category distributions plus textual suggestions for
// the dashboard.
package insights

import (
	"fmt"
	"math"
	"time"

	"github.com/larder-app/larder/internal/engine"
	"github.com/larder-app/larder/internal/pantry"
)

// Risk bands for distribution reporting.
const (
	BandCritical = "critical"
	BandHigh     = "high"
	BandMedium   = "medium"
	BandLow      = "low"
)

// Band thresholds. Critical aligns with the default discard threshold,
// high with the default consume-soon threshold.
const (
	criticalBand = 0.8
	highBand     = 0.5
	mediumBand   = 0.25
)

// Report is the pantry-wide analytics snapshot derived from one batch of
// assessments. Like recommendations it is ephemeral and recomputed per
// request.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	TotalItems  int       `json:"total_items"`

	RiskDistribution   map[string]int              `json:"risk_distribution"`
	CategoryCounts     map[pantry.Category]int     `json:"category_counts"`
	QuantityByCategory map[pantry.Category]float64 `json:"quantity_by_category"`
	AvgDaysUntilExpiry float64                     `json:"avg_days_until_expiry"`

	// AvgExpiryByCategory is the mean days-until-expiry per category,
	// rounded to one decimal like the pantry-wide average.
	AvgExpiryByCategory map[pantry.Category]float64 `json:"avg_days_until_expiry_by_category"`

	Suggestions []string `json:"suggestions"`
}

// Band maps a risk score to its reporting band.
func Band(score float64) string {
	switch {
	case score >= criticalBand:
		return BandCritical
	case score >= highBand:
		return BandHigh
	case score >= mediumBand:
		return BandMedium
	default:
		return BandLow
	}
}

// Build derives a report from assessed items as of ref. Pure: the caller
// supplies the reference time along with the already-computed assessments.
func Build(assessments []engine.Assessment, items []pantry.Item, ref time.Time) Report {
	r := Report{
		GeneratedAt:         ref,
		TotalItems:          len(items),
		RiskDistribution:    make(map[string]int),
		CategoryCounts:      make(map[pantry.Category]int),
		QuantityByCategory:  make(map[pantry.Category]float64),
		AvgExpiryByCategory: make(map[pantry.Category]float64),
	}

	if len(items) == 0 {
		r.Suggestions = []string{"Your pantry is empty — time to go shopping."}
		return r
	}

	var dteSum float64
	dteByCategory := make(map[pantry.Category]float64)
	var critical, high, lowQuantity int
	for i, a := range assessments {
		r.RiskDistribution[Band(a.Risk.Value)]++
		r.CategoryCounts[a.Category.Category]++
		r.QuantityByCategory[a.Category.Category] += items[i].Quantity
		dteSum += a.Features.DaysUntilExpiry
		dteByCategory[a.Category.Category] += a.Features.DaysUntilExpiry

		switch Band(a.Risk.Value) {
		case BandCritical:
			critical++
		case BandHigh:
			high++
		}
		if items[i].Quantity > 0 && items[i].Quantity <= 1 {
			lowQuantity++
		}
	}
	r.AvgDaysUntilExpiry = math.Round(dteSum/float64(len(assessments))*10) / 10
	for cat, sum := range dteByCategory {
		r.AvgExpiryByCategory[cat] = math.Round(sum/float64(r.CategoryCounts[cat])*10) / 10
	}

	r.Suggestions = suggestions(r, critical, high, lowQuantity, ref)
	return r
}

func suggestions(r Report, critical, high, lowQuantity int, ref time.Time) []string {
	var out []string

	if critical > 0 {
		out = append(out, fmt.Sprintf("%d %s at critical expiry risk — use immediately or discard.",
			critical, plural(critical, "item", "items")))
	}
	if high > 0 {
		out = append(out, fmt.Sprintf("%d %s at high expiry risk — plan meals around them.",
			high, plural(high, "item", "items")))
	}

	// Category balance, mirroring the dashboard's diet nudges.
	if r.CategoryCounts[pantry.CategoryVegetables] < 3 {
		out = append(out, "Vegetable supply is low — consider adding more for a balanced pantry.")
	}
	if r.CategoryCounts[pantry.CategoryFruits] < 2 {
		out = append(out, "Fruit supply is low — fresh fruit rounds out the pantry.")
	}

	if lowQuantity > 0 {
		out = append(out, fmt.Sprintf("%d %s running low — consider restocking.",
			lowQuantity, plural(lowQuantity, "item is", "items are")))
	}

	if tip := seasonalTip(ref.Month()); tip != "" {
		out = append(out, tip)
	}

	if len(out) == 0 {
		out = append(out, "Your pantry looks well balanced.")
	}
	return out
}

func seasonalTip(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "Winter tip: stock up on citrus fruit and warming spices."
	case time.June, time.July, time.August:
		return "Summer tip: keep fresh fruit and cold beverages on hand."
	default:
		return ""
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
