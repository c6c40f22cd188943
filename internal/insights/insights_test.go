package insights

import (
	"strings"
	"testing"
	"time"

	"github.com/larder-app/larder/internal/engine"
	"github.com/larder-app/larder/internal/features"
	"github.com/larder-app/larder/internal/pantry"
)

var ref = time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC) // April: no seasonal tip

func assessment(category pantry.Category, risk, daysUntilExpiry float64) engine.Assessment {
	return engine.Assessment{
		Category: pantry.CategoryPrediction{Category: category, Confidence: 0.92},
		Risk:     pantry.RiskScore{Value: risk},
		Features: features.Vector{DaysUntilExpiry: daysUntilExpiry, Category: category},
	}
}

func hasSuggestion(r Report, substr string) bool {
	for _, s := range r.Suggestions {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func TestBand(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.95, BandCritical},
		{0.8, BandCritical},
		{0.79, BandHigh},
		{0.5, BandHigh},
		{0.49, BandMedium},
		{0.25, BandMedium},
		{0.24, BandLow},
		{0, BandLow},
	}
	for _, tt := range tests {
		if got := Band(tt.score); got != tt.want {
			t.Errorf("Band(%g) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

// TestBuild_EmptyPantry verifies the empty-pantry report shape.
func TestBuild_EmptyPantry(t *testing.T) {
	r := Build(nil, nil, ref)

	if r.TotalItems != 0 {
		t.Errorf("TotalItems = %d, want 0", r.TotalItems)
	}
	if !r.GeneratedAt.Equal(ref) {
		t.Errorf("GeneratedAt = %v, want %v", r.GeneratedAt, ref)
	}
	if !hasSuggestion(r, "empty") {
		t.Errorf("Suggestions = %v, want an empty-pantry nudge", r.Suggestions)
	}
}

// TestBuild_Distributions verifies the aggregated counts and averages.
func TestBuild_Distributions(t *testing.T) {
	assessments := []engine.Assessment{
		assessment(pantry.CategoryDairy, 0.9, 1),
		assessment(pantry.CategoryDairy, 0.6, 3),
		assessment(pantry.CategoryStaples, 0.1, 200),
	}
	items := []pantry.Item{
		{Name: "Milk", Quantity: 1},
		{Name: "Yogurt", Quantity: 4},
		{Name: "Rice", Quantity: 2},
	}

	r := Build(assessments, items, ref)

	if r.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3", r.TotalItems)
	}
	if r.RiskDistribution[BandCritical] != 1 {
		t.Errorf("critical count = %d, want 1", r.RiskDistribution[BandCritical])
	}
	if r.RiskDistribution[BandHigh] != 1 {
		t.Errorf("high count = %d, want 1", r.RiskDistribution[BandHigh])
	}
	if r.RiskDistribution[BandLow] != 1 {
		t.Errorf("low count = %d, want 1", r.RiskDistribution[BandLow])
	}
	if r.CategoryCounts[pantry.CategoryDairy] != 2 {
		t.Errorf("dairy count = %d, want 2", r.CategoryCounts[pantry.CategoryDairy])
	}
	if r.QuantityByCategory[pantry.CategoryDairy] != 5 {
		t.Errorf("dairy quantity = %g, want 5", r.QuantityByCategory[pantry.CategoryDairy])
	}
	// (1 + 3 + 200) / 3 = 68, rounded to one decimal.
	if r.AvgDaysUntilExpiry != 68 {
		t.Errorf("AvgDaysUntilExpiry = %g, want 68", r.AvgDaysUntilExpiry)
	}
	// Per category: dairy (1 + 3) / 2, staples 200 / 1.
	if r.AvgExpiryByCategory[pantry.CategoryDairy] != 2 {
		t.Errorf("dairy avg expiry = %g, want 2", r.AvgExpiryByCategory[pantry.CategoryDairy])
	}
	if r.AvgExpiryByCategory[pantry.CategoryStaples] != 200 {
		t.Errorf("staples avg expiry = %g, want 200", r.AvgExpiryByCategory[pantry.CategoryStaples])
	}
}

// TestBuild_Suggestions verifies the textual nudges fire on the right
// conditions.
func TestBuild_Suggestions(t *testing.T) {
	assessments := []engine.Assessment{
		assessment(pantry.CategoryDairy, 0.9, 1),
		assessment(pantry.CategoryStaples, 0.1, 200),
	}
	items := []pantry.Item{
		{Name: "Milk", Quantity: 1}, // at the low-quantity threshold
		{Name: "Rice", Quantity: 5},
	}

	r := Build(assessments, items, ref)

	if !hasSuggestion(r, "critical expiry risk") {
		t.Errorf("Suggestions = %v, want critical-risk warning", r.Suggestions)
	}
	if !hasSuggestion(r, "Vegetable supply is low") {
		t.Errorf("Suggestions = %v, want vegetable nudge", r.Suggestions)
	}
	if !hasSuggestion(r, "Fruit supply is low") {
		t.Errorf("Suggestions = %v, want fruit nudge", r.Suggestions)
	}
	if !hasSuggestion(r, "running low") {
		t.Errorf("Suggestions = %v, want restock nudge", r.Suggestions)
	}
	// Singular phrasing for a single low item.
	if !hasSuggestion(r, "1 item is running low") {
		t.Errorf("Suggestions = %v, want singular restock phrasing", r.Suggestions)
	}
}

// TestBuild_BalancedPantry verifies a healthy pantry gets the all-clear.
func TestBuild_BalancedPantry(t *testing.T) {
	var assessments []engine.Assessment
	var items []pantry.Item
	for i := 0; i < 3; i++ {
		assessments = append(assessments, assessment(pantry.CategoryVegetables, 0.1, 10))
		items = append(items, pantry.Item{Name: "Carrots", Quantity: 3})
	}
	for i := 0; i < 2; i++ {
		assessments = append(assessments, assessment(pantry.CategoryFruits, 0.1, 7))
		items = append(items, pantry.Item{Name: "Apples", Quantity: 4})
	}

	r := Build(assessments, items, ref)

	if len(r.Suggestions) != 1 || !strings.Contains(r.Suggestions[0], "well balanced") {
		t.Errorf("Suggestions = %v, want single all-clear", r.Suggestions)
	}
}

func TestSeasonalTip(t *testing.T) {
	if tip := seasonalTip(time.December); !strings.Contains(tip, "Winter") {
		t.Errorf("December tip = %q, want winter tip", tip)
	}
	if tip := seasonalTip(time.July); !strings.Contains(tip, "Summer") {
		t.Errorf("July tip = %q, want summer tip", tip)
	}
	if tip := seasonalTip(time.April); tip != "" {
		t.Errorf("April tip = %q, want none", tip)
	}
}
