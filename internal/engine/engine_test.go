package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/larder-app/larder/internal/pantry"
	"github.com/larder-app/larder/internal/policy"
	"github.com/larder-app/larder/internal/registry"
	"github.com/larder-app/larder/internal/scoring"
)

var (
	ctx = context.Background()
	ref = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(registry.New(""), Options{Thresholds: policy.DefaultThresholds()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// TestAssess_ExpiredMilk runs the full pipeline end to end: categorization,
// the expired override, and the discard rule.
func TestAssess_ExpiredMilk(t *testing.T) {
	e := newTestEngine(t)

	item := pantry.Item{
		ID:           "it-milk",
		Name:         "Whole Milk",
		Quantity:     1,
		PurchaseDate: date(2026, 6, 5),
		ExpiryDate:   date(2026, 6, 13),
		Location:     pantry.LocationFridge,
	}

	got, err := e.Assess(item, ref)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}

	if got.Category.Category != pantry.CategoryDairy {
		t.Errorf("Category = %q, want dairy", got.Category.Category)
	}
	if got.Risk.Value != 1 {
		t.Errorf("Risk = %g, want 1 (expired)", got.Risk.Value)
	}
	if got.Recommendation.Action != pantry.ActionDiscard {
		t.Errorf("Action = %q, want discard", got.Recommendation.Action)
	}
	if got.Risk.ModelVersion != registry.DefaultVersion {
		t.Errorf("ModelVersion = %q, want %q", got.Risk.ModelVersion, registry.DefaultVersion)
	}
	if got.ItemID != "it-milk" {
		t.Errorf("ItemID = %q, want it-milk", got.ItemID)
	}
}

// TestAssess_CannedBeans covers the long-shelf-life case: bought 300 days
// ago, 100 days of shelf life left, recently used. Risk stays moderate-low
// and recent use keeps it off the reorder path.
func TestAssess_CannedBeans(t *testing.T) {
	e := newTestEngine(t)

	item := pantry.Item{
		ID:           "it-beans",
		Name:         "Canned Beans",
		Quantity:     3,
		PurchaseDate: date(2025, 8, 19), // 300 days before ref
		ExpiryDate:   date(2026, 9, 23), // 400 days after purchase
		LastUsedDate: date(2026, 6, 5),
	}

	got, err := e.Assess(item, ref)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}

	if got.Category.Category != pantry.CategoryStaples {
		t.Errorf("Category = %q, want staples", got.Category.Category)
	}
	if got.Risk.Value < 0.25 || got.Risk.Value >= 0.5 {
		t.Errorf("Risk = %g, want moderate-low in [0.25, 0.5)", got.Risk.Value)
	}
	// Used 10 days ago, inside the default 14-day reorder window, so no
	// action is due.
	if got.Recommendation.Action != pantry.ActionNone {
		t.Errorf("Action = %q, want none", got.Recommendation.Action)
	}
}

// TestAssess_ZeroQuantity verifies empty items produce zero risk and no
// action.
func TestAssess_ZeroQuantity(t *testing.T) {
	e := newTestEngine(t)

	got, err := e.Assess(pantry.Item{Name: "Rice", Quantity: 0}, ref)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got.Risk.Value != 0 {
		t.Errorf("Risk = %g, want 0", got.Risk.Value)
	}
	if got.Recommendation.Action != pantry.ActionNone {
		t.Errorf("Action = %q, want none", got.Recommendation.Action)
	}
}

// TestAssess_UnknownCategory verifies assessment works for names the
// classifier cannot place, using global shelf-life priors.
func TestAssess_UnknownCategory(t *testing.T) {
	e := newTestEngine(t)

	item := pantry.Item{
		Name:         "Mystery Jar",
		Quantity:     3,
		PurchaseDate: date(2026, 6, 10),
		ExpiryDate:   date(2026, 9, 23), // 100 days out
	}

	got, err := e.Assess(item, ref)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got.Category.Category != pantry.CategoryUnknown {
		t.Errorf("Category = %q, want unknown", got.Category.Category)
	}
	if got.Risk.Value <= 0 || got.Risk.Value >= 1 {
		t.Errorf("Risk = %g, want inside (0,1)", got.Risk.Value)
	}
}

// TestAssess_ExplicitCategoryPreserved verifies a caller-supplied category
// is trusted and skips classification.
func TestAssess_ExplicitCategoryPreserved(t *testing.T) {
	e := newTestEngine(t)

	// The name says dairy, but the caller's category wins.
	item := pantry.Item{Name: "Milk Chocolate", Category: pantry.CategorySnacks, Quantity: 1}

	got, err := e.Assess(item, ref)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got.Category.Category != pantry.CategorySnacks {
		t.Errorf("Category = %q, want snacks", got.Category.Category)
	}
	if got.Category.Confidence != 1 {
		t.Errorf("Confidence = %g, want 1 for explicit category", got.Category.Confidence)
	}
	if got.Features.ShelfLifeDays != 180 {
		t.Errorf("ShelfLifeDays = %g, want snacks median 180", got.Features.ShelfLifeDays)
	}
}

// TestAssess_Deterministic verifies repeated assessments are identical under
// a fixed reference date.
func TestAssess_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	item := pantry.Item{Name: "Cheddar Cheese", Quantity: 1, ExpiryDate: date(2026, 6, 18)}

	first, err := e.Assess(item, ref)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	second, err := e.Assess(item, ref)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if first.Risk.Value != second.Risk.Value {
		t.Errorf("risk differs between runs: %g vs %g", first.Risk.Value, second.Risk.Value)
	}
	if first.Recommendation.Action != second.Recommendation.Action {
		t.Errorf("action differs between runs: %q vs %q", first.Recommendation.Action, second.Recommendation.Action)
	}
}

// TestAssess_InvalidItem verifies validation failures surface before any
// pipeline stage runs.
func TestAssess_InvalidItem(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Assess(pantry.Item{Name: "Rice", Quantity: -1}, ref)
	if !errors.Is(err, pantry.ErrInvalidItem) {
		t.Errorf("error = %v, want ErrInvalidItem", err)
	}
}

// TestAssess_NoArtifactDegradesToHeuristic verifies the pipeline never fails
// just because no model is loaded.
func TestAssess_NoArtifactDegradesToHeuristic(t *testing.T) {
	e, err := New(registry.NewEmpty(""), Options{Thresholds: policy.DefaultThresholds()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := e.Assess(pantry.Item{Name: "Whole Milk", Quantity: 1, ExpiryDate: date(2026, 6, 18)}, ref)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got.Risk.ModelVersion != scoring.HeuristicVersion {
		t.Errorf("ModelVersion = %q, want %q", got.Risk.ModelVersion, scoring.HeuristicVersion)
	}
	if got.Category.Category != pantry.CategoryUnknown {
		t.Errorf("Category = %q, want unknown without a vocabulary", got.Category.Category)
	}
	if e.ModelVersion() != scoring.HeuristicVersion {
		t.Errorf("ModelVersion() = %q, want %q", e.ModelVersion(), scoring.HeuristicVersion)
	}
}

// TestAssessAll_PreservesOrder verifies batch results line up with their
// inputs despite concurrent execution.
func TestAssessAll_PreservesOrder(t *testing.T) {
	e := newTestEngine(t)

	items := make([]pantry.Item, 40)
	for i := range items {
		items[i] = pantry.Item{
			ID:         fmt.Sprintf("it-%02d", i),
			Name:       "Apple",
			Quantity:   float64(i + 1),
			ExpiryDate: date(2026, 6, 16+i%10),
		}
	}

	got, err := e.AssessAll(ctx, items, ref)
	if err != nil {
		t.Fatalf("AssessAll: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("len = %d, want %d", len(got), len(items))
	}
	for i := range items {
		if got[i].ItemID != items[i].ID {
			t.Errorf("result[%d].ItemID = %q, want %q", i, got[i].ItemID, items[i].ID)
		}
	}
}

// TestAssessAll_InvalidItemAborts verifies one bad item fails the batch.
func TestAssessAll_InvalidItemAborts(t *testing.T) {
	e := newTestEngine(t)

	items := []pantry.Item{
		{ID: "ok", Name: "Apple", Quantity: 1},
		{ID: "bad", Name: "Rice", Quantity: -1},
	}
	if _, err := e.AssessAll(ctx, items, ref); !errors.Is(err, pantry.ErrInvalidItem) {
		t.Errorf("error = %v, want ErrInvalidItem", err)
	}
}

func TestAssessAll_Empty(t *testing.T) {
	e := newTestEngine(t)
	got, err := e.AssessAll(ctx, nil, ref)
	if err != nil || got != nil {
		t.Errorf("AssessAll(nil) = %v, %v; want nil, nil", got, err)
	}
}

// TestCategorize proxies to the categorizer against the current artifact.
func TestCategorize(t *testing.T) {
	e := newTestEngine(t)

	got := e.Categorize("Fresh Strawberries")
	if got.Category != pantry.CategoryFruits {
		t.Errorf("Categorize = %q, want fruits", got.Category)
	}
}

// TestNew_InvalidThresholds verifies construction rejects a bad policy.
func TestNew_InvalidThresholds(t *testing.T) {
	_, err := New(registry.New(""), Options{Thresholds: policy.Thresholds{High: 0.1, Mid: 0.9}})
	if err == nil {
		t.Fatal("expected error for invalid thresholds")
	}
}
