// Package pantry defines the core domain types shared by the risk engine:
// item records, categories, predictions, risk scores, and recommendations.
package pantry

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidItem is returned when an item record is malformed beyond what
// the documented imputation policy can repair (negative quantity, expiry
// before purchase). Missing optional dates are never an error.
var ErrInvalidItem = errors.New("invalid item")

// Category is a pantry category. The set of known categories is defined by
// the current model artifact; new categories may appear after retraining,
// so Category is an open string type rather than a closed enum.
type Category string

// Categories carried by the built-in artifact. Mirrors the category set the
// classifier was seeded with.
const (
	CategoryDairy      Category = "dairy"
	CategoryVegetables Category = "vegetables"
	CategoryFruits     Category = "fruits"
	CategoryBeverages  Category = "beverages"
	CategoryBakery     Category = "bakery"
	CategoryMeat       Category = "meat"
	CategoryFrozen     Category = "frozen"
	CategorySnacks     Category = "snacks"
	CategoryCondiments Category = "condiments"
	CategoryStaples    Category = "staples"

	// CategoryUnknown is the fallback when classification confidence is
	// below the configured floor, or the name is empty/out-of-vocabulary.
	CategoryUnknown Category = "unknown"
)

// StorageLocation is where an item is kept. It affects how quickly the
// scorer expects the item to degrade.
type StorageLocation string

const (
	LocationPantry  StorageLocation = "pantry"
	LocationFridge  StorageLocation = "fridge"
	LocationFreezer StorageLocation = "freezer"
)

// Item is an immutable snapshot of a pantry item record. The engine never
// mutates it; persistence belongs to the storage layer. Optional dates are
// pointers — nil means "unknown" and triggers the documented imputation.
type Item struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     Category        `json:"category,omitempty"`
	Quantity     float64         `json:"quantity"`
	Unit         string          `json:"unit,omitempty"`
	PurchaseDate *time.Time      `json:"purchase_date,omitempty"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	LastUsedDate *time.Time      `json:"last_used_date,omitempty"`
	Location     StorageLocation `json:"storage_location,omitempty"`
}

// Validate checks the invariants the engine cannot repair by imputation.
func (it Item) Validate() error {
	if it.Quantity < 0 {
		return fmt.Errorf("%w: negative quantity %g", ErrInvalidItem, it.Quantity)
	}
	if it.PurchaseDate != nil && it.ExpiryDate != nil && it.ExpiryDate.Before(*it.PurchaseDate) {
		return fmt.Errorf("%w: expiry %s before purchase %s",
			ErrInvalidItem,
			it.ExpiryDate.Format("2006-01-02"),
			it.PurchaseDate.Format("2006-01-02"))
	}
	switch it.Location {
	case "", LocationPantry, LocationFridge, LocationFreezer:
	default:
		return fmt.Errorf("%w: unknown storage location %q", ErrInvalidItem, it.Location)
	}
	return nil
}

// CategoryPrediction is the categorizer's output. Confidence reflects the
// classifier's own certainty; below-floor predictions are reported as
// CategoryUnknown rather than a guess presented as certain.
type CategoryPrediction struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// FeatureContribution is one feature's share of a risk score, used for
// explainability in recommendation reasons.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// RiskScore is a calibrated probability-like estimate in [0,1] that an item
// spoils before use, with the version of the model that produced it and the
// top contributing features in descending contribution order.
type RiskScore struct {
	Value        float64               `json:"value"`
	ModelVersion string                `json:"model_version"`
	TopFeatures  []FeatureContribution `json:"top_features,omitempty"`
}

// Action is the discrete recommendation the policy produces.
type Action string

const (
	ActionConsumeSoon Action = "consume_soon"
	ActionReorder     Action = "reorder"
	ActionDiscard     Action = "discard"
	ActionNone        Action = "none"
)

// Recommendation is the user-facing outcome for one item. It is ephemeral:
// recomputed per request and never persisted by the engine itself.
type Recommendation struct {
	Action      Action    `json:"action"`
	Reason      string    `json:"reason"`
	RiskScore   float64   `json:"risk_score"`
	GeneratedAt time.Time `json:"generated_at"`
}
