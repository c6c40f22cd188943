// Package features turns raw item records into the fixed-shape vectors the
// risk scorer consumes. Extraction is pure: everything derives from the
// item snapshot, the caller-supplied reference date, and the per-category
// constants held by the model registry.
package features

import (
	"fmt"
	"math"
	"time"

	"github.com/larder-app/larder/internal/pantry"
	"github.com/larder-app/larder/internal/registry"
)

// MaxUsageRecencyDays caps the usage recency feature. Items never used are
// treated as this old, so the feature magnitude stays bounded.
const MaxUsageRecencyDays = 365

// quantityNormScale is the quantity at which the normalized quantity
// feature saturates at 1.0.
const quantityNormScale = 10

// Global constants used when no artifact is loaded at all. Deliberately
// conservative: a mid-range shelf life keeps the heuristic fallback sane
// for arbitrary items.
const (
	fallbackShelfLifeDays   = 180
	fallbackPurchaseGapDays = 14
)

const hoursPerDay = 24

// Vector is the fully-populated feature vector for one scoring call.
// Imputation guarantees no field is ever missing downstream.
type Vector struct {
	DaysSincePurchase float64 `json:"days_since_purchase"`
	DaysUntilExpiry   float64 `json:"days_until_expiry"`
	UsageRecencyDays  float64 `json:"usage_recency_days"`
	Quantity          float64 `json:"quantity"`
	QuantityNorm      float64 `json:"quantity_normalized"`
	StorageFactor     float64 `json:"storage_location_factor"`

	Category      pantry.Category `json:"category"`
	ShelfLifeDays float64         `json:"shelf_life_days"`

	ImputedPurchase bool `json:"imputed_purchase,omitempty"`
	ImputedExpiry   bool `json:"imputed_expiry,omitempty"`
}

// storageFactor maps a storage location to a degradation-rate feature.
// Higher means the item degrades faster where it is kept.
func storageFactor(loc pantry.StorageLocation) float64 {
	switch loc {
	case pantry.LocationFreezer:
		return 0.1
	case pantry.LocationFridge:
		return 0.35
	default: // pantry, or unspecified
		return 0.5
	}
}

// Extract builds the feature vector for an item as of ref. The artifact
// supplies per-category imputation constants; a nil artifact falls back to
// global constants so extraction never fails on missing models.
//
// Imputation policy for missing optional fields:
//   - purchase date: ref minus the category's median purchase gap
//   - expiry date: purchase date (given or imputed) plus median shelf life
//   - last used date: never used, capped at MaxUsageRecencyDays
func Extract(item pantry.Item, ref time.Time, artifact *registry.Artifact) (Vector, error) {
	if ref.IsZero() {
		return Vector{}, fmt.Errorf("%w: zero reference date", pantry.ErrInvalidItem)
	}
	if err := item.Validate(); err != nil {
		return Vector{}, err
	}

	category := item.Category
	if category == "" {
		category = pantry.CategoryUnknown
	}

	shelfLife := fallbackShelfLifeDays * 1.0
	purchaseGap := fallbackPurchaseGapDays * 1.0
	if artifact != nil {
		shelfLife = artifact.ShelfLifeDays(category)
		purchaseGap = artifact.PurchaseGapDays(category)
	}

	v := Vector{
		Quantity:      item.Quantity,
		QuantityNorm:  math.Min(item.Quantity/quantityNormScale, 1),
		StorageFactor: storageFactor(item.Location),
		Category:      category,
		ShelfLifeDays: shelfLife,
	}

	purchase := ref.AddDate(0, 0, -int(math.Round(purchaseGap)))
	if item.PurchaseDate != nil {
		purchase = *item.PurchaseDate
	} else {
		v.ImputedPurchase = true
	}
	v.DaysSincePurchase = days(ref.Sub(purchase))

	expiry := purchase.AddDate(0, 0, int(math.Round(shelfLife)))
	if item.ExpiryDate != nil {
		expiry = *item.ExpiryDate
	} else {
		v.ImputedExpiry = true
	}
	v.DaysUntilExpiry = days(expiry.Sub(ref))

	v.UsageRecencyDays = MaxUsageRecencyDays
	if item.LastUsedDate != nil {
		v.UsageRecencyDays = math.Min(math.Max(days(ref.Sub(*item.LastUsedDate)), 0), MaxUsageRecencyDays)
	}

	return v, nil
}

func days(d time.Duration) float64 {
	return d.Hours() / hoursPerDay
}
