package storage

import (
	"errors"
	"time"

	"github.com/larder-app/larder/internal/pantry"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Outcome is a resolved item: either consumed in time or discarded as
// expired. Outcomes are the labeled sample the trainer fits shelf-life
// priors and the calibration curve against.
type Outcome struct {
	ID           string
	ItemID       string
	Name         string
	Category     pantry.Category
	Quantity     float64
	Unit         string
	PurchaseDate *time.Time
	ExpiryDate   *time.Time
	LastUsedDate *time.Time
	Location     pantry.StorageLocation

	// Spoiled is true when the item was discarded as expired rather than
	// consumed in time.
	Spoiled    bool
	ResolvedAt time.Time
}
