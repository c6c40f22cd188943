package registry

import (
	"fmt"
	"time"

	"github.com/larder-app/larder/internal/pantry"
)

// FeatureSchemaVersion is the feature vector layout the scorer weights are
// fitted against. Artifacts with a different schema version are rejected.
const FeatureSchemaVersion = 1

// CategoryProfile holds the trained per-category constants: classifier
// vocabulary, historical prior frequency, and shelf-life priors used for
// imputation and the fallback heuristic.
type CategoryProfile struct {
	Name pantry.Category `json:"name"`

	// Keywords are strong indicator terms; a normalized substring match on
	// any keyword is treated as a confident classification.
	Keywords []string `json:"keywords"`

	// Exemplars are the broader vocabulary used by the similarity fallback
	// for names outside the keyword set.
	Exemplars []string `json:"exemplars,omitempty"`

	// Prior is the category's historical relative frequency in [0,1].
	// Used to tie-break near-equal predictions toward common categories.
	Prior float64 `json:"prior"`

	// MedianShelfLifeDays is the category's median shelf life.
	MedianShelfLifeDays float64 `json:"median_shelf_life_days"`

	// PurchaseGapDays is the median age of an item at scoring time, used to
	// impute a missing purchase date.
	PurchaseGapDays float64 `json:"purchase_gap_days"`
}

// CalibrationPoint is one knot of the monotone piecewise-linear curve that
// maps raw model output to a calibrated probability.
type CalibrationPoint struct {
	Raw        float64 `json:"raw"`
	Calibrated float64 `json:"calibrated"`
}

// ScorerModel is the trained risk model: non-negative weights over the
// fixed feature schema plus a post-hoc monotonic recalibration curve.
// Non-negative weights over monotone feature transforms are what make the
// final score monotone by construction.
type ScorerModel struct {
	ExpiryWeight   float64 `json:"expiry_weight"`
	UsageWeight    float64 `json:"usage_weight"`
	QuantityWeight float64 `json:"quantity_weight"`
	StorageWeight  float64 `json:"storage_weight"`

	Calibration []CalibrationPoint `json:"calibration"`
}

// Artifact is a versioned, immutable trained model: categorizer vocabulary,
// per-category priors, and the risk scorer. Loaded as a whole and swapped
// atomically; callers must never mutate a published artifact.
type Artifact struct {
	Version              string    `json:"version"`
	TrainedAt            time.Time `json:"trained_at"`
	FeatureSchemaVersion int       `json:"feature_schema_version"`
	TrainingSampleCount  int       `json:"training_sample_count"`

	// Global fallbacks for items whose category is unknown.
	GlobalShelfLifeDays   float64 `json:"global_shelf_life_days"`
	GlobalPurchaseGapDays float64 `json:"global_purchase_gap_days"`

	Categories []CategoryProfile `json:"categories"`
	Scorer     ScorerModel       `json:"scorer"`
}

// Validate checks that the artifact is fully formed and safe to publish.
// A failed validation keeps the previous artifact current.
func (a *Artifact) Validate() error {
	if a.Version == "" {
		return fmt.Errorf("%w: empty version", ErrBadArtifact)
	}
	if a.FeatureSchemaVersion != FeatureSchemaVersion {
		return fmt.Errorf("%w: feature schema version %d, want %d",
			ErrBadArtifact, a.FeatureSchemaVersion, FeatureSchemaVersion)
	}
	if len(a.Categories) == 0 {
		return fmt.Errorf("%w: no categories", ErrBadArtifact)
	}
	if a.GlobalShelfLifeDays <= 0 || a.GlobalPurchaseGapDays < 0 {
		return fmt.Errorf("%w: non-positive global shelf-life priors", ErrBadArtifact)
	}
	seen := make(map[pantry.Category]bool, len(a.Categories))
	for _, c := range a.Categories {
		if c.Name == "" || c.Name == pantry.CategoryUnknown {
			return fmt.Errorf("%w: category profile with reserved name %q", ErrBadArtifact, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate category %q", ErrBadArtifact, c.Name)
		}
		seen[c.Name] = true
		if len(c.Keywords) == 0 {
			return fmt.Errorf("%w: category %q has no keywords", ErrBadArtifact, c.Name)
		}
		if c.MedianShelfLifeDays <= 0 {
			return fmt.Errorf("%w: category %q has shelf life %g", ErrBadArtifact, c.Name, c.MedianShelfLifeDays)
		}
		if c.Prior < 0 || c.Prior > 1 {
			return fmt.Errorf("%w: category %q prior %g outside [0,1]", ErrBadArtifact, c.Name, c.Prior)
		}
	}
	return a.Scorer.validate()
}

func (m ScorerModel) validate() error {
	for name, w := range map[string]float64{
		"expiry":   m.ExpiryWeight,
		"usage":    m.UsageWeight,
		"quantity": m.QuantityWeight,
		"storage":  m.StorageWeight,
	} {
		if w < 0 {
			return fmt.Errorf("%w: negative %s weight %g breaks monotonicity", ErrBadArtifact, name, w)
		}
	}
	if m.ExpiryWeight+m.UsageWeight+m.QuantityWeight+m.StorageWeight <= 0 {
		return fmt.Errorf("%w: all scorer weights are zero", ErrBadArtifact)
	}
	if len(m.Calibration) < 2 {
		return fmt.Errorf("%w: calibration curve needs at least 2 points", ErrBadArtifact)
	}
	prev := m.Calibration[0]
	if prev.Raw < 0 || prev.Calibrated < 0 {
		return fmt.Errorf("%w: calibration point below zero", ErrBadArtifact)
	}
	for _, p := range m.Calibration[1:] {
		if p.Raw <= prev.Raw || p.Calibrated < prev.Calibrated {
			return fmt.Errorf("%w: calibration curve not monotone at raw=%g", ErrBadArtifact, p.Raw)
		}
		prev = p
	}
	if prev.Raw > 1 || prev.Calibrated > 1 {
		return fmt.Errorf("%w: calibration point above one", ErrBadArtifact)
	}
	return nil
}

// Profile returns the trained profile for a category, if any.
func (a *Artifact) Profile(c pantry.Category) (CategoryProfile, bool) {
	for _, p := range a.Categories {
		if p.Name == c {
			return p, true
		}
	}
	return CategoryProfile{}, false
}

// ShelfLifeDays returns the category's median shelf life, falling back to
// the global prior for unknown categories.
func (a *Artifact) ShelfLifeDays(c pantry.Category) float64 {
	if p, ok := a.Profile(c); ok {
		return p.MedianShelfLifeDays
	}
	return a.GlobalShelfLifeDays
}

// PurchaseGapDays returns the category's median purchase gap, falling back
// to the global prior for unknown categories.
func (a *Artifact) PurchaseGapDays(c pantry.Category) float64 {
	if p, ok := a.Profile(c); ok {
		return p.PurchaseGapDays
	}
	return a.GlobalPurchaseGapDays
}
