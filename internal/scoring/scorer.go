// Package scoring produces calibrated expiry-risk scores in [0,1] from
// feature vectors. The model is monotone by construction: non-negative
// weights over monotone feature transforms, followed by a monotone
// piecewise-linear recalibration curve.
package scoring

import (
	"log/slog"
	"math"
	"sort"
	"sync/atomic"

	"github.com/larder-app/larder/internal/features"
	"github.com/larder-app/larder/internal/pantry"
	"github.com/larder-app/larder/internal/registry"
)

// HeuristicVersion marks scores produced by the deterministic fallback
// used when no model artifact is loaded.
const HeuristicVersion = "heuristic-1"

// Feature names used in contributions and recommendation reasons.
const (
	FeatureDaysUntilExpiry = "days_until_expiry"
	FeatureUsageRecency    = "usage_recency_days"
	FeatureQuantity        = "quantity"
	FeatureStorage         = "storage_location"
)

// Scorer computes risk scores against a caller-pinned artifact, falling
// back to the deterministic heuristic when none is loaded. Safe for
// concurrent use: per-call state only.
type Scorer struct {
	logger   *slog.Logger
	degraded atomic.Bool // degraded-mode warning emitted once per recovery
}

// New creates a Scorer.
func New() *Scorer {
	return &Scorer{logger: slog.Default()}
}

// Score converts a feature vector into a calibrated risk score against the
// given artifact. A nil artifact selects the heuristic fallback.
//
// Two overrides precede the model:
//   - quantity zero forces 0.0 (nothing to manage),
//   - expiry at or past the reference date forces 1.0.
func (s *Scorer) Score(artifact *registry.Artifact, v features.Vector) pantry.RiskScore {
	ok := artifact != nil
	version := HeuristicVersion
	if ok {
		version = artifact.Version
		s.degraded.Store(false)
	} else if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn("no model artifact loaded, scoring with deterministic heuristic")
	}

	if v.Quantity == 0 {
		return pantry.RiskScore{
			Value:        0,
			ModelVersion: version,
			TopFeatures: []pantry.FeatureContribution{
				{Feature: FeatureQuantity, Value: 0, Weight: 1, Contribution: 0},
			},
		}
	}
	if v.DaysUntilExpiry <= 0 {
		return pantry.RiskScore{
			Value:        1,
			ModelVersion: version,
			TopFeatures: []pantry.FeatureContribution{
				{Feature: FeatureDaysUntilExpiry, Value: v.DaysUntilExpiry, Weight: 1, Contribution: 1},
			},
		}
	}

	if !ok {
		return pantry.RiskScore{
			Value:        heuristic(v),
			ModelVersion: version,
			TopFeatures: []pantry.FeatureContribution{
				{Feature: FeatureDaysUntilExpiry, Value: v.DaysUntilExpiry, Weight: 1, Contribution: heuristic(v)},
			},
		}
	}

	contribs := contributions(v, artifact.Scorer)
	raw := 0.0
	for _, c := range contribs {
		raw += c.Contribution
	}
	calibrated := applyCalibration(artifact.Scorer.Calibration, raw)

	sort.SliceStable(contribs, func(i, j int) bool {
		return contribs[i].Contribution > contribs[j].Contribution
	})
	if len(contribs) > 3 {
		contribs = contribs[:3]
	}

	return pantry.RiskScore{
		Value:        calibrated,
		ModelVersion: version,
		TopFeatures:  contribs,
	}
}

// RawScore computes the pre-calibration model output for a vector. The
// trainer uses it to fit calibration curves against observed outcomes.
func RawScore(v features.Vector, m registry.ScorerModel) float64 {
	raw := 0.0
	for _, c := range contributions(v, m) {
		raw += c.Contribution
	}
	return raw
}

// contributions evaluates the per-feature transforms. Every transform maps
// into [0,1] and moves in the risk-increasing direction, so non-negative
// weights keep the sum monotone in every feature.
func contributions(v features.Vector, m registry.ScorerModel) []pantry.FeatureContribution {
	expiryPressure := clamp01(1 - v.DaysUntilExpiry/v.ShelfLifeDays)
	usageStaleness := clamp01(v.UsageRecencyDays / features.MaxUsageRecencyDays)

	return []pantry.FeatureContribution{
		{
			Feature:      FeatureDaysUntilExpiry,
			Value:        v.DaysUntilExpiry,
			Weight:       m.ExpiryWeight,
			Contribution: m.ExpiryWeight * expiryPressure,
		},
		{
			Feature:      FeatureUsageRecency,
			Value:        v.UsageRecencyDays,
			Weight:       m.UsageWeight,
			Contribution: m.UsageWeight * usageStaleness,
		},
		{
			Feature:      FeatureQuantity,
			Value:        v.Quantity,
			Weight:       m.QuantityWeight,
			Contribution: m.QuantityWeight * v.QuantityNorm,
		},
		{
			Feature:      FeatureStorage,
			Value:        v.StorageFactor,
			Weight:       m.StorageWeight,
			Contribution: m.StorageWeight * v.StorageFactor,
		},
	}
}

// heuristic is the model-free fallback: risk grows linearly as the
// remaining days shrink relative to the category's median shelf life.
// Always available, never fails.
func heuristic(v features.Vector) float64 {
	shelf := v.ShelfLifeDays
	if shelf <= 0 {
		shelf = 1
	}
	return clamp01(1 - v.DaysUntilExpiry/shelf)
}

// applyCalibration interpolates the monotone piecewise-linear curve,
// clamping outside the knot range.
func applyCalibration(curve []registry.CalibrationPoint, raw float64) float64 {
	if len(curve) == 0 {
		return clamp01(raw)
	}
	if raw <= curve[0].Raw {
		return curve[0].Calibrated
	}
	last := curve[len(curve)-1]
	if raw >= last.Raw {
		return last.Calibrated
	}
	for i := 1; i < len(curve); i++ {
		lo, hi := curve[i-1], curve[i]
		if raw > hi.Raw {
			continue
		}
		t := (raw - lo.Raw) / (hi.Raw - lo.Raw)
		return lo.Calibrated + t*(hi.Calibrated-lo.Calibrated)
	}
	return last.Calibrated
}

func clamp01(x float64) float64 {
	return math.Min(math.Max(x, 0), 1)
}
