// Package train fits a new model artifact from recorded outcomes. Training
// never touches the scorer weights: monotonicity is guaranteed by the fixed
// non-negative weight structure, so the trainer only refreshes the parts
// observation can improve, category priors, classifier vocabulary, and the
// calibration curve.
package train

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/larder-app/larder/internal/categorize"
	"github.com/larder-app/larder/internal/features"
	"github.com/larder-app/larder/internal/pantry"
	"github.com/larder-app/larder/internal/registry"
	"github.com/larder-app/larder/internal/scoring"
	"github.com/larder-app/larder/internal/storage"
)

// MinSampleCount is the smallest outcome set worth fitting against. Below
// it the priors would be noisier than the builtin defaults.
const MinSampleCount = 20

// ErrInsufficientData is returned when too few outcomes exist to train.
var ErrInsufficientData = errors.New("train: not enough outcomes")

// minCategorySamples gates per-category shelf-life refits; categories with
// fewer observations keep the base profile's priors.
const minCategorySamples = 3

// calibrationBins is the histogram resolution for the reliability fit.
const calibrationBins = 10

// maxExemplarsPerCategory caps vocabulary growth per training run.
const maxExemplarsPerCategory = 64

// Fit derives a new artifact from outcomes, starting from base. The base
// supplies everything training cannot observe: keywords, scorer weights,
// and priors for categories with too few samples.
//
// The returned artifact validates before it is returned, so a caller can
// hand it straight to registry.WriteArtifact.
func Fit(outcomes []storage.Outcome, base *registry.Artifact, trainedAt time.Time) (*registry.Artifact, error) {
	if base == nil {
		return nil, errors.New("train: nil base artifact")
	}
	if len(outcomes) < MinSampleCount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(outcomes), MinSampleCount)
	}

	next := &registry.Artifact{
		Version:              trainedAt.UTC().Format("20060102T150405"),
		TrainedAt:            trainedAt.UTC(),
		FeatureSchemaVersion: registry.FeatureSchemaVersion,
		TrainingSampleCount:  len(outcomes),
		Scorer:               base.Scorer,
	}

	next.Categories = fitCategories(outcomes, base)
	next.GlobalShelfLifeDays, next.GlobalPurchaseGapDays = fitGlobals(outcomes, base)

	curve, err := fitCalibration(outcomes, next)
	if err != nil {
		return nil, err
	}
	next.Scorer.Calibration = curve

	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("train: fitted artifact invalid: %w", err)
	}
	return next, nil
}

// categoryStats accumulates per-category observations during a pass over
// the outcome set.
type categoryStats struct {
	count      int
	shelfLives []float64
	gaps       []float64
	nameTokens map[string]bool
}

// fitCategories refreshes priors, shelf lives, and exemplar vocabulary per
// category. The keyword lists are curated, not learned, so they carry over
// from the base unchanged.
func fitCategories(outcomes []storage.Outcome, base *registry.Artifact) []registry.CategoryProfile {
	stats := make(map[pantry.Category]*categoryStats)
	for _, o := range outcomes {
		if o.Category == "" || o.Category == pantry.CategoryUnknown {
			continue
		}
		st := stats[o.Category]
		if st == nil {
			st = &categoryStats{nameTokens: make(map[string]bool)}
			stats[o.Category] = st
		}
		st.count++
		if o.PurchaseDate != nil && o.ExpiryDate != nil {
			if d := o.ExpiryDate.Sub(*o.PurchaseDate).Hours() / 24; d > 0 {
				st.shelfLives = append(st.shelfLives, d)
			}
		}
		if o.PurchaseDate != nil {
			if d := o.ResolvedAt.Sub(*o.PurchaseDate).Hours() / 24; d >= 0 {
				st.gaps = append(st.gaps, d)
			}
		}
		for _, tok := range categorize.Normalize(o.Name) {
			st.nameTokens[tok] = true
		}
	}

	profiles := make([]registry.CategoryProfile, 0, len(base.Categories))
	for _, p := range base.Categories {
		st := stats[p.Name]
		if st == nil {
			profiles = append(profiles, p)
			continue
		}

		p.Prior = float64(st.count) / float64(len(outcomes))
		if len(st.shelfLives) >= minCategorySamples {
			p.MedianShelfLifeDays = median(st.shelfLives)
		}
		if len(st.gaps) >= minCategorySamples {
			p.PurchaseGapDays = median(st.gaps)
		}
		p.Exemplars = mergeExemplars(p.Exemplars, st.nameTokens)
		profiles = append(profiles, p)
	}
	return profiles
}

// mergeExemplars extends the base exemplar list with observed name tokens,
// deduplicated and capped.
func mergeExemplars(existing []string, observed map[string]bool) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(observed))
	for _, e := range existing {
		if !seen[e] {
			seen[e] = true
			merged = append(merged, e)
		}
	}
	added := make([]string, 0, len(observed))
	for tok := range observed {
		if !seen[tok] {
			added = append(added, tok)
		}
	}
	sort.Strings(added)
	merged = append(merged, added...)
	if len(merged) > maxExemplarsPerCategory {
		merged = merged[:maxExemplarsPerCategory]
	}
	return merged
}

func fitGlobals(outcomes []storage.Outcome, base *registry.Artifact) (shelfLife, purchaseGap float64) {
	var lives, gaps []float64
	for _, o := range outcomes {
		if o.PurchaseDate != nil && o.ExpiryDate != nil {
			if d := o.ExpiryDate.Sub(*o.PurchaseDate).Hours() / 24; d > 0 {
				lives = append(lives, d)
			}
		}
		if o.PurchaseDate != nil {
			if d := o.ResolvedAt.Sub(*o.PurchaseDate).Hours() / 24; d >= 0 {
				gaps = append(gaps, d)
			}
		}
	}
	shelfLife = base.GlobalShelfLifeDays
	if len(lives) >= minCategorySamples {
		shelfLife = median(lives)
	}
	purchaseGap = base.GlobalPurchaseGapDays
	if len(gaps) >= minCategorySamples {
		purchaseGap = median(gaps)
	}
	return shelfLife, purchaseGap
}

// fitCalibration bins raw model scores over the outcome set and maps each
// bin to its observed spoilage rate, pooled to be monotone. The resulting
// piecewise-linear curve turns the raw score into an empirical spoilage
// probability.
func fitCalibration(outcomes []storage.Outcome, artifact *registry.Artifact) ([]registry.CalibrationPoint, error) {
	sums := make([]float64, calibrationBins)
	counts := make([]int, calibrationBins)

	for _, o := range outcomes {
		item := pantry.Item{
			ID:           o.ItemID,
			Name:         o.Name,
			Category:     o.Category,
			Quantity:     o.Quantity,
			Unit:         o.Unit,
			PurchaseDate: o.PurchaseDate,
			ExpiryDate:   o.ExpiryDate,
			LastUsedDate: o.LastUsedDate,
			Location:     o.Location,
		}
		v, err := features.Extract(item, o.ResolvedAt, artifact)
		if err != nil {
			return nil, fmt.Errorf("train: outcome %s: %w", o.ID, err)
		}
		raw := scoring.RawScore(v, artifact.Scorer)
		bin := int(raw * calibrationBins)
		if bin >= calibrationBins {
			bin = calibrationBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		if o.Spoiled {
			sums[bin]++
		}
		counts[bin]++
	}

	// Empty bins inherit their left neighbor; cumulative max makes the
	// curve monotone even where the empirical rates invert.
	rates := make([]float64, calibrationBins)
	prev := 0.0
	for i := range rates {
		rate := prev
		if counts[i] > 0 {
			rate = sums[i] / float64(counts[i])
		}
		if rate < prev {
			rate = prev
		}
		rates[i] = rate
		prev = rate
	}

	curve := make([]registry.CalibrationPoint, 0, calibrationBins+1)
	curve = append(curve, registry.CalibrationPoint{Raw: 0, Calibrated: 0})
	for i, r := range rates {
		curve = append(curve, registry.CalibrationPoint{
			Raw:        float64(i+1) / calibrationBins,
			Calibrated: r,
		})
	}
	return curve, nil
}

func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
