// Package engine wires the feature extractor, categorizer, risk scorer,
// and recommendation policy into the single assessment call the dashboard
// and storage layers consume.
package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/larder-app/larder/internal/categorize"
	"github.com/larder-app/larder/internal/features"
	"github.com/larder-app/larder/internal/pantry"
	"github.com/larder-app/larder/internal/policy"
	"github.com/larder-app/larder/internal/registry"
	"github.com/larder-app/larder/internal/scoring"
)

// assessConcurrency bounds the goroutines used by AssessAll. Assessment is
// CPU-only with bounded latency; a small limit keeps batches fair.
const assessConcurrency = 8

// Assessment is the full engine output for one item: the recommendation
// plus the intermediate prediction, score, and features for display and
// analytics.
type Assessment struct {
	ItemID         string                    `json:"item_id"`
	Category       pantry.CategoryPrediction `json:"category"`
	Risk           pantry.RiskScore          `json:"risk"`
	Recommendation pantry.Recommendation     `json:"recommendation"`
	Features       features.Vector           `json:"features"`
}

// Options configures an Engine.
type Options struct {
	Thresholds      policy.Thresholds
	ConfidenceFloor float64
}

// Engine is stateless per call; its only shared state is the read-mostly
// model registry, so assessments run safely concurrently.
type Engine struct {
	models      *registry.Registry
	categorizer *categorize.Categorizer
	scorer      *scoring.Scorer
	policy      *policy.Policy
}

// New creates an Engine around the given registry.
func New(models *registry.Registry, opts Options) (*Engine, error) {
	pol, err := policy.New(opts.Thresholds)
	if err != nil {
		return nil, err
	}
	return &Engine{
		models:      models,
		categorizer: categorize.New(opts.ConfidenceFloor),
		scorer:      scoring.New(),
		policy:      pol,
	}, nil
}

// Categorize predicts a category for a free-text name against the current
// artifact, for surfaces that only need the suggestion (smart-add, receipt
// import).
func (e *Engine) Categorize(name string) pantry.CategoryPrediction {
	artifact, _ := e.models.Current()
	return e.categorizer.Categorize(artifact, name)
}

// ModelVersion reports the current artifact version, or the heuristic
// marker when none is loaded.
func (e *Engine) ModelVersion() string {
	if artifact, ok := e.models.Current(); ok {
		return artifact.Version
	}
	return scoring.HeuristicVersion
}

// Assess runs the full pipeline for one item snapshot as of ref. The
// reference date is always caller-supplied — the engine never reads the
// process clock, which keeps results reproducible in tests and batch jobs.
//
// The artifact is read once at the top of the call and used throughout, so
// a concurrent registry refresh can never mix parameters from two model
// versions within one assessment.
func (e *Engine) Assess(item pantry.Item, ref time.Time) (Assessment, error) {
	if err := item.Validate(); err != nil {
		return Assessment{}, err
	}

	artifact, _ := e.models.Current() // nil is fine; every stage degrades deterministically

	prediction := pantry.CategoryPrediction{Category: item.Category, Confidence: 1}
	if item.Category == "" || item.Category == pantry.CategoryUnknown {
		prediction = e.categorizer.Categorize(artifact, item.Name)
	}

	scored := item
	scored.Category = prediction.Category

	vector, err := features.Extract(scored, ref, artifact)
	if err != nil {
		return Assessment{}, err
	}

	risk := e.scorer.Score(artifact, vector)
	rec := e.policy.Recommend(risk, vector, ref)

	return Assessment{
		ItemID:         item.ID,
		Category:       prediction,
		Risk:           risk,
		Recommendation: rec,
		Features:       vector,
	}, nil
}

// AssessAll scores a batch of items concurrently, preserving input order.
// The first invalid item aborts the batch.
func (e *Engine) AssessAll(ctx context.Context, items []pantry.Item, ref time.Time) ([]Assessment, error) {
	if len(items) == 0 {
		return nil, nil
	}
	results := make([]Assessment, len(items))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(assessConcurrency)
	for i, item := range items {
		g.Go(func() error {
			a, err := e.Assess(item, ref)
			if err != nil {
				return err
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
