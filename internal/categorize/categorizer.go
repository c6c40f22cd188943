// Package categorize maps free-text item names to pantry categories with a
// confidence score. Classification is a confidence-gated fallback chain:
// keyword index, then token-similarity against category exemplars, then
// "unknown" — never a forced guess.
package categorize

import (
	"github.com/larder-app/larder/internal/pantry"
	"github.com/larder-app/larder/internal/registry"
)

// keywordConfidence is reported for a direct keyword hit.
const keywordConfidence = 0.92

// tieEpsilon bounds how close two candidate confidences must be for the
// historical prior to decide between them. Preferring the more frequent
// category avoids false "exotic category" assignments.
const tieEpsilon = 0.05

// DefaultConfidenceFloor is the similarity below which the fallback match
// is reported as unknown.
const DefaultConfidenceFloor = 0.2

// Categorizer classifies item names using an artifact's keyword vocabulary
// and exemplar terms. The caller passes the artifact per invocation so one
// assessment never mixes vocabularies from two model versions. Safe for
// concurrent use; it holds no mutable state.
type Categorizer struct {
	floor float64
}

// New creates a Categorizer. floor <= 0 selects DefaultConfidenceFloor.
func New(floor float64) *Categorizer {
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}
	return &Categorizer{floor: floor}
}

// Floor returns the configured confidence floor.
func (c *Categorizer) Floor() float64 {
	return c.floor
}

// Categorize predicts the category for a free-text item name. It never
// fails: empty or out-of-vocabulary names produce CategoryUnknown with a
// correspondingly low confidence, and a nil artifact (degraded mode) has
// no vocabulary to match against.
func (c *Categorizer) Categorize(artifact *registry.Artifact, name string) pantry.CategoryPrediction {
	tokens := Normalize(name)
	if len(tokens) == 0 || artifact == nil {
		return pantry.CategoryPrediction{Category: pantry.CategoryUnknown, Confidence: 0}
	}

	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	if pred, ok := c.matchKeywords(artifact, tokenSet); ok {
		return pred
	}
	return c.matchSimilarity(artifact, tokenSet)
}

type candidate struct {
	category   pantry.Category
	confidence float64
	prior      float64
}

// matchKeywords checks the name tokens against each category's keyword
// index. Multi-word keywords require every word to be present.
func (c *Categorizer) matchKeywords(artifact *registry.Artifact, tokenSet map[string]bool) (pantry.CategoryPrediction, bool) {
	var candidates []candidate
	for _, prof := range artifact.Categories {
		for _, kw := range prof.Keywords {
			if containsTerm(tokenSet, kw) {
				candidates = append(candidates, candidate{
					category:   prof.Name,
					confidence: keywordConfidence,
					prior:      prof.Prior,
				})
				break
			}
		}
	}
	if len(candidates) == 0 {
		return pantry.CategoryPrediction{}, false
	}
	best := pickBest(candidates)
	return pantry.CategoryPrediction{Category: best.category, Confidence: best.confidence}, true
}

// matchSimilarity is the nearest-neighbor fallback for unseen vocabulary:
// Jaccard overlap between the name tokens and each category's exemplar and
// keyword terms. Below the floor, the prediction is unknown.
func (c *Categorizer) matchSimilarity(artifact *registry.Artifact, tokenSet map[string]bool) pantry.CategoryPrediction {
	var candidates []candidate
	for _, prof := range artifact.Categories {
		vocab := make(map[string]bool, len(prof.Keywords)+len(prof.Exemplars))
		addTerms(vocab, prof.Keywords)
		addTerms(vocab, prof.Exemplars)

		sim := jaccard(tokenSet, vocab)
		if sim > 0 {
			candidates = append(candidates, candidate{
				category:   prof.Name,
				confidence: sim,
				prior:      prof.Prior,
			})
		}
	}
	if len(candidates) == 0 {
		return pantry.CategoryPrediction{Category: pantry.CategoryUnknown, Confidence: 0}
	}

	best := pickBest(candidates)
	if best.confidence < c.floor {
		return pantry.CategoryPrediction{Category: pantry.CategoryUnknown, Confidence: best.confidence}
	}
	return pantry.CategoryPrediction{Category: best.category, Confidence: best.confidence}
}

// pickBest returns the highest-confidence candidate; candidates within
// tieEpsilon of the top are decided by historical prior frequency.
func pickBest(candidates []candidate) candidate {
	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.confidence > best.confidence+tieEpsilon {
			best = cand
			continue
		}
		if cand.confidence >= best.confidence-tieEpsilon && cand.prior > best.prior {
			best = cand
		}
	}
	return best
}

// containsTerm reports whether every normalized word of term appears in the
// token set. Terms pass through the same normalization as item names, so
// artifacts may store them in any inflection.
func containsTerm(tokenSet map[string]bool, term string) bool {
	words := Normalize(term)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !tokenSet[w] {
			return false
		}
	}
	return true
}

func addTerms(vocab map[string]bool, terms []string) {
	for _, term := range terms {
		for _, w := range Normalize(term) {
			vocab[w] = true
		}
	}
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// KnownCategories lists the categories carried by an artifact, for display
// surfaces (CLI, dashboard pickers).
func KnownCategories(artifact *registry.Artifact) []pantry.Category {
	if artifact == nil {
		return nil
	}
	names := make([]pantry.Category, 0, len(artifact.Categories))
	for _, prof := range artifact.Categories {
		names = append(names, prof.Name)
	}
	return names
}
