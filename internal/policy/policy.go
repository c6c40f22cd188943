// Package policy turns risk scores into discrete, explainable actions via
// a small ordered decision table: first matching rule wins, and the reason
// text names the rule plus the top contributing feature.
package policy

import (
	"fmt"
	"math"
	"time"

	"github.com/larder-app/larder/internal/features"
	"github.com/larder-app/larder/internal/pantry"
)

// Thresholds is the caller-supplied configuration surface for the decision
// table. Nothing here is hard-coded into the rules.
type Thresholds struct {
	// High is the risk score at or above which an item needs immediate
	// attention (discard if already expired, otherwise consume soon).
	High float64

	// Mid is the risk score at or above which an item should be consumed
	// soon.
	Mid float64

	// ReorderWindowDays is the usage recency at or beyond which a low-risk
	// item is considered due for restocking.
	ReorderWindowDays float64
}

// DefaultThresholds mirror the configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.8, Mid: 0.5, ReorderWindowDays: 14}
}

// Validate enforces 0 <= Mid <= High <= 1 and a non-negative window.
func (t Thresholds) Validate() error {
	if t.Mid < 0 || t.High > 1 || t.Mid > t.High {
		return fmt.Errorf("thresholds must satisfy 0 <= mid (%g) <= high (%g) <= 1", t.Mid, t.High)
	}
	if t.ReorderWindowDays < 0 {
		return fmt.Errorf("reorder window must be non-negative, got %g", t.ReorderWindowDays)
	}
	return nil
}

// Policy evaluates the decision table. Stateless and safe for concurrent
// use.
type Policy struct {
	t Thresholds
}

// New creates a Policy with the given thresholds.
func New(t Thresholds) (*Policy, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Policy{t: t}, nil
}

// Recommend maps a risk score and its feature vector to an action. The
// rules are evaluated top to bottom; ref becomes the recommendation's
// generation time so results are reproducible under a fixed reference date.
func (p *Policy) Recommend(score pantry.RiskScore, v features.Vector, ref time.Time) pantry.Recommendation {
	rec := pantry.Recommendation{
		RiskScore:   score.Value,
		GeneratedAt: ref,
	}

	switch {
	case v.Quantity == 0:
		rec.Action = pantry.ActionNone
		rec.Reason = "nothing on hand to manage"

	case score.Value >= p.t.High && v.DaysUntilExpiry <= 0:
		rec.Action = pantry.ActionDiscard
		rec.Reason = fmt.Sprintf("past expiry by %d days; risk %.2f", int(math.Ceil(-v.DaysUntilExpiry)), score.Value)

	case score.Value >= p.t.High:
		rec.Action = pantry.ActionConsumeSoon
		rec.Reason = fmt.Sprintf("high expiry risk %.2f%s", score.Value, drivenBy(score))

	case score.Value >= p.t.Mid:
		rec.Action = pantry.ActionConsumeSoon
		rec.Reason = fmt.Sprintf("elevated expiry risk %.2f%s", score.Value, drivenBy(score))

	case v.UsageRecencyDays >= p.t.ReorderWindowDays:
		rec.Action = pantry.ActionReorder
		rec.Reason = fmt.Sprintf("low risk %.2f and last used %d days ago (reorder window %d days)",
			score.Value, int(v.UsageRecencyDays), int(p.t.ReorderWindowDays))

	default:
		rec.Action = pantry.ActionNone
		rec.Reason = fmt.Sprintf("low expiry risk %.2f", score.Value)
	}

	return rec
}

func drivenBy(score pantry.RiskScore) string {
	if len(score.TopFeatures) == 0 {
		return ""
	}
	return ", driven by " + score.TopFeatures[0].Feature
}
