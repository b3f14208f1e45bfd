// Package similarity detects near-duplicate explanations so the professor
// does not repeat itself. The metric is pluggable; the retry budget around
// regeneration lives with the caller.
package similarity

import (
	"github.com/agext/levenshtein"
)

// DefaultThreshold is the similarity ratio at or above which two texts are
// considered repetitions.
const DefaultThreshold = 0.8

// Metric computes a symmetric similarity ratio in [0, 1] where 1 means
// identical texts.
type Metric interface {
	Ratio(a, b string) float64
}

// Levenshtein is an edit-distance based Metric.
type Levenshtein struct{}

// Ratio returns the normalized Levenshtein similarity of a and b.
func (Levenshtein) Ratio(a, b string) float64 {
	return levenshtein.Similarity(a, b, levenshtein.NewParams())
}

// Guard decides whether a candidate explanation is too similar to prior
// ones. Window bounds how many of the most recent priors are compared;
// zero means all of them.
type Guard struct {
	Metric    Metric
	Threshold float64
	Window    int
}

// NewGuard returns a Guard with the Levenshtein metric and the default
// threshold, comparing against all priors.
func NewGuard() Guard {
	return Guard{Metric: Levenshtein{}, Threshold: DefaultThreshold}
}

// TooSimilar reports whether candidate reaches the threshold against any of
// the compared priors.
func (g Guard) TooSimilar(candidate string, priors []string) bool {
	if g.Window > 0 && len(priors) > g.Window {
		priors = priors[len(priors)-g.Window:]
	}
	for _, prior := range priors {
		if g.Metric.Ratio(prior, candidate) >= g.Threshold {
			return true
		}
	}
	return false
}
