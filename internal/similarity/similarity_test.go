package similarity

import "testing"

func TestTooSimilarIdentical(t *testing.T) {
	g := NewGuard()
	if !g.TooSimilar("gradient descent minimizes loss", []string{"gradient descent minimizes loss"}) {
		t.Error("identical text should be too similar at default threshold")
	}

	g.Threshold = 1.0
	if !g.TooSimilar("a", []string{"a"}) {
		t.Error("identical text should be too similar even at threshold 1.0")
	}
}

func TestTooSimilarEmptyPrior(t *testing.T) {
	g := NewGuard()
	if g.TooSimilar("a perfectly normal explanation", []string{""}) {
		t.Error("non-empty candidate vs empty prior should not trip the guard at 0.8")
	}
}

func TestTooSimilarDistinctTexts(t *testing.T) {
	g := NewGuard()
	priors := []string{
		"Neural networks are layered function approximators trained by backpropagation.",
	}
	if g.TooSimilar("Think of a decision tree as a flowchart of yes/no questions.", priors) {
		t.Error("unrelated texts should not trip the guard")
	}
}

func TestTooSimilarNoPriors(t *testing.T) {
	g := NewGuard()
	if g.TooSimilar("anything", nil) {
		t.Error("no priors should never be too similar")
	}
}

func TestTooSimilarWindow(t *testing.T) {
	g := NewGuard()
	g.Window = 2
	priors := []string{
		"exact candidate text", // outside the window, must be ignored
		"something about trees",
		"something about graphs",
	}
	if g.TooSimilar("exact candidate text", priors) {
		t.Error("prior outside the window should be ignored")
	}

	g.Window = 0
	if !g.TooSimilar("exact candidate text", priors) {
		t.Error("window 0 should compare against all priors")
	}
}

func TestRatioSymmetric(t *testing.T) {
	m := Levenshtein{}
	a, b := "stochastic gradient descent", "gradient descent"
	if m.Ratio(a, b) != m.Ratio(b, a) {
		t.Error("metric should be symmetric")
	}
	if r := m.Ratio(a, a); r != 1.0 {
		t.Errorf("Ratio(a, a) = %v, want 1.0", r)
	}
}
