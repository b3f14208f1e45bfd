package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/edspace/lectern/internal/model"
	"github.com/edspace/lectern/internal/oracle"
	"github.com/edspace/lectern/internal/similarity"
)

// maxRegenerations bounds how many extra attempts the explainer makes when
// a candidate is rejected as a repetition. The last candidate is accepted
// unconditionally once the budget is spent.
const maxRegenerations = 3

// Explainer produces slide explanations in the professor's persona,
// regenerating when the repetition guard rejects a candidate.
type Explainer struct {
	provider    oracle.Provider
	guard       similarity.Guard
	name        string
	profile     model.Profile
	temperature float64
}

// Explain generates an explanation for slide that is sufficiently different
// from the prior explanation texts. Total oracle calls are bounded by
// 1 + maxRegenerations.
func (e *Explainer) Explain(ctx context.Context, slide model.Slide, recentContext string, priors []string) (*model.Explanation, error) {
	user := buildExplanationUserPrompt(slide)

	for attempt := 0; ; attempt++ {
		resp, err := e.provider.Generate(ctx, oracle.Request{
			System:      buildExplanationSystemPrompt(e.name, e.profile, recentContext, attempt),
			User:        user,
			Schema:      explanationSchema,
			Temperature: e.temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("explain page %d: %w", slide.PageNumber, err)
		}

		var expl model.Explanation
		if err := json.Unmarshal(resp.Content, &expl); err != nil {
			return nil, &oracle.ResponseError{Content: resp.Content, Err: fmt.Errorf("decode explanation: %w", err)}
		}

		if attempt < maxRegenerations && e.guard.TooSimilar(expl.ProfResponse.Explanation, priors) {
			slog.Debug("explanation rejected as repetition", "page", slide.PageNumber, "attempt", attempt)
			continue
		}
		return &expl, nil
	}
}
