package tutor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edspace/lectern/internal/model"
	"github.com/edspace/lectern/internal/oracle"
)

// Evaluator judges a student response against a slide and decides whether
// the session should stay or advance. Failures surface to the caller; there
// is no default assessment.
type Evaluator struct {
	provider    oracle.Provider
	name        string
	profile     model.Profile
	temperature float64
}

// Evaluate returns the professor's assessment of studentResponse on slide.
func (e *Evaluator) Evaluate(ctx context.Context, slide model.Slide, studentResponse, recentContext string) (*model.Assessment, error) {
	resp, err := e.provider.Generate(ctx, oracle.Request{
		System:      buildEvaluationSystemPrompt(e.name, e.profile, recentContext),
		User:        buildEvaluationUserPrompt(slide, studentResponse),
		Schema:      assessmentSchema,
		Temperature: e.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate page %d: %w", slide.PageNumber, err)
	}

	var a model.Assessment
	if err := json.Unmarshal(resp.Content, &a); err != nil {
		return nil, &oracle.ResponseError{Content: resp.Content, Err: fmt.Errorf("decode assessment: %w", err)}
	}
	return &a, nil
}
