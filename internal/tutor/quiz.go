package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edspace/lectern/internal/model"
	"github.com/edspace/lectern/internal/oracle"
)

// advancementThreshold is the score percentage at or above which a quiz
// result is marked as allowing advancement. Advisory only: page movement is
// driven by the evaluator's recommended action.
const advancementThreshold = 70.0

// ShouldQuiz is the quiz gate: the assessment must recommend a quiz AND at
// least one concept must sit at medium or high understanding.
func ShouldQuiz(a *model.Assessment) bool {
	if a == nil || !a.QuizRecommendation.TriggerQuiz {
		return false
	}
	for _, level := range a.ConceptLevels {
		if level == model.LevelMedium || level == model.LevelHigh {
			return true
		}
	}
	return false
}

// Quizzer generates multiple-choice quizzes for a slide's key concepts.
type Quizzer struct {
	provider    oracle.Provider
	temperature float64
}

// Generate produces a 5-question quiz over the slide's key concepts.
func (q *Quizzer) Generate(ctx context.Context, slide model.Slide, concepts []string) (*model.Quiz, error) {
	resp, err := q.provider.Generate(ctx, oracle.Request{
		System:      buildQuizSystemPrompt(),
		User:        buildQuizUserPrompt(slide, concepts),
		Schema:      quizSchema,
		Temperature: q.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate quiz for page %d: %w", slide.PageNumber, err)
	}

	var quiz model.Quiz
	if err := json.Unmarshal(resp.Content, &quiz); err != nil {
		return nil, &oracle.ResponseError{Content: resp.Content, Err: fmt.Errorf("decode quiz: %w", err)}
	}
	quiz.Page = slide.PageNumber
	return &quiz, nil
}

// Grade scores the student's answers against the quiz. Unanswered questions
// count as incorrect. Grading an empty quiz is a precondition failure.
func Grade(quiz *model.Quiz, answers map[string]string) (*model.QuizResult, error) {
	if quiz == nil || len(quiz.Questions) == 0 {
		return nil, &PreconditionError{Msg: "cannot grade a quiz with no questions"}
	}

	correct := 0
	details := make([]model.QuestionResult, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		answer := answers[q.ID]
		isCorrect := answer == q.CorrectAnswer
		if isCorrect {
			correct++
		}
		details = append(details, model.QuestionResult{
			QuestionID:    q.ID,
			StudentAnswer: answer,
			CorrectAnswer: q.CorrectAnswer,
			Correct:       isCorrect,
			Explanation:   q.Explanation,
		})
	}

	score := float64(correct) / float64(len(quiz.Questions)) * 100
	return &model.QuizResult{
		Page:               quiz.Page,
		TotalQuestions:     len(quiz.Questions),
		CorrectCount:       correct,
		ScorePercentage:    score,
		PerformanceTier:    model.TierForScore(score),
		Details:            details,
		AdvancementAllowed: score >= advancementThreshold,
		GradedAt:           time.Now(),
	}, nil
}

// TeachingRecommendation maps a performance tier to advice for the
// professor on how to adjust.
func TeachingRecommendation(tier model.Tier) string {
	switch tier {
	case model.TierExcellent:
		return "Student demonstrates high comprehension. Recommend introducing more advanced concepts and challenging examples."
	case model.TierGood:
		return "Student shows solid understanding. Suggest providing more practical applications and real-world scenarios."
	case model.TierSatisfactory:
		return "Student grasps basic concepts but needs more support. Recommend breaking down complex ideas, using more analogies, and providing additional explanations."
	case model.TierNeedsImprovement:
		return "Student struggles with fundamental concepts. Suggest returning to foundational material, using simpler explanations, and providing more step-by-step guidance."
	}
	return "Unable to generate specific recommendation."
}
