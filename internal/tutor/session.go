// Package tutor implements the professor side of a tutoring session: slide
// explanations, response evaluation, quiz gating and grading, and the
// session state machine that sequences them.
package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/edspace/lectern/internal/auditor"
	"github.com/edspace/lectern/internal/ledger"
	"github.com/edspace/lectern/internal/model"
	"github.com/edspace/lectern/internal/oracle"
	"github.com/edspace/lectern/internal/similarity"
)

// State is a session's position in the tutoring loop.
type State string

const (
	StateAwaitingExplanation     State = "awaiting_explanation"
	StateAwaitingStudentResponse State = "awaiting_student_response"
	StateEvaluating              State = "evaluating"
	StateQuizCheck               State = "quiz_check"
	StateQuizInProgress          State = "quiz_in_progress"
	StateAdvancing               State = "advancing"
	StateEnded                   State = "ended"
)

func (s State) String() string { return string(s) }

// Config describes a new session. Provider and Professor are required;
// zero values elsewhere select defaults.
type Config struct {
	Professor string
	Slides    []model.Slide
	StartPage int // default 1
	Provider  oracle.Provider

	Temperature         float64 // default 0.7
	ContextWindow       int     // turns of ledger context in prompts; 0 = default
	SimilarityThreshold float64 // 0 = default 0.8
	SimilarityWindow    int     // priors compared by the guard; 0 = all
}

const defaultTemperature = 0.7

// Session is the single transition authority for one tutoring run. All
// state changes go through its methods; it is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	professor string
	profile   model.Profile
	slides    map[int]model.Slide
	maxPage   int

	currentPage int
	state       State
	abnormal    bool

	ledger        *ledger.Ledger
	contextWindow int
	explanations  []string

	explainer *Explainer
	evaluator *Evaluator
	quizzer   *Quizzer

	assessment *model.Assessment
	quiz       *model.Quiz
	results    []model.QuizResult

	startedAt time.Time
}

// NewSession validates the configuration and returns a session positioned
// at the start page, awaiting its first explanation. An empty deck yields a
// session that is already ended.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("tutor: oracle provider is required")
	}
	profile, ok := model.ProfileByName(cfg.Professor)
	if !ok {
		return nil, &PreconditionError{Msg: fmt.Sprintf("unknown professor %q", cfg.Professor)}
	}

	slides := make(map[int]model.Slide, len(cfg.Slides))
	maxPage := 0
	for _, s := range cfg.Slides {
		slides[s.PageNumber] = s
		if s.PageNumber > maxPage {
			maxPage = s.PageNumber
		}
	}

	start := cfg.StartPage
	if start == 0 {
		start = 1
	}
	if len(cfg.Slides) > 0 && (start < 1 || start > maxPage) {
		return nil, &PreconditionError{Msg: fmt.Sprintf("start page %d out of range 1..%d", start, maxPage)}
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	guard := similarity.NewGuard()
	if cfg.SimilarityThreshold > 0 {
		guard.Threshold = cfg.SimilarityThreshold
	}
	guard.Window = cfg.SimilarityWindow

	s := &Session{
		professor:     cfg.Professor,
		profile:       profile,
		slides:        slides,
		maxPage:       maxPage,
		currentPage:   start,
		state:         StateAwaitingExplanation,
		ledger:        ledger.New(),
		contextWindow: cfg.ContextWindow,
		explainer: &Explainer{
			provider:    cfg.Provider,
			guard:       guard,
			name:        cfg.Professor,
			profile:     profile,
			temperature: temperature,
		},
		evaluator: &Evaluator{
			provider:    cfg.Provider,
			name:        cfg.Professor,
			profile:     profile,
			temperature: temperature,
		},
		quizzer:   &Quizzer{provider: cfg.Provider, temperature: temperature},
		startedAt: time.Now(),
	}

	if len(cfg.Slides) == 0 {
		s.state = StateEnded
		return s, nil
	}

	// Roles from here on are guaranteed valid, so ledger appends cannot fail.
	_ = s.ledger.Append(model.RoleSystem,
		fmt.Sprintf("Session started with Professor %s at page %d of %d", cfg.Professor, start, maxPage),
		start, nil)

	return s, nil
}

// ExplainCurrentSlide produces the professor's explanation for the current
// page and records it. A missing page ends the session abnormally.
func (s *Session) ExplainCurrentSlide(ctx context.Context) (*model.Explanation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingExplanation {
		return nil, &StateError{Op: "explain", State: s.state}
	}

	slide, ok := s.slides[s.currentPage]
	if !ok {
		s.state = StateEnded
		s.abnormal = true
		return nil, &PreconditionError{Msg: fmt.Sprintf("page %d not found in deck", s.currentPage)}
	}

	expl, err := s.explainer.Explain(ctx, slide, s.ledger.RecentContext(s.contextWindow), s.explanations)
	if err != nil {
		return nil, err
	}

	s.explanations = append(s.explanations, expl.ProfResponse.Explanation)
	_ = s.ledger.Append(model.RoleProfessor, expl.ProfResponse.Explanation, s.currentPage, map[string]any{
		"kind":                  "slide_explanation",
		"key_points":            expl.ProfResponse.KeyPoints,
		"verification_question": expl.ProfResponse.VerificationQuestion,
	})

	s.state = StateAwaitingStudentResponse
	return expl, nil
}

// EvaluateResponse evaluates the student's message and stashes the
// assessment that will later drive advancement. The student turn is only
// recorded once evaluation succeeds, so a retry after an evaluator failure
// does not duplicate it in the ledger.
func (s *Session) EvaluateResponse(ctx context.Context, message string) (*model.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingStudentResponse {
		return nil, &StateError{Op: "evaluate", State: s.state}
	}

	slide := s.slides[s.currentPage]

	s.state = StateEvaluating
	a, err := s.evaluator.Evaluate(ctx, slide, message, s.ledger.RecentContext(s.contextWindow))
	if err != nil {
		s.state = StateAwaitingStudentResponse
		return nil, err
	}

	_ = s.ledger.Append(model.RoleStudent, message, s.currentPage, nil)
	raw, _ := json.Marshal(a)
	_ = s.ledger.Append(model.RoleProfessor, string(raw), s.currentPage, map[string]any{"kind": "assessment"})

	s.assessment = a
	s.state = StateQuizCheck
	return a, nil
}

// CheckQuizReadiness reports whether the quiz gate is open for the stashed
// assessment.
func (s *Session) CheckQuizReadiness() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateQuizCheck {
		return false, &StateError{Op: "quiz readiness check", State: s.state}
	}
	return ShouldQuiz(s.assessment), nil
}

// GenerateQuiz creates a quiz for the current page. The gate must be open.
// Calling it again while a quiz is in progress discards the ungraded quiz
// and replaces it with a fresh one.
func (s *Session) GenerateQuiz(ctx context.Context) (*model.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateQuizCheck && s.state != StateQuizInProgress {
		return nil, &StateError{Op: "generate quiz", State: s.state}
	}
	if !ShouldQuiz(s.assessment) {
		return nil, &PreconditionError{Msg: "quiz gate is closed for the current assessment"}
	}

	quiz, err := s.quizzer.Generate(ctx, s.slides[s.currentPage], s.assessment.KeyConcepts)
	if err != nil {
		return nil, err
	}

	s.quiz = quiz
	s.state = StateQuizInProgress
	return quiz, nil
}

// GradeQuiz scores the active quiz and records the result. The result is
// advisory: it never drives advancement.
func (s *Session) GradeQuiz(answers map[string]string) (*model.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateQuizInProgress || s.quiz == nil {
		return nil, &StateError{Op: "grade quiz", State: s.state}
	}

	result, err := Grade(s.quiz, answers)
	if err != nil {
		return nil, err
	}

	s.results = append(s.results, *result)
	s.quiz = nil
	_ = s.ledger.Append(model.RoleSystem,
		fmt.Sprintf("Quiz graded: %.2f%% (%s)", result.ScorePercentage, result.PerformanceTier),
		s.currentPage, map[string]any{"kind": "quiz_result"})

	s.state = StateQuizCheck
	return result, nil
}

// Advance consumes the stashed assessment and moves the session according
// to its recommended action. "next" past the last page ends the session.
func (s *Session) Advance() (page int, ended bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateQuizCheck {
		return 0, false, &StateError{Op: "advance", State: s.state}
	}

	s.state = StateAdvancing
	action := s.assessment.RecommendedAction
	s.assessment = nil
	s.quiz = nil

	if action == model.ActionNext {
		s.currentPage++
		if s.currentPage > s.maxPage {
			s.state = StateEnded
			return s.currentPage, true, nil
		}
	}
	s.state = StateAwaitingExplanation
	return s.currentPage, false, nil
}

// BuildReport delegates to the auditor over the session's history so far.
// Usable in any state, including after an abnormal end.
func (s *Session) BuildReport(ctx context.Context, a *auditor.Auditor) (*model.Report, error) {
	return a.GenerateReport(ctx, s.History(), s.QuizResults())
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentPage returns the 1-based page the session is positioned at.
func (s *Session) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPage
}

// Ended reports whether the session reached its terminal state.
func (s *Session) Ended() bool {
	return s.State() == StateEnded
}

// Abnormal reports whether the session ended because of a broken
// precondition rather than deck completion.
func (s *Session) Abnormal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abnormal
}

// Professor returns the persona name the session teaches as.
func (s *Session) Professor() string { return s.professor }

// StartedAt returns the session creation time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// History returns a copy of the conversation so far.
func (s *Session) History() []model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.FullHistory()
}

// QuizResults returns a copy of all graded quiz results in order.
func (s *Session) QuizResults() []model.QuizResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.QuizResult, len(s.results))
	copy(out, s.results)
	return out
}
