package tutor

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/edspace/lectern/internal/auditor"
	"github.com/edspace/lectern/internal/model"
	"github.com/edspace/lectern/internal/oracle"
)

func assessmentJSON(action string, trigger bool, conceptLevel string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"understanding_assessment": {
			"level": "medium",
			"feedback": "solid grasp of the basics",
			"areas_to_improve": ["edge cases"]
		},
		"key_concepts": ["recursion"],
		"concept_levels": {"recursion": %q},
		"quiz_recommendation": {"trigger_quiz": %v, "reasoning": "ready to be tested"},
		"recommended_action": %q,
		"reasoning": "based on the response"
	}`, conceptLevel, trigger, action))
}

func quizJSON(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(fiveQuestionQuiz())
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	return raw
}

func twoSlides() []model.Slide {
	return []model.Slide{
		{PageNumber: 1, Content: "Recursion basics"},
		{PageNumber: 2, Content: "Tail calls"},
	}
}

func newTestSession(t *testing.T, provider oracle.Provider, slides []model.Slide) *Session {
	t.Helper()
	s, err := NewSession(Config{
		Professor: "Andrew NG",
		Slides:    slides,
		Provider:  provider,
	})
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	return s
}

func TestSessionLifecycle(t *testing.T) {
	mock := oracle.NewMockProvider(
		oracle.MockResponse{Content: explanationJSON("Recursion is a function calling itself.")},
		oracle.MockResponse{Content: assessmentJSON("next", true, "high")},
		oracle.MockResponse{Content: quizJSON(t)},
	)
	s := newTestSession(t, mock, []model.Slide{{PageNumber: 1, Content: "Recursion basics"}})

	if s.State() != StateAwaitingExplanation {
		t.Fatalf("initial state = %q", s.State())
	}

	if _, err := s.ExplainCurrentSlide(t.Context()); err != nil {
		t.Fatalf("ExplainCurrentSlide() error: %v", err)
	}
	if s.State() != StateAwaitingStudentResponse {
		t.Fatalf("state after explain = %q", s.State())
	}

	a, err := s.EvaluateResponse(t.Context(), "It calls itself until a base case.")
	if err != nil {
		t.Fatalf("EvaluateResponse() error: %v", err)
	}
	if a.RecommendedAction != model.ActionNext {
		t.Errorf("RecommendedAction = %q", a.RecommendedAction)
	}
	if s.State() != StateQuizCheck {
		t.Fatalf("state after evaluate = %q", s.State())
	}

	ready, err := s.CheckQuizReadiness()
	if err != nil || !ready {
		t.Fatalf("CheckQuizReadiness() = %v, %v, want true", ready, err)
	}

	quiz, err := s.GenerateQuiz(t.Context())
	if err != nil {
		t.Fatalf("GenerateQuiz() error: %v", err)
	}
	if len(quiz.Questions) != 5 {
		t.Errorf("quiz has %d questions, want 5", len(quiz.Questions))
	}
	if quiz.Page != 1 {
		t.Errorf("quiz.Page = %d, want 1", quiz.Page)
	}

	result, err := s.GradeQuiz(map[string]string{"q1": "a", "q2": "a", "q3": "a", "q4": "a", "q5": "b"})
	if err != nil {
		t.Fatalf("GradeQuiz() error: %v", err)
	}
	if result.ScorePercentage != 80 {
		t.Errorf("ScorePercentage = %v, want 80", result.ScorePercentage)
	}
	if got := s.QuizResults(); len(got) != 1 {
		t.Errorf("QuizResults() = %d entries, want 1", len(got))
	}

	page, ended, err := s.Advance()
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	if !ended || page != 2 {
		t.Errorf("Advance() = (%d, %v), want (2, true)", page, ended)
	}
	if !s.Ended() {
		t.Error("session should be ended")
	}
	if s.Abnormal() {
		t.Error("normal completion flagged abnormal")
	}

	history := s.History()
	if len(history) < 4 {
		t.Fatalf("history has %d entries, want at least 4", len(history))
	}
	if history[1].Role != model.RoleProfessor || history[1].Metadata["kind"] != "slide_explanation" {
		t.Errorf("unexpected explanation entry: %+v", history[1])
	}
	if history[2].Role != model.RoleStudent {
		t.Errorf("unexpected student entry: %+v", history[2])
	}
}

func TestSessionStayIgnoresQuizScore(t *testing.T) {
	// A passing quiz must not advance the page when the evaluator said stay.
	mock := oracle.NewMockProvider(
		oracle.MockResponse{Content: explanationJSON("First pass at the topic.")},
		oracle.MockResponse{Content: assessmentJSON("stay", true, "medium")},
		oracle.MockResponse{Content: quizJSON(t)},
	)
	s := newTestSession(t, mock, twoSlides())

	if _, err := s.ExplainCurrentSlide(t.Context()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.EvaluateResponse(t.Context(), "I think I get it"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GenerateQuiz(t.Context()); err != nil {
		t.Fatal(err)
	}

	result, err := s.GradeQuiz(map[string]string{"q1": "a", "q2": "a", "q3": "a", "q4": "a", "q5": "a"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.AdvancementAllowed {
		t.Fatal("perfect score should mark advancement allowed")
	}

	page, ended, err := s.Advance()
	if err != nil {
		t.Fatal(err)
	}
	if page != 1 || ended {
		t.Errorf("Advance() = (%d, %v), want (1, false): stay overrides quiz score", page, ended)
	}
	if s.State() != StateAwaitingExplanation {
		t.Errorf("state = %q, want awaiting_explanation", s.State())
	}
}

func TestSessionWrongStateErrors(t *testing.T) {
	mock := oracle.NewMockProvider()
	s := newTestSession(t, mock, twoSlides())

	var serr *StateError
	if _, err := s.EvaluateResponse(t.Context(), "hello"); !errors.As(err, &serr) {
		t.Errorf("evaluate before explain: err = %v, want *StateError", err)
	}
	if _, err := s.GradeQuiz(nil); !errors.As(err, &serr) {
		t.Errorf("grade without quiz: err = %v, want *StateError", err)
	}
	if _, _, err := s.Advance(); !errors.As(err, &serr) {
		t.Errorf("advance before evaluate: err = %v, want *StateError", err)
	}
	if _, err := s.CheckQuizReadiness(); !errors.As(err, &serr) {
		t.Errorf("readiness before evaluate: err = %v, want *StateError", err)
	}
}

func TestSessionQuizGateClosed(t *testing.T) {
	mock := oracle.NewMockProvider(
		oracle.MockResponse{Content: explanationJSON("Topic explained.")},
		oracle.MockResponse{Content: assessmentJSON("stay", false, "high")},
	)
	s := newTestSession(t, mock, twoSlides())

	if _, err := s.ExplainCurrentSlide(t.Context()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.EvaluateResponse(t.Context(), "hm"); err != nil {
		t.Fatal(err)
	}

	ready, err := s.CheckQuizReadiness()
	if err != nil || ready {
		t.Fatalf("CheckQuizReadiness() = %v, %v, want false", ready, err)
	}

	var perr *PreconditionError
	if _, err := s.GenerateQuiz(t.Context()); !errors.As(err, &perr) {
		t.Errorf("GenerateQuiz with closed gate: err = %v, want *PreconditionError", err)
	}
}

func TestNewSessionValidation(t *testing.T) {
	mock := oracle.NewMockProvider()
	var perr *PreconditionError

	_, err := NewSession(Config{Professor: "Nobody", Slides: twoSlides(), Provider: mock})
	if !errors.As(err, &perr) {
		t.Errorf("unknown professor: err = %v, want *PreconditionError", err)
	}

	_, err = NewSession(Config{Professor: "Andrew NG", Slides: twoSlides(), StartPage: 5, Provider: mock})
	if !errors.As(err, &perr) {
		t.Errorf("start page out of range: err = %v, want *PreconditionError", err)
	}

	if _, err := NewSession(Config{Professor: "Andrew NG", Slides: twoSlides()}); err == nil {
		t.Error("nil provider should be rejected")
	}

	s, err := NewSession(Config{Professor: "David Malan", Slides: twoSlides(), StartPage: 2, Provider: mock})
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if s.CurrentPage() != 2 {
		t.Errorf("CurrentPage() = %d, want 2", s.CurrentPage())
	}
}

func TestSessionEmptyDeck(t *testing.T) {
	s := newTestSession(t, oracle.NewMockProvider(), nil)
	if !s.Ended() {
		t.Fatal("empty deck session should start ended")
	}

	var serr *StateError
	if _, err := s.ExplainCurrentSlide(t.Context()); !errors.As(err, &serr) {
		t.Errorf("explain on ended session: err = %v, want *StateError", err)
	}
}

func TestSessionMissingPageEndsAbnormally(t *testing.T) {
	// Deck with a gap: advancing from page 1 lands on a page that does
	// not exist.
	slides := []model.Slide{
		{PageNumber: 1, Content: "first"},
		{PageNumber: 3, Content: "third"},
	}
	mock := oracle.NewMockProvider(
		oracle.MockResponse{Content: explanationJSON("First page.")},
		oracle.MockResponse{Content: assessmentJSON("next", false, "low")},
	)
	s := newTestSession(t, mock, slides)

	if _, err := s.ExplainCurrentSlide(t.Context()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.EvaluateResponse(t.Context(), "ok"); err != nil {
		t.Fatal(err)
	}
	page, ended, err := s.Advance()
	if err != nil {
		t.Fatal(err)
	}
	if page != 2 || ended {
		t.Fatalf("Advance() = (%d, %v), want (2, false)", page, ended)
	}

	var perr *PreconditionError
	if _, err := s.ExplainCurrentSlide(t.Context()); !errors.As(err, &perr) {
		t.Fatalf("explain missing page: err = %v, want *PreconditionError", err)
	}
	if !s.Ended() || !s.Abnormal() {
		t.Errorf("Ended() = %v, Abnormal() = %v, want both true", s.Ended(), s.Abnormal())
	}

	// A report is still buildable from whatever history exists.
	reportMock := oracle.NewMockProvider(
		oracle.MockResponse{Content: json.RawMessage(`{
			"engagement_metrics": {"participation_rate": 50, "response_quality": 50, "question_asking_frequency": 50},
			"understanding_progression": {"initial_level": 40, "final_level": 50, "key_improvements": [], "challenging_areas": []},
			"learning_patterns": {"preferred_learning_style": "unknown", "most_effective_topics": [], "attention_span": "short"}
		}`)},
		oracle.MockResponse{Content: json.RawMessage(`{
			"key_strengths": [], "improvement_areas": [], "action_items": [], "additional_resources": []
		}`)},
	)
	report, err := s.BuildReport(t.Context(), auditor.New(reportMock))
	if err != nil {
		t.Fatalf("BuildReport() after abnormal end: %v", err)
	}
	if report.Metadata.PerformanceLevel == "" {
		t.Error("report missing performance level")
	}
}

func TestSessionEvaluatorFailureLeavesRetryable(t *testing.T) {
	mock := oracle.NewMockProvider(
		oracle.MockResponse{Content: explanationJSON("Explained.")},
		oracle.MockResponse{Err: &oracle.InvocationError{Provider: "mock", Err: errors.New("down")}},
		oracle.MockResponse{Content: assessmentJSON("next", false, "low")},
	)
	s := newTestSession(t, mock, twoSlides())

	if _, err := s.ExplainCurrentSlide(t.Context()); err != nil {
		t.Fatal(err)
	}

	if _, err := s.EvaluateResponse(t.Context(), "first try"); err == nil {
		t.Fatal("expected evaluator failure")
	}
	if s.State() != StateAwaitingStudentResponse {
		t.Fatalf("state after failure = %q, want awaiting_student_response", s.State())
	}

	if _, err := s.EvaluateResponse(t.Context(), "second try"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if s.State() != StateQuizCheck {
		t.Errorf("state after retry = %q, want quiz_check", s.State())
	}

	// The failed attempt must not leave a duplicate student turn behind.
	var studentTurns []model.Entry
	for _, e := range s.History() {
		if e.Role == model.RoleStudent {
			studentTurns = append(studentTurns, e)
		}
	}
	if len(studentTurns) != 1 {
		t.Fatalf("history has %d student turns, want 1", len(studentTurns))
	}
	if studentTurns[0].Content != "second try" {
		t.Errorf("student turn = %q, want the retried message", studentTurns[0].Content)
	}
}

func TestSessionRegenerateQuizReplacesUngraded(t *testing.T) {
	secondQuiz := fiveQuestionQuiz()
	for i := range secondQuiz.Questions {
		secondQuiz.Questions[i].CorrectAnswer = "b"
	}
	secondRaw, err := json.Marshal(secondQuiz)
	if err != nil {
		t.Fatal(err)
	}

	mock := oracle.NewMockProvider(
		oracle.MockResponse{Content: explanationJSON("Explained.")},
		oracle.MockResponse{Content: assessmentJSON("stay", true, "high")},
		oracle.MockResponse{Content: quizJSON(t)},
		oracle.MockResponse{Content: secondRaw},
	)
	s := newTestSession(t, mock, twoSlides())

	if _, err := s.ExplainCurrentSlide(t.Context()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.EvaluateResponse(t.Context(), "ready"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GenerateQuiz(t.Context()); err != nil {
		t.Fatal(err)
	}

	// Regenerating while a quiz is in progress discards the ungraded one.
	if _, err := s.GenerateQuiz(t.Context()); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if s.State() != StateQuizInProgress {
		t.Fatalf("state after regenerate = %q, want quiz_in_progress", s.State())
	}

	allB := map[string]string{"q1": "b", "q2": "b", "q3": "b", "q4": "b", "q5": "b"}
	result, err := s.GradeQuiz(allB)
	if err != nil {
		t.Fatal(err)
	}
	if result.ScorePercentage != 100 {
		t.Errorf("score = %.2f, want 100 against the replacement quiz", result.ScorePercentage)
	}
}

func TestSessionRegeneratesNewQuizDiscardsOld(t *testing.T) {
	mock := oracle.NewMockProvider(
		oracle.MockResponse{Content: explanationJSON("Explained.")},
		oracle.MockResponse{Content: assessmentJSON("stay", true, "high")},
		oracle.MockResponse{Content: quizJSON(t)},
	)
	s := newTestSession(t, mock, twoSlides())

	if _, err := s.ExplainCurrentSlide(t.Context()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.EvaluateResponse(t.Context(), "ready"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GenerateQuiz(t.Context()); err != nil {
		t.Fatal(err)
	}

	// Grading consumes the active quiz; a second grade has nothing to act on.
	if _, err := s.GradeQuiz(map[string]string{"q1": "a"}); err != nil {
		t.Fatal(err)
	}
	var serr *StateError
	if _, err := s.GradeQuiz(map[string]string{"q1": "a"}); !errors.As(err, &serr) {
		t.Errorf("second grade: err = %v, want *StateError", err)
	}
}
