package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/edspace/lectern/internal/oracle"
	"github.com/edspace/lectern/internal/store"
)

const explanationJSON = `{
	"prof_response": {
		"greeting": "Hello!",
		"explanation": "Recursion is a function calling itself until a base case stops it.",
		"key_points": ["base case", "self-reference"],
		"verification_question": "What stops the recursion?"
	},
	"teaching_notes": {
		"difficulty_level": "basic",
		"prerequisites": ["functions"],
		"suggested_exercises": ["write factorial"]
	}
}`

const assessmentJSON = `{
	"understanding_assessment": {
		"level": "high",
		"feedback": "clear and correct",
		"areas_to_improve": []
	},
	"key_concepts": ["recursion"],
	"concept_levels": {"recursion": "high"},
	"quiz_recommendation": {"trigger_quiz": true, "reasoning": "ready"},
	"recommended_action": "next",
	"reasoning": "student is ready to move on"
}`

const quizJSON = `{
	"quiz_title": "Recursion Quiz",
	"questions": [
		{"id": "q1", "question": "Q1?", "options": [{"id": "a", "text": "A"}, {"id": "b", "text": "B"}, {"id": "c", "text": "C"}, {"id": "d", "text": "D"}], "correct_answer": "a", "explanation": "because"},
		{"id": "q2", "question": "Q2?", "options": [{"id": "a", "text": "A"}, {"id": "b", "text": "B"}, {"id": "c", "text": "C"}, {"id": "d", "text": "D"}], "correct_answer": "b", "explanation": "because"},
		{"id": "q3", "question": "Q3?", "options": [{"id": "a", "text": "A"}, {"id": "b", "text": "B"}, {"id": "c", "text": "C"}, {"id": "d", "text": "D"}], "correct_answer": "c", "explanation": "because"},
		{"id": "q4", "question": "Q4?", "options": [{"id": "a", "text": "A"}, {"id": "b", "text": "B"}, {"id": "c", "text": "C"}, {"id": "d", "text": "D"}], "correct_answer": "d", "explanation": "because"},
		{"id": "q5", "question": "Q5?", "options": [{"id": "a", "text": "A"}, {"id": "b", "text": "B"}, {"id": "c", "text": "C"}, {"id": "d", "text": "D"}], "correct_answer": "a", "explanation": "because"}
	]
}`

const analysisJSON = `{
	"engagement_metrics": {"participation_rate": 80, "response_quality": 80, "question_asking_frequency": 60},
	"understanding_progression": {"initial_level": 50, "final_level": 80, "key_improvements": ["recursion"], "challenging_areas": []},
	"learning_patterns": {"preferred_learning_style": "examples", "most_effective_topics": ["recursion"], "attention_span": "good"}
}`

const recommendationsJSON = `{
	"key_strengths": ["quick learner"],
	"improvement_areas": ["edge cases"],
	"action_items": ["practice"],
	"additional_resources": ["SICP"]
}`

func newTestServer(t *testing.T, mock *oracle.MockProvider, st *store.Store) *httptest.Server {
	t.Helper()
	h := New(mock, st, nil, SessionDefaults{})
	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, fields
}

func TestSessionFlow(t *testing.T) {
	mock := oracle.NewMockProvider(
		oracle.MockResponse{Content: json.RawMessage(explanationJSON)},
		oracle.MockResponse{Content: json.RawMessage(assessmentJSON)},
		oracle.MockResponse{Content: json.RawMessage(quizJSON)},
		oracle.MockResponse{Content: json.RawMessage(analysisJSON)},
		oracle.MockResponse{Content: json.RawMessage(recommendationsJSON)},
	)
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	srv := newTestServer(t, mock, st)

	// Create.
	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/sessions", map[string]any{
		"deck_text": "Page 1:\nText content:\nRecursion basics",
		"professor": "Andrew NG",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d", resp.StatusCode)
	}
	var sessionID string
	if err := json.Unmarshal(fields["session_id"], &sessionID); err != nil || sessionID == "" {
		t.Fatalf("missing session_id: %v", err)
	}
	base := srv.URL + "/sessions/" + sessionID

	// Explain.
	resp, fields = doJSON(t, http.MethodPost, base+"/explain", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("explain: status = %d", resp.StatusCode)
	}
	if _, ok := fields["explanation"]; !ok {
		t.Fatal("explain response missing explanation")
	}

	// Student message.
	resp, fields = doJSON(t, http.MethodPost, base+"/message", map[string]string{"message": "It calls itself."})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("message: status = %d", resp.StatusCode)
	}
	var ready bool
	if err := json.Unmarshal(fields["quiz_ready"], &ready); err != nil || !ready {
		t.Fatalf("quiz_ready = %s, want true", fields["quiz_ready"])
	}

	// Quiz, sanitized.
	req, _ := http.NewRequest(http.MethodPost, base+"/quiz", nil)
	rawResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer rawResp.Body.Close()
	var quizBody bytes.Buffer
	if _, err := quizBody.ReadFrom(rawResp.Body); err != nil {
		t.Fatal(err)
	}
	if rawResp.StatusCode != http.StatusOK {
		t.Fatalf("quiz: status = %d, body = %s", rawResp.StatusCode, quizBody.String())
	}
	if strings.Contains(quizBody.String(), "correct_answer") {
		t.Error("quiz response leaks correct answers")
	}
	if !strings.Contains(quizBody.String(), "Recursion Quiz") {
		t.Errorf("quiz response missing title: %s", quizBody.String())
	}

	// Answers: 4 of 5 correct.
	resp, fields = doJSON(t, http.MethodPost, base+"/quiz/answers", map[string]any{
		"answers": map[string]string{"q1": "a", "q2": "b", "q3": "c", "q4": "d", "q5": "b"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answers: status = %d", resp.StatusCode)
	}
	var score float64
	if err := json.Unmarshal(fields["score_percentage"], &score); err != nil || score != 80 {
		t.Fatalf("score_percentage = %s, want 80", fields["score_percentage"])
	}

	// Advance past the only page ends the session.
	resp, fields = doJSON(t, http.MethodPost, base+"/advance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("advance: status = %d", resp.StatusCode)
	}
	var ended bool
	if err := json.Unmarshal(fields["ended"], &ended); err != nil || !ended {
		t.Fatalf("ended = %s, want true", fields["ended"])
	}

	// Report, persisted.
	resp, fields = doJSON(t, http.MethodGet, base+"/report", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report: status = %d", resp.StatusCode)
	}
	if _, ok := fields["report_metadata"]; !ok {
		t.Fatal("report missing report_metadata")
	}

	stored, err := st.GetReport(sessionID)
	if err != nil {
		t.Fatalf("report not persisted: %v", err)
	}
	if stored.PerformanceLevel == "" {
		t.Error("persisted report missing performance level")
	}
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t, oracle.NewMockProvider(), nil)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/sessions/nope/explain", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWrongStateConflict(t *testing.T) {
	srv := newTestServer(t, oracle.NewMockProvider(), nil)

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/sessions", map[string]any{
		"deck_text": "Page 1:\ncontent",
		"professor": "David Malan",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d", resp.StatusCode)
	}
	var sessionID string
	_ = json.Unmarshal(fields["session_id"], &sessionID)

	// Advancing before any evaluation is a state conflict.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/sessions/"+sessionID+"/advance", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	srv := newTestServer(t, oracle.NewMockProvider(), nil)

	// Unknown professor.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/sessions", map[string]any{
		"deck_text": "Page 1:\ncontent",
		"professor": "Nobody",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown professor: status = %d, want 400", resp.StatusCode)
	}

	// Malformed deck marker.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/sessions", map[string]any{
		"deck_text": "Page zero:\ncontent",
		"professor": "Andrew NG",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad deck: status = %d, want 400", resp.StatusCode)
	}
}

func TestOracleFailureIsBadGateway(t *testing.T) {
	srv := newTestServer(t, oracle.NewMockProvider(), nil) // empty queue fails

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/sessions", map[string]any{
		"deck_text": "Page 1:\ncontent",
		"professor": "John Guttag",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d", resp.StatusCode)
	}
	var sessionID string
	_ = json.Unmarshal(fields["session_id"], &sessionID)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/sessions/"+sessionID+"/explain", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, oracle.NewMockProvider(), nil)
	resp, fields := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var status string
	if err := json.Unmarshal(fields["status"], &status); err != nil || status != "ok" {
		t.Fatalf("status field = %s", fields["status"])
	}
}
