package model

import (
	"time"
)

// Role represents a conversation turn's author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleStudent   Role = "student"
	RoleProfessor Role = "professor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleStudent, RoleProfessor:
		return true
	}
	return false
}

// Slide is one unit of instructional content, addressed by a 1-based page
// number. Immutable once parsed.
type Slide struct {
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
}

// Entry is a single conversation turn in the ledger. Entries are append-only
// and never edited after insertion.
type Entry struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Page      int            `json:"page"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Level is a discretized understanding level.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Action is the evaluator's page-movement recommendation.
type Action string

const (
	ActionStay Action = "stay"
	ActionNext Action = "next"
)

// Understanding describes the evaluator's judgment of a single student turn.
type Understanding struct {
	Level          Level    `json:"level"`
	Feedback       string   `json:"feedback"`
	AreasToImprove []string `json:"areas_to_improve"`
}

// QuizRecommendation is the oracle's own view on whether a quiz is warranted.
type QuizRecommendation struct {
	TriggerQuiz bool   `json:"trigger_quiz"`
	Reasoning   string `json:"reasoning"`
}

// Assessment is the full result of evaluating a student response against a
// slide. RecommendedAction is the sole signal used for page advancement.
type Assessment struct {
	Understanding      Understanding      `json:"understanding_assessment"`
	KeyConcepts        []string           `json:"key_concepts"`
	ConceptLevels      map[string]Level   `json:"concept_levels"`
	QuizRecommendation QuizRecommendation `json:"quiz_recommendation"`
	RecommendedAction  Action             `json:"recommended_action"`
	Reasoning          string             `json:"reasoning"`
}

// ProfResponse is the student-facing part of a slide explanation.
type ProfResponse struct {
	Greeting             string   `json:"greeting"`
	Explanation          string   `json:"explanation"`
	KeyPoints            []string `json:"key_points"`
	VerificationQuestion string   `json:"verification_question"`
}

// TeachingNotes carries the professor's side notes about a slide.
type TeachingNotes struct {
	DifficultyLevel    string   `json:"difficulty_level"`
	Prerequisites      []string `json:"prerequisites"`
	SuggestedExercises []string `json:"suggested_exercises"`
}

// Explanation is a full explanation turn produced for one slide.
type Explanation struct {
	ProfResponse  ProfResponse  `json:"prof_response"`
	TeachingNotes TeachingNotes `json:"teaching_notes"`
}

// Option is one labeled choice of a multiple-choice question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a single multiple-choice question with four labeled options.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"question"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// Quiz is a multiple-choice quiz scoped to one slide page. At most one quiz
// is active per session at a time.
type Quiz struct {
	Title     string     `json:"quiz_title"`
	Page      int        `json:"page,omitempty"`
	Questions []Question `json:"questions"`
}

// QuestionResult records how a single question was answered.
type QuestionResult struct {
	QuestionID    string `json:"question_id"`
	StudentAnswer string `json:"student_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Correct       bool   `json:"is_correct"`
	Explanation   string `json:"explanation"`
}

// Tier is a discretized quiz performance bucket.
type Tier string

const (
	TierExcellent        Tier = "Excellent"
	TierGood             Tier = "Good"
	TierSatisfactory     Tier = "Satisfactory"
	TierNeedsImprovement Tier = "Needs Improvement"
)

// TierForScore maps a score percentage to its performance tier.
func TierForScore(pct float64) Tier {
	switch {
	case pct >= 90:
		return TierExcellent
	case pct >= 75:
		return TierGood
	case pct >= 60:
		return TierSatisfactory
	default:
		return TierNeedsImprovement
	}
}

// QuizResult is the immutable outcome of grading one quiz.
type QuizResult struct {
	Page               int              `json:"page"`
	TotalQuestions     int              `json:"total_questions"`
	CorrectCount       int              `json:"correct_answers"`
	ScorePercentage    float64          `json:"score_percentage"`
	PerformanceTier    Tier             `json:"performance_tier"`
	Details            []QuestionResult `json:"detailed_results"`
	AdvancementAllowed bool             `json:"advancement_allowed"`
	GradedAt           time.Time        `json:"graded_at"`
}

// ReportMetadata summarizes when and how a report was produced.
type ReportMetadata struct {
	GeneratedAt      time.Time `json:"generated_at"`
	TotalScore       float64   `json:"total_score"`
	PerformanceLevel string    `json:"performance_level"`
}

// PerformanceMetrics are the quantitative session metrics.
type PerformanceMetrics struct {
	QuizPerformance      float64 `json:"quiz_performance"`
	EngagementQuality    float64 `json:"engagement_quality"`
	ConceptUnderstanding float64 `json:"concept_understanding"`
	ProgressRate         float64 `json:"progress_rate"`
}

// LearningProfile tags the student's observed learning style.
type LearningProfile struct {
	PreferredStyle  string   `json:"preferred_style"`
	EffectiveTopics []string `json:"effective_topics"`
	AttentionSpan   string   `json:"attention_span"`
}

// ProgressAnalysis describes understanding progression over the session.
type ProgressAnalysis struct {
	InitialLevel     float64  `json:"initial_level"`
	FinalLevel       float64  `json:"final_level"`
	KeyImprovements  []string `json:"key_improvements"`
	ChallengingAreas []string `json:"challenging_areas"`
}

// Recommendations are the free-text improvement suggestions. Generic is set
// when the oracle could not produce them and a fixed fallback was substituted.
type Recommendations struct {
	KeyStrengths        []string `json:"key_strengths"`
	ImprovementAreas    []string `json:"improvement_areas"`
	ActionItems         []string `json:"action_items"`
	AdditionalResources []string `json:"additional_resources"`
	Generic             bool     `json:"generic_fallback,omitempty"`
}

// MetricSlice is one wedge of the report's metric breakdown.
type MetricSlice struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	Weight     float64 `json:"weight"`
}

// VisualizationData holds the chart-ready metric breakdown.
type VisualizationData struct {
	Metrics []MetricSlice `json:"metrics"`
}

// Report is the session's durable output artifact. Immutable once produced.
type Report struct {
	Metadata           ReportMetadata     `json:"report_metadata"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
	LearningProfile    LearningProfile    `json:"learning_profile"`
	ProgressAnalysis   ProgressAnalysis   `json:"progress_analysis"`
	Recommendations    Recommendations    `json:"recommendations"`
	VisualizationData  VisualizationData  `json:"visualization_data"`
}
