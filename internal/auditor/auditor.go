// Package auditor turns a finished (or abandoned) tutoring session into a
// performance report: oracle-driven conversation analysis combined with
// deterministic metric computation.
package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/edspace/lectern/internal/model"
	"github.com/edspace/lectern/internal/oracle"
)

// ErrEmptyHistory is returned when there is no conversation to analyze.
var ErrEmptyHistory = errors.New("auditor: empty conversation history")

// Metric weights for the total score.
const (
	weightQuiz          = 0.35
	weightEngagement    = 0.25
	weightUnderstanding = 0.25
	weightProgress      = 0.15
)

// Auditor generates session reports.
type Auditor struct {
	provider    oracle.Provider
	temperature float64
}

// New returns an Auditor backed by the given oracle provider.
func New(provider oracle.Provider) *Auditor {
	return &Auditor{provider: provider, temperature: 0.7}
}

// analysis is the oracle's qualitative read of the conversation.
type analysis struct {
	EngagementMetrics struct {
		ParticipationRate       float64 `json:"participation_rate"`
		ResponseQuality         float64 `json:"response_quality"`
		QuestionAskingFrequency float64 `json:"question_asking_frequency"`
	} `json:"engagement_metrics"`
	UnderstandingProgression struct {
		InitialLevel     float64  `json:"initial_level"`
		FinalLevel       float64  `json:"final_level"`
		KeyImprovements  []string `json:"key_improvements"`
		ChallengingAreas []string `json:"challenging_areas"`
	} `json:"understanding_progression"`
	LearningPatterns struct {
		PreferredLearningStyle string   `json:"preferred_learning_style"`
		MostEffectiveTopics    []string `json:"most_effective_topics"`
		AttentionSpan          string   `json:"attention_span"`
	} `json:"learning_patterns"`
}

// GenerateReport builds the full report artifact. Conversation analysis
// failure is fatal; recommendation failure degrades to a flagged generic
// fallback.
func (a *Auditor) GenerateReport(ctx context.Context, history []model.Entry, quizResults []model.QuizResult) (*model.Report, error) {
	conv, err := a.analyzeConversation(ctx, history)
	if err != nil {
		return nil, fmt.Errorf("report generation: %w", err)
	}

	metrics := computeMetrics(conv, quizResults)
	totalScore := metrics.QuizPerformance*weightQuiz +
		metrics.EngagementQuality*weightEngagement +
		metrics.ConceptUnderstanding*weightUnderstanding +
		metrics.ProgressRate*weightProgress

	report := &model.Report{
		Metadata: model.ReportMetadata{
			GeneratedAt:      time.Now(),
			TotalScore:       round2(totalScore),
			PerformanceLevel: performanceLevel(totalScore),
		},
		PerformanceMetrics: metrics,
		LearningProfile: model.LearningProfile{
			PreferredStyle:  conv.LearningPatterns.PreferredLearningStyle,
			EffectiveTopics: conv.LearningPatterns.MostEffectiveTopics,
			AttentionSpan:   conv.LearningPatterns.AttentionSpan,
		},
		ProgressAnalysis: model.ProgressAnalysis{
			InitialLevel:     conv.UnderstandingProgression.InitialLevel,
			FinalLevel:       conv.UnderstandingProgression.FinalLevel,
			KeyImprovements:  conv.UnderstandingProgression.KeyImprovements,
			ChallengingAreas: conv.UnderstandingProgression.ChallengingAreas,
		},
		Recommendations:   a.recommendations(ctx, metrics, conv),
		VisualizationData: visualization(metrics),
	}
	return report, nil
}

func (a *Auditor) analyzeConversation(ctx context.Context, history []model.Entry) (*analysis, error) {
	if len(history) == 0 {
		return nil, ErrEmptyHistory
	}

	transcript, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}

	resp, err := a.provider.Generate(ctx, oracle.Request{
		System:      buildAnalysisSystemPrompt(),
		User:        buildAnalysisUserPrompt(string(transcript)),
		Schema:      analysisSchema,
		Temperature: a.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation analysis: %w", err)
	}

	var conv analysis
	if err := json.Unmarshal(resp.Content, &conv); err != nil {
		return nil, &oracle.ResponseError{Content: resp.Content, Err: fmt.Errorf("decode analysis: %w", err)}
	}
	return &conv, nil
}

func computeMetrics(conv *analysis, quizResults []model.QuizResult) model.PerformanceMetrics {
	quizScore := 0.0
	if len(quizResults) > 0 {
		sum := 0.0
		for _, r := range quizResults {
			sum += r.ScorePercentage
		}
		quizScore = sum / float64(len(quizResults))
	}

	e := conv.EngagementMetrics
	engagement := e.ParticipationRate*0.4 + e.ResponseQuality*0.4 + e.QuestionAskingFrequency*0.2

	understanding := 0.0
	u := conv.UnderstandingProgression
	if u.InitialLevel > 0 {
		understanding = (u.FinalLevel - u.InitialLevel) / math.Max(u.InitialLevel, 1) * 100
	}

	return model.PerformanceMetrics{
		QuizPerformance:      quizScore,
		EngagementQuality:    engagement,
		ConceptUnderstanding: understanding,
		ProgressRate:         (understanding + engagement) / 2,
	}
}

// recommendations asks the oracle for targeted advice. When that fails the
// report still goes out, carrying a generic fallback flagged as such.
func (a *Auditor) recommendations(ctx context.Context, metrics model.PerformanceMetrics, conv *analysis) model.Recommendations {
	metricsJSON, _ := json.MarshalIndent(metrics, "", "  ")
	patternsJSON, _ := json.MarshalIndent(conv.LearningPatterns, "", "  ")

	resp, err := a.provider.Generate(ctx, oracle.Request{
		System:      buildRecommendationsSystemPrompt(),
		User:        buildRecommendationsUserPrompt(string(metricsJSON), string(patternsJSON)),
		Schema:      recommendationsSchema,
		Temperature: a.temperature,
	})
	if err == nil {
		var recs model.Recommendations
		if err = json.Unmarshal(resp.Content, &recs); err == nil {
			return recs
		}
	}

	slog.Error("recommendation generation failed, using generic fallback", "error", err)
	return model.Recommendations{
		KeyStrengths:        []string{"Unable to analyze strengths due to error"},
		ImprovementAreas:    []string{"Unable to analyze improvement areas due to error"},
		ActionItems:         []string{"Please contact support for detailed recommendations"},
		AdditionalResources: []string{"General learning resources"},
		Generic:             true,
	}
}

func visualization(m model.PerformanceMetrics) model.VisualizationData {
	return model.VisualizationData{
		Metrics: []model.MetricSlice{
			{Name: "Quiz Performance", Percentage: round2(m.QuizPerformance), Weight: weightQuiz},
			{Name: "Engagement Quality", Percentage: round2(m.EngagementQuality), Weight: weightEngagement},
			{Name: "Concept Understanding", Percentage: round2(m.ConceptUnderstanding), Weight: weightUnderstanding},
			{Name: "Progress Rate", Percentage: round2(m.ProgressRate), Weight: weightProgress},
		},
	}
}

func performanceLevel(totalScore float64) string {
	switch {
	case totalScore >= 90:
		return "Outstanding"
	case totalScore >= 80:
		return "Excellent"
	case totalScore >= 70:
		return "Good"
	case totalScore >= 60:
		return "Satisfactory"
	default:
		return "Needs Improvement"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func buildAnalysisSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are an expert Course Auditor.\n")
	sb.WriteString("Analyze the entire conversation history to:\n")
	sb.WriteString("1. Evaluate student engagement and participation\n")
	sb.WriteString("2. Assess concept understanding progression\n")
	sb.WriteString("3. Identify strengths and areas for improvement\n")
	sb.WriteString("4. Provide specific, actionable recommendations\n\n")
	sb.WriteString("Focus on both quantitative and qualitative aspects. Respond with a JSON object.")
	return sb.String()
}

func buildAnalysisUserPrompt(transcript string) string {
	var sb strings.Builder
	sb.WriteString("Conversation History:\n")
	sb.WriteString(transcript)
	sb.WriteString("\n\nProvide a detailed analysis following this structure:\n")
	sb.WriteString(`{
    "engagement_metrics": {
        "participation_rate": 0.0,
        "response_quality": 0.0,
        "question_asking_frequency": 0.0
    },
    "understanding_progression": {
        "initial_level": 0.0,
        "final_level": 0.0,
        "key_improvements": ["improvement"],
        "challenging_areas": ["area"]
    },
    "learning_patterns": {
        "preferred_learning_style": "style",
        "most_effective_topics": ["topic"],
        "attention_span": "description"
    }
}`)
	return sb.String()
}

func buildRecommendationsSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are an expert Course Auditor.\n")
	sb.WriteString("Based on the student's performance metrics and learning patterns, ")
	sb.WriteString("provide specific recommendations for improvement. Respond with a JSON object.")
	return sb.String()
}

func buildRecommendationsUserPrompt(metricsJSON, patternsJSON string) string {
	var sb strings.Builder
	sb.WriteString("Performance Metrics:\n")
	sb.WriteString(metricsJSON)
	sb.WriteString("\n\nLearning Patterns:\n")
	sb.WriteString(patternsJSON)
	sb.WriteString("\n\nProvide targeted recommendations in this format:\n")
	sb.WriteString(`{
    "key_strengths": ["strength"],
    "improvement_areas": ["area"],
    "action_items": ["item"],
    "additional_resources": ["resource"]
}`)
	return sb.String()
}

var analysisSchema = &oracle.Schema{
	Name:        "conversation-analysis",
	Description: "qualitative analysis of a tutoring conversation",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"engagement_metrics": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"participation_rate":        map[string]any{"type": "number"},
					"response_quality":          map[string]any{"type": "number"},
					"question_asking_frequency": map[string]any{"type": "number"},
				},
				"required": []any{"participation_rate", "response_quality", "question_asking_frequency"},
			},
			"understanding_progression": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"initial_level":     map[string]any{"type": "number"},
					"final_level":       map[string]any{"type": "number"},
					"key_improvements":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"challenging_areas": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []any{"initial_level", "final_level", "key_improvements", "challenging_areas"},
			},
			"learning_patterns": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"preferred_learning_style": map[string]any{"type": "string"},
					"most_effective_topics":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"attention_span":           map[string]any{"type": "string"},
				},
				"required": []any{"preferred_learning_style", "most_effective_topics", "attention_span"},
			},
		},
		"required": []any{"engagement_metrics", "understanding_progression", "learning_patterns"},
	},
}

var recommendationsSchema = &oracle.Schema{
	Name:        "session-recommendations",
	Description: "targeted recommendations for the student",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key_strengths":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"improvement_areas":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"action_items":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"additional_resources": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"key_strengths", "improvement_areas", "action_items", "additional_resources"},
	},
}
