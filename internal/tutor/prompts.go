package tutor

import (
	"fmt"
	"strings"

	"github.com/edspace/lectern/internal/model"
	"github.com/edspace/lectern/internal/oracle"
)

func personaHeader(sb *strings.Builder, name string, p model.Profile) {
	fmt.Fprintf(sb, "You are Professor %s.\n", name)
	sb.WriteString("Teaching Style: " + p.Style + "\n")
	sb.WriteString("Background: " + p.Background + "\n")
	sb.WriteString("Verification Style: " + p.VerificationStyle + "\n\n")
}

// buildExplanationSystemPrompt sets the persona and the anti-repetition
// guidance. attempt > 0 means a prior candidate was rejected as too similar
// and the regeneration directive is appended.
func buildExplanationSystemPrompt(name string, p model.Profile, recentContext string, attempt int) string {
	var sb strings.Builder
	personaHeader(&sb, name, p)

	sb.WriteString("IMPORTANT: Avoid repeating previous explanations.\n")
	sb.WriteString("If your explanation is too similar to past explanations, provide a substantially different approach, such as:\n")
	sb.WriteString("- Using a completely different analogy\n")
	sb.WriteString("- Focusing on different aspects of the topic\n")
	sb.WriteString("- Changing the level of detail\n")
	sb.WriteString("- Providing a contrasting perspective\n\n")

	sb.WriteString("Previous Conversation Context:\n")
	sb.WriteString(recentContext)
	sb.WriteString("\n")

	for i := 0; i < attempt; i++ {
		sb.WriteString("\nPrevious explanation was too similar. Generate a COMPLETELY DIFFERENT explanation.")
	}

	return sb.String()
}

func buildExplanationUserPrompt(slide model.Slide) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current slide (Page %d):\n%s\n\n", slide.PageNumber, slide.Content)
	sb.WriteString("Respond with a JSON object using this exact structure:\n")
	sb.WriteString(`{
    "prof_response": {
        "greeting": "optional greeting",
        "explanation": "detailed explanation in your teaching style",
        "key_points": ["point 1", "point 2"],
        "verification_question": "question to check understanding"
    },
    "teaching_notes": {
        "difficulty_level": "basic/intermediate/advanced",
        "prerequisites": ["prerequisite 1", "prerequisite 2"],
        "suggested_exercises": ["exercise 1", "exercise 2"]
    }
}`)
	return sb.String()
}

func buildEvaluationSystemPrompt(name string, p model.Profile, recentContext string) string {
	var sb strings.Builder
	personaHeader(&sb, name, p)

	sb.WriteString("Evaluate the student's response to the slide content and provide:\n")
	sb.WriteString("1. Feedback on their understanding\n")
	sb.WriteString("2. The key concepts under discussion and the student's level on each\n")
	sb.WriteString("3. Whether a quiz should be triggered\n")
	sb.WriteString("4. Recommendation to stay or move to the next slide, with reasoning\n\n")

	sb.WriteString("Previous Conversation Context:\n")
	sb.WriteString(recentContext)
	sb.WriteString("\n\nRespond with a JSON object containing these details.")

	return sb.String()
}

func buildEvaluationUserPrompt(slide model.Slide, studentResponse string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Slide Content:\n%s\n\n", slide.Content)
	fmt.Fprintf(&sb, "Student Response:\n%s\n\n", studentResponse)
	sb.WriteString("Respond with this exact structure:\n")
	sb.WriteString(`{
    "understanding_assessment": {
        "level": "low/medium/high",
        "feedback": "detailed explanation of student's understanding",
        "areas_to_improve": ["area 1", "area 2"]
    },
    "key_concepts": ["concept1", "concept2"],
    "concept_levels": {
        "concept1": "low/medium/high",
        "concept2": "low/medium/high"
    },
    "quiz_recommendation": {
        "trigger_quiz": true,
        "reasoning": "explanation of quiz recommendation"
    },
    "recommended_action": "stay/next",
    "reasoning": "explanation of why to stay or move"
}`)
	return sb.String()
}

func buildQuizSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are an AI Teaching Assistant creating a Multiple Choice Quiz.\n\n")
	sb.WriteString("Generate a quiz that:\n")
	sb.WriteString("1. Covers the key concepts in the slide content\n")
	sb.WriteString("2. Has 5 multiple-choice questions\n")
	sb.WriteString("3. Includes varied difficulty levels\n")
	sb.WriteString("4. Provides correct answers and explanations\n\n")
	sb.WriteString("Ensure the quiz is educational and helps reinforce learning. Respond with a JSON object.")
	return sb.String()
}

func buildQuizUserPrompt(slide model.Slide, concepts []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Slide Content:\n%s\n\n", slide.Content)
	fmt.Fprintf(&sb, "Key Concepts to Test:\n%s\n\n", strings.Join(concepts, ", "))
	sb.WriteString("Respond with this exact structure:\n")
	sb.WriteString(`{
    "quiz_title": "Quiz Title",
    "questions": [
        {
            "id": "q1",
            "question": "Question text",
            "options": [
                {"id": "a", "text": "Option A"},
                {"id": "b", "text": "Option B"},
                {"id": "c", "text": "Option C"},
                {"id": "d", "text": "Option D"}
            ],
            "correct_answer": "a",
            "explanation": "Detailed explanation of the correct answer"
        }
    ]
}`)
	sb.WriteString("\nInclude exactly 5 questions following the same structure.")
	return sb.String()
}

var levelEnum = map[string]any{
	"type": "string",
	"enum": []any{"low", "medium", "high"},
}

var explanationSchema = &oracle.Schema{
	Name:        "slide-explanation",
	Description: "professor explanation of one slide",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prof_response": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"greeting":              map[string]any{"type": "string"},
					"explanation":           map[string]any{"type": "string"},
					"key_points":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"verification_question": map[string]any{"type": "string"},
				},
				"required": []any{"explanation"},
			},
			"teaching_notes": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"difficulty_level":    map[string]any{"type": "string"},
					"prerequisites":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"suggested_exercises": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		},
		"required": []any{"prof_response"},
	},
}

var assessmentSchema = &oracle.Schema{
	Name:        "response-assessment",
	Description: "evaluation of a student response against a slide",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"understanding_assessment": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"level":            levelEnum,
					"feedback":         map[string]any{"type": "string"},
					"areas_to_improve": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []any{"level", "feedback"},
			},
			"key_concepts": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"concept_levels": map[string]any{
				"type":                 "object",
				"additionalProperties": levelEnum,
			},
			"quiz_recommendation": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"trigger_quiz": map[string]any{"type": "boolean"},
					"reasoning":    map[string]any{"type": "string"},
				},
				"required": []any{"trigger_quiz"},
			},
			"recommended_action": map[string]any{
				"type": "string",
				"enum": []any{"stay", "next"},
			},
			"reasoning": map[string]any{"type": "string"},
		},
		"required": []any{"understanding_assessment", "key_concepts", "concept_levels", "quiz_recommendation", "recommended_action"},
	},
}

var quizSchema = &oracle.Schema{
	Name:        "mcq-quiz",
	Description: "multiple choice quiz for one slide",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"quiz_title": map[string]any{"type": "string"},
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":       map[string]any{"type": "string"},
						"question": map[string]any{"type": "string"},
						"options": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"id":   map[string]any{"type": "string"},
									"text": map[string]any{"type": "string"},
								},
								"required": []any{"id", "text"},
							},
						},
						"correct_answer": map[string]any{
							"type": "string",
							"enum": []any{"a", "b", "c", "d"},
						},
						"explanation": map[string]any{"type": "string"},
					},
					"required": []any{"id", "question", "options", "correct_answer"},
				},
			},
		},
		"required": []any{"quiz_title", "questions"},
	},
}
