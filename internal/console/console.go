// Package console runs a tutoring session interactively on a terminal,
// mirroring the HTTP flow: explain, answer, evaluate, optional quiz,
// advance, final report.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/edspace/lectern/internal/auditor"
	"github.com/edspace/lectern/internal/model"
	"github.com/edspace/lectern/internal/tutor"
)

// Console drives one interactive session.
type Console struct {
	in  *bufio.Scanner
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewScanner(in), out: out}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// readLine prompts and reads one trimmed line. EOF reads as "end" so a
// closed stdin finishes the session cleanly.
func (c *Console) readLine(prompt string) string {
	c.printf("%s", prompt)
	if !c.in.Scan() {
		return "end"
	}
	return strings.TrimSpace(c.in.Text())
}

func isQuit(s string) bool {
	switch strings.ToLower(s) {
	case "end", "quit", "exit":
		return true
	}
	return false
}

// Run loops the session until the deck is exhausted or the student quits,
// then prints the final report as JSON.
func (c *Console) Run(ctx context.Context, cfg tutor.Config) error {
	session, err := tutor.NewSession(cfg)
	if err != nil {
		return err
	}
	aud := auditor.New(cfg.Provider)

	c.printf("\nWelcome to the AI Professor System!\n")
	c.printf("Your professor today: %s\n", session.Professor())

	for !session.Ended() {
		if err := c.runPage(ctx, session); err != nil {
			var perr *tutor.PreconditionError
			if errors.As(err, &perr) {
				c.printf("\n%v\n", err)
				break
			}
			if errors.Is(err, errQuit) {
				break
			}
			return err
		}
	}

	c.printf("\nGenerating session report...\n")
	report, err := session.BuildReport(ctx, aud)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	c.printf("\n=== Session Report ===\n%s\n", raw)
	c.printf("\nThank you for attending the session!\n")
	return nil
}

var errQuit = errors.New("console: student ended the session")

func (c *Console) runPage(ctx context.Context, session *tutor.Session) error {
	expl, err := session.ExplainCurrentSlide(ctx)
	if err != nil {
		return err
	}

	page := session.CurrentPage()
	c.printf("\n=== Professor %s (Page %d) ===\n", session.Professor(), page)
	if expl.ProfResponse.Greeting != "" {
		c.printf("\n%s\n", expl.ProfResponse.Greeting)
	}
	c.printf("\nExplanation:\n%s\n", expl.ProfResponse.Explanation)
	if len(expl.ProfResponse.KeyPoints) > 0 {
		c.printf("\nKey Points:\n")
		for _, p := range expl.ProfResponse.KeyPoints {
			c.printf("- %s\n", p)
		}
	}
	c.printf("\nTo verify your understanding:\n%s\n", expl.ProfResponse.VerificationQuestion)

	assessment, err := c.collectAssessment(ctx, session)
	if err != nil {
		return err
	}

	c.printf("\nProfessor's feedback: %s\n", assessment.Understanding.Feedback)
	if len(assessment.Understanding.AreasToImprove) > 0 {
		c.printf("\nAreas to improve:\n")
		for _, a := range assessment.Understanding.AreasToImprove {
			c.printf("- %s\n", a)
		}
	}

	ready, err := session.CheckQuizReadiness()
	if err != nil {
		return err
	}
	if ready {
		if err := c.runQuiz(ctx, session); err != nil {
			return err
		}
	} else {
		c.printf("\nNot ready for quiz. Continue exploring the concept.\n")
	}

	newPage, ended, err := session.Advance()
	if err != nil {
		return err
	}
	if ended {
		c.printf("\nYou have reached the end of the deck.\n")
	} else if newPage != page {
		c.printf("\nMoving on to page %d.\n", newPage)
	} else {
		c.printf("\nLet's spend more time on this page.\n")
	}
	return nil
}

// collectAssessment reads the student's answer and evaluates it, re-asking
// after a transient oracle failure.
func (c *Console) collectAssessment(ctx context.Context, session *tutor.Session) (*model.Assessment, error) {
	for {
		answer := c.readLine("\nYour answer (or 'end' to finish): ")
		if isQuit(answer) {
			return nil, errQuit
		}
		if answer == "" {
			c.printf("Please enter an answer.\n")
			continue
		}

		assessment, err := session.EvaluateResponse(ctx, answer)
		if err != nil {
			c.printf("\nEvaluation failed (%v), please try again.\n", err)
			continue
		}
		return assessment, nil
	}
}

func (c *Console) runQuiz(ctx context.Context, session *tutor.Session) error {
	quiz, err := session.GenerateQuiz(ctx)
	if err != nil {
		return err
	}

	c.printf("\n--- Quiz Time! ---\n")
	c.printf("\nQuiz: %s\n", quiz.Title)

	answers := make(map[string]string, len(quiz.Questions))
	for _, q := range quiz.Questions {
		c.printf("\n%s\n", q.Prompt)
		for _, opt := range q.Options {
			c.printf("%s. %s\n", opt.ID, opt.Text)
		}
		for {
			answer := strings.ToLower(c.readLine("\nYour answer (a/b/c/d): "))
			if isQuit(answer) {
				return errQuit
			}
			if answer == "a" || answer == "b" || answer == "c" || answer == "d" {
				answers[q.ID] = answer
				break
			}
			c.printf("Invalid input. Please enter a, b, c, or d.\n")
		}
	}

	result, err := session.GradeQuiz(answers)
	if err != nil {
		return err
	}

	c.printf("\n--- Quiz Results ---\n")
	c.printf("Total Questions: %d\n", result.TotalQuestions)
	c.printf("Correct Answers: %d\n", result.CorrectCount)
	c.printf("Score: %.2f%%\n", result.ScorePercentage)
	c.printf("Performance Level: %s\n", result.PerformanceTier)

	c.printf("\nDetailed Results:\n")
	for _, d := range result.Details {
		status := "correct"
		if !d.Correct {
			status = "incorrect"
		}
		c.printf("%s: %s (correct: %s)\n", d.QuestionID, status, d.CorrectAnswer)
		if d.Explanation != "" {
			c.printf("Explanation: %s\n", d.Explanation)
		}
	}

	c.printf("\nRecommendation for Professor:\n%s\n", tutor.TeachingRecommendation(result.PerformanceTier))
	return nil
}
