// Package deck parses extracted document text into an ordered slide deck.
//
// The input convention comes from the upstream extraction step: a line of the
// form "Page N:" opens a new page, every following line belongs to that page
// until the next marker, and the literal "Text content:" label is structural
// noise to be dropped.
package deck

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edspace/lectern/internal/model"
)

const (
	pageMarkerPrefix = "Page "
	textContentLabel = "Text content:"
)

// ParseError reports a malformed page marker line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("deck: line %d: bad page marker %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts raw extracted text into an ordered slide deck.
// Text with no page markers yields an empty deck; a marker line with a
// malformed page number fails fast.
func Parse(text string) ([]model.Slide, error) {
	var (
		slides      []model.Slide
		currentPage = -1
		content     []string
	)

	flush := func() {
		if currentPage < 0 {
			return
		}
		slides = append(slides, model.Slide{
			PageNumber: currentPage,
			Content:    strings.TrimSpace(strings.Join(content, "\n")),
		})
	}

	for i, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, pageMarkerPrefix):
			page, err := parseMarker(line)
			if err != nil {
				return nil, &ParseError{Line: i + 1, Text: line, Err: err}
			}
			flush()
			currentPage = page
			content = content[:0]
		case strings.TrimSpace(line) == textContentLabel:
			// Structural label emitted by the extractor, not content.
		default:
			content = append(content, line)
		}
	}
	flush()

	return slides, nil
}

// parseMarker extracts the page number from a "Page N: ..." line.
func parseMarker(line string) (int, error) {
	head, _, _ := strings.Cut(line, ":")
	fields := strings.Fields(head)
	if len(fields) < 2 {
		return 0, fmt.Errorf("missing page number")
	}
	page, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("page number %q is not an integer", fields[1])
	}
	if page < 1 {
		return 0, fmt.Errorf("page number must be positive, got %d", page)
	}
	return page, nil
}
