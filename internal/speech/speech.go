// Package speech is the boundary to a text-to-speech collaborator. The
// tutoring core never depends on it; the hosting layer attaches the
// returned reference to explanation responses.
package speech

import "context"

// Synthesizer turns explanation text into an audio artifact and returns a
// reference to it (a URL or object key). An empty reference with nil error
// means synthesis is disabled.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (ref string, err error)
}

// Noop is the default Synthesizer: speech disabled.
type Noop struct{}

func (Noop) Synthesize(context.Context, string) (string, error) {
	return "", nil
}
