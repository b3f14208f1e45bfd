package oracle

import (
	"encoding/json"
	"fmt"
)

// InvocationError wraps a transport or vendor failure: the request never
// produced usable output.
type InvocationError struct {
	Provider string
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("oracle: %s invocation failed: %v", e.Provider, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ResponseError wraps output that came back but does not parse or does not
// match the requested schema. Content holds the offending payload for
// logging.
type ResponseError struct {
	Content json.RawMessage
	Err     error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("oracle: malformed response: %v", e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }
