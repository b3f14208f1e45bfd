package tutor

import "fmt"

// StateError reports an operation invoked in a state that does not permit
// it. The session is left unchanged.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("tutor: %s not allowed in state %q", e.Op, e.State)
}

// PreconditionError reports a request that is well-formed but impossible to
// satisfy: unknown professor, page out of range, quiz gate closed.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string {
	return "tutor: " + e.Msg
}
