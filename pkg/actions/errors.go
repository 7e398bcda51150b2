package actions

import "fmt"

// noActionError is the outcome error for a request with no populated
// action field.
const noActionError = "No action specified."

// HandlerError wraps a failure raised by an action handler. It reaches the
// dispatcher's caller only after the cycle's subscription has been cleaned
// up.
type HandlerError struct {
	Action string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("action %q failed: %v", e.Action, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// InvalidResultError reports a handler return value that is neither a
// string, an *Outcome, nor nil.
type InvalidResultError struct {
	Action string
	Result interface{}
}

func (e *InvalidResultError) Error() string {
	return fmt.Sprintf("action %q returned invalid result type %T", e.Action, e.Result)
}
