package euchre

import "fmt"

// Reject codes shared across the engine, dispatcher and wire surface.
const (
	CodeNotYourTurn   = "NOT_YOUR_TURN"
	CodeInvalidAction = "INVALID_ACTION"
	CodeInvalidState  = "INVALID_STATE"
	CodeUnauthorized  = "UNAUTHORIZED"
)

// Reject is a structured rule failure. The engine returns it instead of an
// error so callers can map it onto exactly one action.rejected event.
type Reject struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *Reject) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

// NewReject builds a reject with a formatted message.
func NewReject(code, format string, args ...any) *Reject {
	return &Reject{Code: code, Message: fmt.Sprintf(format, args...)}
}

func rejectNotYourTurn(actor Seat, turn Seat) *Reject {
	return NewReject(CodeNotYourTurn, "it is %s's turn, not %s's", turn, actor)
}

func rejectInvalidState(format string, args ...any) *Reject {
	return NewReject(CodeInvalidState, format, args...)
}

func rejectInvalidAction(format string, args ...any) *Reject {
	return NewReject(CodeInvalidAction, format, args...)
}
