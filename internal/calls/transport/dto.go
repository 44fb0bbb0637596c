// Package transport defines the wire DTOs for the calls bounded context.
// The webhook payloads mirror what the telephony provider posts as
// application/x-www-form-urlencoded.
package transport

// ForwardStartedCallback is posted by the provider when an inbound call
// hits a tracked number and forwarding to the owner's phone begins.
type ForwardStartedCallback struct {
	CallSid string `form:"CallSid" validate:"required,min=1,max=64"`
	From    string `form:"From" validate:"required,min=1,max=32"`
	To      string `form:"To" validate:"required,min=1,max=32"`
}

// DialStatusCallback is posted by the provider when the forwarded dial
// leg reaches a terminal state.
type DialStatusCallback struct {
	CallSid        string `form:"CallSid" validate:"required,min=1,max=64"`
	DialCallStatus string `form:"DialCallStatus" validate:"required,min=1,max=32"`
	From           string `form:"From" validate:"required,min=1,max=32"`
	To             string `form:"To" validate:"required,min=1,max=32"`
}

// ReconcileResponse reports one manually triggered reconciliation pass.
type ReconcileResponse struct {
	Scanned  int `json:"scanned"`
	Missed   int `json:"missed"`
	Answered int `json:"answered"`
	NotFound int `json:"notFound"`
	Pending  int `json:"pending"`
	Failed   int `json:"failed"`
}
