// Package engine implements the per-session dialogue state machine: flow
// chains, slot commitment with skip-ahead, option matching, the off-topic
// guard, and the step handlers for each conversation flow.
package engine

// Card is a rich display item (e.g. one car listing).  The messaging layer
// decides how to render it for its channel; the engine never formats
// channel-specific payloads.
type Card struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Response is what the engine hands back to the messaging layer after a
// turn: a user-facing message, optional selectable options, and optional
// rich items.  A nil *Response means "send nothing" (the conversation has
// explicitly ended).
type Response struct {
	Message string   `json:"message"`
	Options []string `json:"options,omitempty"`
	Items   []Card   `json:"items,omitempty"`
}

// text is shorthand for a plain-message response.
func text(msg string) *Response {
	return &Response{Message: msg}
}

// withOptions builds a message plus selectable options.
func withOptions(msg string, options []string) *Response {
	return &Response{Message: msg, Options: options}
}
