package ports

import "context"

// Action is one inline button offered alongside an outbound message. Data is
// the opaque payload echoed back as UpdateInput.Callback when pressed.
type Action struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// OutboundMessage is a reply handed to the external chat platform adapter.
// Rendering and transport are the adapter's problem.
type OutboundMessage struct {
	ChatID  int64    `json:"chat_id"`
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
}

// Messenger delivers outbound messages to the platform adapter.
type Messenger interface {
	Send(ctx context.Context, msg OutboundMessage) error
}
