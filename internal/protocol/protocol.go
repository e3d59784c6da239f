// Package protocol defines the message envelope used on the control API's
// WebSocket status stream.
package protocol

// MessageType defines the type of WebSocket message
type MessageType string

// TypeStatus carries an engine state transition. Keepalive is handled at the
// WebSocket transport level, so no other message types exist yet.
const TypeStatus MessageType = "status"

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// StatusPayload is the payload for TypeStatus. Status is one of the engine's
// literal status strings; RunID identifies the run that reported it.
type StatusPayload struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id,omitempty"`
	Timestamp int64  `json:"ts"`
}
