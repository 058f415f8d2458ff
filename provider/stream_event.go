package provider

import (
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// StreamEvent is the closed set of events a provider emits while generating
// one reply. Every request produces exactly one terminal event, either a
// Response or an Error.
type StreamEvent interface {
	streamEvent()
}

// Start marks the beginning of generation for a reply.
type Start struct {
	MessageID uuid.UUID       `json:"message_id"`
	SessionID string          `json:"session_id"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Start) streamEvent() {}

// Chunk carries an incremental piece of the reply text.
type Chunk struct {
	MessageID uuid.UUID       `json:"message_id"`
	SessionID string          `json:"session_id"`
	Delta     string          `json:"delta"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Chunk) streamEvent() {}

// Response is the successful terminal event. Content holds the full reply
// text, including everything already delivered as chunks.
type Response struct {
	MessageID uuid.UUID       `json:"message_id"`
	SessionID string          `json:"session_id"`
	Content   string          `json:"content"`
	Usage     gjson.Result    `json:"usage,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Response) streamEvent() {}

// Error is the failed terminal event. Nothing from the attempt survives it.
type Error struct {
	MessageID uuid.UUID       `json:"message_id"`
	SessionID string          `json:"session_id"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Error) streamEvent() {}

func (e Error) Error() string {
	return fmt.Sprintf("message_id: %s, session_id: %s, error: %v", e.MessageID, e.SessionID, e.Err)
}
