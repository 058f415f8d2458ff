package events

import (
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/yysun/agent-world-sub006/messages"
)

// Topic names the three per-world event streams.
type Topic string

const (
	TopicConversation Topic = "conversation"
	TopicStream       Topic = "stream"
	TopicSystem       Topic = "system"
)

// Event is the closed interface over everything a world bus carries.
type Event interface {
	worldEvent()
	// Session returns the chat session the event belongs to. Diagnostics may
	// return an empty string; conversation and stream events always carry one.
	Session() string
}

// Message is a conversation-topic event: one chat-visible message.
type Message struct {
	MessageID uuid.UUID       `json:"message_id"`
	SessionID string          `json:"session_id"`
	Sender    messages.Sender `json:"sender"`
	Content   string          `json:"content"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (Message) worldEvent()       {}
func (e Message) Session() string { return e.SessionID }

// FromMessage converts a conversation message into its bus event.
func FromMessage(m messages.Message) Message {
	return Message{
		MessageID: m.ID,
		SessionID: m.SessionID,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
}

// StreamStart announces that an agent began producing a reply to a message.
type StreamStart struct {
	MessageID uuid.UUID       `json:"message_id"`
	SessionID string          `json:"session_id"`
	Agent     string          `json:"agent"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (StreamStart) worldEvent()       {}
func (e StreamStart) Session() string { return e.SessionID }

// StreamChunk carries one incremental fragment of an agent's in-flight reply.
// The delta is republished exactly as the provider produced it.
type StreamChunk struct {
	MessageID uuid.UUID       `json:"message_id"`
	SessionID string          `json:"session_id"`
	Agent     string          `json:"agent"`
	Delta     string          `json:"delta"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (StreamChunk) worldEvent()       {}
func (e StreamChunk) Session() string { return e.SessionID }

// StreamEnd carries the consolidated reply text, byte-identical to what was
// persisted to the agent's memory. Usage is the provider's token accounting,
// passed through untouched when present.
type StreamEnd struct {
	MessageID uuid.UUID       `json:"message_id"`
	SessionID string          `json:"session_id"`
	Agent     string          `json:"agent"`
	Content   string          `json:"content"`
	Usage     gjson.Result    `json:"usage,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (StreamEnd) worldEvent()       {}
func (e StreamEnd) Session() string { return e.SessionID }

// StreamError reports a model invocation that failed mid-stream. No reply is
// persisted for it.
type StreamError struct {
	MessageID uuid.UUID       `json:"message_id"`
	SessionID string          `json:"session_id"`
	Agent     string          `json:"agent"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (StreamError) worldEvent()       {}
func (e StreamError) Session() string { return e.SessionID }

func (e StreamError) Error() string {
	errStr := "<nil>"
	if e.Err != nil {
		errStr = e.Err.Error()
	}
	return fmt.Sprintf("%s session=%s agent=%s message_id=%s", errStr, e.SessionID, e.Agent, e.MessageID)
}

// Diagnostic is a system-topic event. Agents never act on it.
type Diagnostic struct {
	SessionID string          `json:"session_id,omitempty"`
	Scope     string          `json:"scope"`
	Detail    string          `json:"detail"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (Diagnostic) worldEvent()       {}
func (e Diagnostic) Session() string { return e.SessionID }

// Diagnostic scopes.
const (
	ScopeSubscriber    = "subscriber"
	ScopeSessionFilter = "session-filter"
	ScopeTurnLimit     = "turn-limit"
	ScopeStream        = "stream"
)
