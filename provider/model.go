package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/yysun/agent-world-sub006/messages"
)

// Provider defines the interface for AI model backends (e.g., OpenAI).
// Implementations handle the specifics of communicating with the service
// while the rest of the system only ever sees stream events.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (<-chan StreamEvent, error)
}

// CompletionParams encapsulates everything needed for one completion request.
type CompletionParams struct {
	// MessageID identifies the reply being generated. All stream events for
	// this request carry it.
	MessageID uuid.UUID

	// SessionID is the chat session this request belongs to.
	SessionID string

	// Agent is the name of the agent producing the reply.
	Agent string

	// Instructions provide the system prompt for the agent.
	Instructions string

	// Thread is the agent's view of the conversation so far, oldest first.
	Thread []messages.Message

	// Stream requests incremental chunks. When false the response arrives
	// in one piece, still delivered over the event channel.
	Stream bool

	// Model names the model to use for this completion.
	Model string

	// Prevents unkeyed literals
	_ struct{}
}
