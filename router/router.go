package router

import (
	"github.com/yysun/agent-world-sub006/mention"
	"github.com/yysun/agent-world-sub006/messages"
)

// Roster is the router's view of the agents registered in a world.
type Roster interface {
	// ActiveNames returns the names of active agents in registration order.
	ActiveNames() []string
	// IsKnown reports whether an agent with this name is registered,
	// active or not. Matching is case-insensitive.
	IsKnown(name string) bool
	// IsActive reports whether the named agent is currently active.
	IsActive(name string) bool
}

// Decision is the outcome of routing one message.
type Decision struct {
	// Candidates are the agents that should respond, in roster order for
	// broadcasts. At most one entry for an addressed message.
	Candidates []string

	// Addressed is true when a valid mention chose the recipient. An
	// addressed message with no candidates named an inactive agent and is
	// dropped rather than broadcast.
	Addressed bool
}

// Route determines the response candidates for a message.
func Route(msg messages.Message, roster Roster) Decision {
	if msg.Sender.IsSystem() {
		return Decision{Candidates: roster.ActiveNames()}
	}

	exclude := ""
	if msg.Sender.IsAgent() {
		exclude = msg.Sender.Name
	}

	if target, ok := mention.FirstValid(msg.Content, roster.IsKnown, exclude); ok {
		d := Decision{Addressed: true}
		if roster.IsActive(target) {
			d.Candidates = []string{target}
		}
		return d
	}

	// No valid mention. Humans speak to the room, agents to nobody.
	if msg.Sender.IsHuman() {
		return Decision{Candidates: roster.ActiveNames()}
	}
	return Decision{}
}
