package router

import (
	"fmt"
	"strings"
)

// PassDirective is the literal an agent emits to hand the conversation back
// to the human instead of continuing an agent-to-agent exchange.
const PassDirective = "<world>pass</world>"

// HandBackNotice replaces a reply that contains the pass directive. It
// mentions the human by role, which no agent roster resolves, so routing
// ends there.
const HandBackNotice = "@human I am handing this conversation back to you."

// HandlePass inspects an agent reply for the pass directive. When present it
// returns the hand-back notice and true; the caller resets the turn counter
// and publishes the notice in place of the original reply.
func HandlePass(text string) (string, bool) {
	if !strings.Contains(text, PassDirective) {
		return text, false
	}
	return HandBackNotice, true
}

// TurnLimitNotice is published when an agent could not respond because the
// world's turn budget ran out. It redirects the conversation to the human.
func TurnLimitNotice(agent string, limit int) string {
	return fmt.Sprintf("@human %s reached the turn limit of %d. Reply to continue the conversation.", agent, limit)
}
