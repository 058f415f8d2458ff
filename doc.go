// Package agentworld is a chat dispatch core for multi-agent worlds. A world
// hosts a roster of AI agents and any number of concurrent chat sessions.
// Humans and agents address each other with @name mentions; the world routes
// each message to the agents that should respond, streams their replies over
// a per-world event bus, and keeps a per-agent memory of everything said.
//
// A world-wide turn limiter bounds agent-to-agent exchanges: every model
// invocation consumes a turn, a human or system message returns the budget,
// and an agent can hand the conversation back early with the pass directive.
package agentworld
