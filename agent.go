package agentworld

import (
	"sync/atomic"

	"github.com/fogfish/opts"
	"github.com/yysun/agent-world-sub006/memory"
)

// Agent is one member of a world's roster. Its memory records every message
// it observes in the world, addressed to it or not, so being mentioned never
// requires a catch-up.
type Agent struct {
	name         string
	instructions string
	model        string
	active       atomic.Bool
	memory       *memory.History
	calls        atomic.Int64
}

type AgentOption = opts.Option[Agent]

var (
	// WithInstructions sets the agent's system prompt.
	WithInstructions = opts.ForName[Agent, string]("instructions")
	// WithModel overrides the world's default model for this agent.
	WithModel = opts.ForName[Agent, string]("model")
)

// NewAgent creates an active agent. The name is how the agent is mentioned,
// so it must consist of letters, digits, hyphens and underscores to be
// addressable at all.
func NewAgent(name string, options ...AgentOption) *Agent {
	agent := &Agent{
		name:   name,
		memory: memory.New(name),
	}
	if err := opts.Apply(agent, options); err != nil {
		panic(err)
	}
	agent.active.Store(true)
	return agent
}

func (a *Agent) Name() string         { return a.name }
func (a *Agent) Instructions() string { return a.instructions }
func (a *Agent) Model() string        { return a.model }

// Memory returns the agent's conversation history.
func (a *Agent) Memory() *memory.History { return a.memory }

// Calls returns how many model invocations this agent has performed.
func (a *Agent) Calls() int64 { return a.calls.Load() }

func (a *Agent) Active() bool { return a.active.Load() }

// Deactivate removes the agent from routing without forgetting its memory.
// Mentions of an inactive agent are addressed but go undelivered.
func (a *Agent) Deactivate() { a.active.Store(false) }

func (a *Agent) Activate() { a.active.Store(true) }
