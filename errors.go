package agentworld

import "errors"

var (
	ErrWorldExists       = errors.New("world already exists")
	ErrWorldNotFound     = errors.New("world not found")
	ErrAgentExists       = errors.New("agent already exists")
	ErrAgentNotFound     = errors.New("agent not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrTurnLimitRequired = errors.New("a turn limit is required to create a world")
	ErrProviderRequired  = errors.New("a provider is required to create a world")
)
