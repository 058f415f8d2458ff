package agentworld

import (
	"context"
	"fmt"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	"github.com/yysun/agent-world-sub006/broker"
	"github.com/yysun/agent-world-sub006/events"
)

// Manager owns a set of worlds keyed by id. Worlds never share brokers, so
// nothing published in one is observable from another.
type Manager struct {
	worlds *haxmap.Map[string, *World]
}

func NewManager() *Manager {
	return &Manager{worlds: haxmap.New[string, *World]()}
}

// CreateWorld creates and registers a world.
func (m *Manager) CreateWorld(id string, options ...WorldOption) (*World, error) {
	if _, ok := m.worlds.Get(id); ok {
		return nil, fmt.Errorf("%w: %s", ErrWorldExists, id)
	}
	world, err := NewWorld(id, options...)
	if err != nil {
		return nil, err
	}
	if _, loaded := m.worlds.GetOrSet(id, world); loaded {
		return nil, fmt.Errorf("%w: %s", ErrWorldExists, id)
	}
	return world, nil
}

// World looks up a world by id.
func (m *Manager) World(id string) (*World, error) {
	world, ok := m.worlds.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorldNotFound, id)
	}
	return world, nil
}

// DeleteWorld removes a world. Its sessions are closed first.
func (m *Manager) DeleteWorld(id string) error {
	world, ok := m.worlds.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorldNotFound, id)
	}
	world.sessions.ForEach(func(_ string, sess *ChatSession) bool {
		sess.Close()
		return true
	})
	m.worlds.Del(id)
	return nil
}

// Subscribe attaches a hook to a topic of a named world.
func (m *Manager) Subscribe(ctx context.Context, worldID string, topic events.Topic, hook events.Hook, options ...opts.Option[broker.SubscribeOptions]) (broker.Subscription, error) {
	world, err := m.World(worldID)
	if err != nil {
		return nil, err
	}
	return world.Subscribe(ctx, topic, hook, options...)
}
