package agentworld

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/yysun/agent-world-sub006/broker"
	"github.com/yysun/agent-world-sub006/events"
	"github.com/yysun/agent-world-sub006/messages"
	"github.com/yysun/agent-world-sub006/pkg/slogx"
	"github.com/yysun/agent-world-sub006/pkg/uuidx"
	"github.com/yysun/agent-world-sub006/provider"
	"github.com/yysun/agent-world-sub006/router"
	"github.com/yysun/agent-world-sub006/stream"
)

// World hosts a roster of agents and their chat sessions. Each world owns a
// broker, so events never cross world boundaries, and a turn limiter shared
// by every session in the world.
type World struct {
	id        string
	broker    broker.Broker
	provider  provider.Provider
	model     string
	streaming bool
	turnLimit int

	limiter  *router.Limiter
	sessions *haxmap.Map[string, *ChatSession]

	mu     sync.RWMutex
	agents *orderedmap.OrderedMap[string, *Agent]
}

type WorldOption = opts.Option[World]

var (
	// WithTurnLimit sets the world's turn budget. There is no default; world
	// creation fails without one.
	WithTurnLimit = opts.ForName[World, int]("turnLimit")
	// WithBroker swaps the default in-process broker for another backend.
	WithBroker = opts.ForName[World, broker.Broker]("broker")
	// WithProvider sets the model backend agents respond through. Required.
	WithProvider = opts.ForName[World, provider.Provider]("provider")
	// WithDefaultModel sets the model used by agents that don't name their own.
	WithDefaultModel = opts.ForName[World, string]("model")
	// Streaming controls whether agent replies stream incrementally. On by
	// default.
	Streaming = opts.ForName[World, bool]("streaming")
)

// NewWorld creates a world. A provider and a positive turn limit are
// required; everything else has defaults.
func NewWorld(id string, options ...WorldOption) (*World, error) {
	w := &World{
		id:        id,
		model:     "gpt-4o-mini",
		streaming: true,
		sessions:  haxmap.New[string, *ChatSession](),
		agents:    orderedmap.New[string, *Agent](),
	}
	if err := opts.Apply(w, options); err != nil {
		return nil, err
	}
	if w.turnLimit <= 0 {
		return nil, ErrTurnLimitRequired
	}
	if w.provider == nil {
		return nil, ErrProviderRequired
	}
	if w.broker == nil {
		w.broker = broker.Local()
	}
	w.limiter = router.NewLimiter(w.turnLimit)
	return w, nil
}

func (w *World) ID() string { return w.id }

// Limiter exposes the world's turn limiter.
func (w *World) Limiter() *router.Limiter { return w.limiter }

// AddAgent registers an agent under its name. Names are matched
// case-insensitively, so two agents cannot differ only in casing.
func (w *World) AddAgent(agent *Agent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := strings.ToLower(agent.Name())
	if _, ok := w.agents.Get(key); ok {
		return fmt.Errorf("%w: %s", ErrAgentExists, agent.Name())
	}
	w.agents.Set(key, agent)
	return nil
}

// Agent looks up an agent by name, case-insensitively.
func (w *World) Agent(name string) (*Agent, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	agent, ok := w.agents.Get(strings.ToLower(name))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return agent, nil
}

// RemoveAgent unregisters an agent, memory and all.
func (w *World) RemoveAgent(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, present := w.agents.Delete(strings.ToLower(name)); !present {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return nil
}

// ActiveNames returns the names of active agents in registration order.
func (w *World) ActiveNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var names []string
	for pair := w.agents.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Active() {
			names = append(names, pair.Value.Name())
		}
	}
	return names
}

func (w *World) IsKnown(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.agents.Get(strings.ToLower(name))
	return ok
}

func (w *World) IsActive(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	agent, ok := w.agents.Get(strings.ToLower(name))
	return ok && agent.Active()
}

// Subscribe attaches a hook to one of the world's topics. Use
// broker.WithSession to only receive one session's events.
func (w *World) Subscribe(ctx context.Context, topic events.Topic, hook events.Hook, options ...opts.Option[broker.SubscribeOptions]) (broker.Subscription, error) {
	return w.broker.Topic(ctx, topic).Subscribe(ctx, hook, options...)
}

// Post delivers a message into a session. The session must exist; posting
// into an unknown session is rejected and reported on the system topic.
func (w *World) Post(ctx context.Context, sessionID string, sender messages.Sender, content string) (messages.Message, error) {
	if _, ok := w.sessions.Get(sessionID); !ok {
		w.diagnose(ctx, events.Diagnostic{
			SessionID: sessionID,
			Scope:     events.ScopeSessionFilter,
			Detail:    fmt.Sprintf("message from %s rejected: unknown session %q", sender.Name, sessionID),
		})
		return messages.Message{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	msg := messages.New(sessionID, sender, content)
	// Humans and the system return the full turn budget every time they speak.
	if sender.IsHuman() || sender.IsSystem() {
		w.limiter.Reset()
	}
	w.deliver(ctx, msg)
	return msg, nil
}

// deliver publishes a message, records it into agent memories and dispatches
// it to the agents the router picks.
func (w *World) deliver(ctx context.Context, msg messages.Message) {
	conversation := w.broker.Topic(ctx, events.TopicConversation)
	if err := conversation.Publish(ctx, events.FromMessage(msg)); err != nil {
		slog.ErrorContext(ctx, "publishing message", slogx.Error(err), slogx.World(w.id))
	}

	// Every agent hears every message except its own, which it recorded when
	// the reply was persisted.
	w.mu.RLock()
	for pair := w.agents.Oldest(); pair != nil; pair = pair.Next() {
		agent := pair.Value
		if msg.Sender.IsAgent() && strings.EqualFold(agent.Name(), msg.Sender.Name) {
			continue
		}
		agent.Memory().Append(msg)
	}
	w.mu.RUnlock()

	decision := router.Route(msg, w)
	for _, name := range decision.Candidates {
		agent, err := w.Agent(name)
		if err != nil {
			continue
		}
		if !w.limiter.Acquire() {
			w.redirectToHuman(ctx, msg.SessionID, agent)
			continue
		}
		agent.calls.Add(1)
		go w.invoke(ctx, agent, msg)
	}
}

// redirectToHuman is published when the turn budget ran out before an agent
// could respond. It is injected directly, bypassing routing, so it can never
// trigger another agent.
func (w *World) redirectToHuman(ctx context.Context, sessionID string, agent *Agent) {
	notice := messages.New(sessionID, messages.System(), router.TurnLimitNotice(agent.Name(), w.limiter.Limit()))
	if err := w.broker.Topic(ctx, events.TopicConversation).Publish(ctx, events.FromMessage(notice)); err != nil {
		slog.ErrorContext(ctx, "publishing turn limit notice", slogx.Error(err), slogx.World(w.id))
	}
	w.diagnose(ctx, events.Diagnostic{
		SessionID: sessionID,
		Scope:     events.ScopeTurnLimit,
		Detail:    fmt.Sprintf("turn limit of %d reached, %s not invoked", w.limiter.Limit(), agent.Name()),
	})
}

// invoke runs one model completion for an agent and aggregates the stream
// into a reply. The session's context bounds the generation, so closing the
// session cancels in-flight replies.
func (w *World) invoke(ctx context.Context, agent *Agent, trigger messages.Message) {
	sess, ok := w.sessions.Get(trigger.SessionID)
	if !ok {
		return
	}
	ctx = sess.ctx

	messageID := uuidx.New()
	ch, err := w.provider.ChatCompletion(ctx, provider.CompletionParams{
		MessageID:    messageID,
		SessionID:    trigger.SessionID,
		Agent:        agent.Name(),
		Instructions: agent.Instructions(),
		Thread:       agent.Memory().Snapshot(),
		Stream:       w.streaming,
		Model:        w.modelFor(agent),
	})
	if err != nil {
		slog.ErrorContext(ctx, "starting completion", slogx.Error(err), slogx.Agent(agent.Name()), slogx.Session(trigger.SessionID))
		w.diagnose(ctx, events.Diagnostic{
			SessionID: trigger.SessionID,
			Scope:     events.ScopeStream,
			Detail:    fmt.Sprintf("completion for %s failed to start: %v", agent.Name(), err),
		})
		return
	}

	key := stream.Key{SessionID: trigger.SessionID, Agent: agent.Name(), MessageID: messageID}
	sink := &worldSink{world: w, agent: agent, trigger: trigger.Sender}
	agg := stream.New(w.broker.Topic(ctx, events.TopicStream), sink)
	if err := agg.Run(ctx, key, ch); err != nil {
		slog.WarnContext(ctx, "stream failed", slogx.Error(err), slogx.Agent(agent.Name()), slogx.Session(trigger.SessionID))
	}
}

func (w *World) modelFor(agent *Agent) string {
	if agent.Model() != "" {
		return agent.Model()
	}
	return w.model
}

func (w *World) diagnose(ctx context.Context, diag events.Diagnostic) {
	diag.Timestamp = strfmt.DateTime(time.Now())
	if err := w.broker.Topic(ctx, events.TopicSystem).Publish(ctx, diag); err != nil {
		slog.WarnContext(ctx, "publishing diagnostic", slogx.Error(err), slogx.World(w.id))
	}
}

// worldSink persists finished replies and feeds them back into the world so
// mentions in an agent reply route onward.
type worldSink struct {
	world   *World
	agent   *Agent
	trigger messages.Sender
}

func (s *worldSink) Completed(ctx context.Context, key stream.Key, raw string, _ gjson.Result) (string, error) {
	final, passed := router.HandlePass(raw)
	if passed {
		// The agent handed the conversation back; the budget returns with it.
		s.world.limiter.Reset()
	} else {
		final = stream.FinalizeReply(s.agent.Name(), s.trigger, raw)
	}

	reply := messages.Message{
		ID:        key.MessageID,
		SessionID: key.SessionID,
		Sender:    messages.Agent(s.agent.Name()),
		Content:   final,
		Timestamp: strfmt.DateTime(time.Now()),
	}
	s.agent.Memory().Append(reply)
	s.world.deliver(ctx, reply)
	return final, nil
}

func (s *worldSink) Failed(ctx context.Context, key stream.Key, err error) {
	slog.WarnContext(ctx, "reply discarded", slogx.Error(err), slogx.Agent(key.Agent), slogx.Session(key.SessionID))
}
