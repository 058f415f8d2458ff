package agentworld

import (
	"context"
	"fmt"

	"github.com/fogfish/opts"
	"github.com/yysun/agent-world-sub006/broker"
	"github.com/yysun/agent-world-sub006/events"
	"github.com/yysun/agent-world-sub006/messages"
	"github.com/yysun/agent-world-sub006/pkg/uuidx"
)

// ChatSession is one conversation thread inside a world. Sessions share the
// world's agents and turn budget but subscribers scoped to a session only
// ever see that session's events.
type ChatSession struct {
	id     string
	world  *World
	ctx    context.Context
	cancel context.CancelFunc
}

// CreateSession opens a new chat session. The given context bounds the
// session's lifetime; in-flight replies stop when it ends.
func (w *World) CreateSession(ctx context.Context) *ChatSession {
	sctx, cancel := context.WithCancel(ctx)
	sess := &ChatSession{
		id:     uuidx.NewString(),
		world:  w,
		ctx:    sctx,
		cancel: cancel,
	}
	w.sessions.Set(sess.id, sess)
	return sess
}

// Session looks up an open session by id.
func (w *World) Session(id string) (*ChatSession, error) {
	sess, ok := w.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

func (s *ChatSession) ID() string { return s.id }

// Post delivers a message into this session.
func (s *ChatSession) Post(ctx context.Context, sender messages.Sender, content string) (messages.Message, error) {
	return s.world.Post(ctx, s.id, sender, content)
}

// Subscribe attaches a hook scoped to this session. Delivery stops when the
// session closes.
func (s *ChatSession) Subscribe(topic events.Topic, hook events.Hook, options ...opts.Option[broker.SubscribeOptions]) (broker.Subscription, error) {
	options = append(options, broker.WithSession(s.id))
	return s.world.broker.Topic(s.ctx, topic).Subscribe(s.ctx, hook, options...)
}

// Close ends the session. Later posts into it are rejected and generation
// still running for it is cancelled.
func (s *ChatSession) Close() {
	s.world.sessions.Del(s.id)
	s.cancel()
}
