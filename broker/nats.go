package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	"github.com/nats-io/nats.go"
	"github.com/yysun/agent-world-sub006/events"
	"github.com/yysun/agent-world-sub006/pkg/slogx"
	"github.com/yysun/agent-world-sub006/pkg/uuidx"
)

type natsBroker struct {
	client                *nats.Conn
	namespace             string
	topics                *haxmap.Map[string, *natsTopic]
	slowSubscriberTimeout time.Duration
}

// NATS returns a broker backed by a NATS connection. The namespace keys the
// world the broker belongs to: subjects are "<namespace>.<topic>", so two
// worlds sharing one connection never observe each other's events.
func NATS(client *nats.Conn, namespace string) Broker {
	return &natsBroker{
		client:                client,
		namespace:             namespace,
		topics:                haxmap.New[string, *natsTopic](),
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
	}
}

// WithSlowSubscriberTimeout configures how long a message handler waits on a
// full subscriber channel before dropping that subscriber.
func (b *natsBroker) WithSlowSubscriberTimeout(timeout time.Duration) *natsBroker {
	b.slowSubscriberTimeout = timeout
	return b
}

func (b *natsBroker) Topic(ctx context.Context, name events.Topic) Topic {
	topic, _ := b.topics.GetOrCompute(string(name), func() *natsTopic {
		return &natsTopic{
			name:    name,
			subject: fmt.Sprintf("%s.%s", b.namespace, name),
			broker:  b,
		}
	})
	return topic
}

func (b *natsBroker) diagnose(ctx context.Context, origin events.Topic, diag events.Diagnostic) {
	if origin == events.TopicSystem {
		slog.WarnContext(ctx, "bus diagnostic on system topic", slog.String("scope", diag.Scope), slog.String("detail", diag.Detail))
		return
	}
	if err := b.Topic(ctx, events.TopicSystem).Publish(ctx, diag); err != nil {
		slog.ErrorContext(ctx, "failed to publish diagnostic", slogx.Error(err))
	}
}

type natsTopic struct {
	name    events.Topic
	subject string
	broker  *natsBroker
}

func (t *natsTopic) Publish(ctx context.Context, event events.Event) error {
	data, err := events.ToJSON(event)
	if err != nil {
		return err
	}
	return t.broker.client.Publish(t.subject, data)
}

func (t *natsTopic) Subscribe(ctx context.Context, hook events.Hook, options ...opts.Option[SubscribeOptions]) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	var so SubscribeOptions
	if err := opts.Apply(&so, options); err != nil {
		return nil, err
	}

	id := uuidx.NewString()
	ch := make(chan events.Event, 50)
	nsub, err := t.broker.client.Subscribe(t.subject, func(msg *nats.Msg) {
		event, err := events.FromJSON(msg.Data)
		if err != nil {
			slog.Error("failed to unmarshal event", slogx.Error(err))
			return
		}
		// A full channel must not stall the handler forever. Unsubscribing
		// fires the closed handler, which closes ch and stops the forwarder.
		select {
		case ch <- event:
		case <-time.After(t.broker.slowSubscriberTimeout):
			if err := msg.Sub.Unsubscribe(); err != nil {
				slog.Error("failed to unsubscribe slow subscriber", slogx.Error(err), slog.String("subscription", id))
			}
			t.broker.diagnose(ctx, t.name, events.Diagnostic{
				SessionID: so.session,
				Scope:     events.ScopeSubscriber,
				Detail:    fmt.Sprintf("slow subscriber %s dropped from subject %s", id, t.subject),
			})
		}
	})
	if err != nil {
		return nil, err
	}
	nsub.SetClosedHandler(func(_ string) { close(ch) })
	go func() {
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				deliver, violation := admit(so.session, event)
				if violation {
					t.broker.diagnose(ctx, t.name, events.Diagnostic{
						Scope:  events.ScopeSessionFilter,
						Detail: fmt.Sprintf("event without session id rejected for session-scoped subscriber %s on subject %s", id, t.subject),
					})
					continue
				}
				if !deliver {
					continue
				}
				dispatch(ctx, hook, event, func(diag events.Diagnostic) {
					diag.SessionID = so.session
					t.broker.diagnose(ctx, t.name, diag)
				})
			case <-ctx.Done():
				return
			}
		}
	}()

	return &natsSubscription{id: id, sub: nsub}, nil
}

type natsSubscription struct {
	id  string
	sub *nats.Subscription
}

func (n *natsSubscription) ID() string {
	return n.id
}

func (n *natsSubscription) Unsubscribe() {
	if err := n.sub.Unsubscribe(); err != nil {
		slog.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", n.id))
	}
}
