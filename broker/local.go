package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/yysun/agent-world-sub006/events"
	"github.com/yysun/agent-world-sub006/pkg/uuidx"
)

const defaultSlowSubscriberTimeout = 100 * time.Millisecond

type localBroker struct {
	topics                *haxmap.Map[string, *localTopic]
	slowSubscriberTimeout time.Duration
}

// Local returns an in-process broker. One instance backs exactly one world.
func Local() Broker {
	return &localBroker{
		topics:                haxmap.New[string, *localTopic](),
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
	}
}

// WithSlowSubscriberTimeout configures how long a publish waits on a full
// subscriber channel before dropping that subscriber.
func (b *localBroker) WithSlowSubscriberTimeout(timeout time.Duration) *localBroker {
	b.slowSubscriberTimeout = timeout
	return b
}

func (b *localBroker) Topic(ctx context.Context, name events.Topic) Topic {
	topic, _ := b.topics.GetOrCompute(string(name), func() *localTopic {
		return &localTopic{
			name:                  name,
			broker:                b,
			subscriptions:         haxmap.New[string, *localSubscription](),
			slowSubscriberTimeout: b.slowSubscriberTimeout,
		}
	})
	return topic
}

// diagnose surfaces a bus-level problem on the system topic. Problems that
// originate on the system topic itself are only logged, so a misbehaving
// system subscriber cannot feed itself forever.
func (b *localBroker) diagnose(ctx context.Context, origin events.Topic, diag events.Diagnostic) {
	if origin == events.TopicSystem {
		slog.WarnContext(ctx, "bus diagnostic on system topic", slog.String("scope", diag.Scope), slog.String("detail", diag.Detail))
		return
	}
	diag.Timestamp = strfmt.DateTime(time.Now())
	_ = b.Topic(ctx, events.TopicSystem).Publish(ctx, diag)
}

type localTopic struct {
	name                  events.Topic
	broker                *localBroker
	subscriptions         *haxmap.Map[string, *localSubscription]
	slowSubscriberTimeout time.Duration
}

func (t *localTopic) Publish(ctx context.Context, event events.Event) error {
	t.subscriptions.ForEach(func(id string, sub *localSubscription) bool {
		if sub == nil {
			return true
		}

		// Reap subscriptions whose context ended before admission.
		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		default:
		}

		deliver, violation := admit(sub.session, event)
		if violation {
			t.broker.diagnose(ctx, t.name, events.Diagnostic{
				Scope:  events.ScopeSessionFilter,
				Detail: fmt.Sprintf("event without session id rejected for session-scoped subscriber %s on topic %s", sub.id, t.name),
			})
			return true
		}
		if !deliver {
			return true
		}

		// Delivery waits at most slowSubscriberTimeout on a full channel.
		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
		case sub.channel <- event:
		case <-time.After(t.slowSubscriberTimeout):
			// Still full, drop the subscriber rather than stall the topic.
			sub.Unsubscribe()
			t.broker.diagnose(ctx, t.name, events.Diagnostic{
				SessionID: sub.session,
				Scope:     events.ScopeSubscriber,
				Detail:    fmt.Sprintf("slow subscriber %s dropped from topic %s", sub.id, t.name),
			})
		}
		return true
	})
	return nil
}

func (t *localTopic) Subscribe(ctx context.Context, hook events.Hook, options ...opts.Option[SubscribeOptions]) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	var so SubscribeOptions
	if err := opts.Apply(&so, options); err != nil {
		return nil, err
	}
	return t.newSubscription(ctx, hook, so.session), nil
}

func (t *localTopic) newSubscription(ctx context.Context, hook events.Hook, session string) *localSubscription {
	id := uuidx.NewString()
	sub := &localSubscription{
		id:        id,
		ctx:       ctx,
		session:   session,
		channel:   make(chan events.Event, 50),
		closeOnce: sync.Once{},
		onClose:   func() { t.subscriptions.Del(id) },
		hook:      hook,
	}
	t.subscriptions.Set(id, sub)
	go sub.forwardToHook(t)
	return sub
}

type localSubscription struct {
	id        string
	ctx       context.Context
	session   string
	channel   chan events.Event
	closeOnce sync.Once
	onClose   func()
	hook      events.Hook
}

func (s *localSubscription) ID() string {
	return s.id
}

func (s *localSubscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.channel)
	})
}

func (s *localSubscription) forwardToHook(t *localTopic) {
	for {
		select {
		case event, ok := <-s.channel:
			if !ok {
				return
			}
			dispatch(s.ctx, s.hook, event, func(diag events.Diagnostic) {
				diag.SessionID = s.session
				t.broker.diagnose(s.ctx, t.name, diag)
			})
		case <-s.ctx.Done():
			return
		}
	}
}

// dispatch delivers one event to one hook, isolating panics so a failing
// subscriber callback never interrupts delivery to the others.
func dispatch(ctx context.Context, hook events.Hook, event events.Event, diagnose func(events.Diagnostic)) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "subscriber hook panicked", slog.Any("panic", r))
			if diagnose != nil {
				diagnose(events.Diagnostic{
					Scope:  events.ScopeSubscriber,
					Detail: fmt.Sprintf("subscriber hook panicked: %v", r),
				})
			}
		}
	}()
	events.Dispatch(ctx, hook, event)
}
