package broker

import (
	"context"

	"github.com/fogfish/opts"
	"github.com/yysun/agent-world-sub006/events"
)

type Broker interface {
	Topic(context.Context, events.Topic) Topic
}

type Topic interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook, ...opts.Option[SubscribeOptions]) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// SubscribeOptions configures a subscription.
type SubscribeOptions struct {
	session string
}

// WithSession scopes a subscription to a single chat session. Scoped
// subscribers never observe another session's events; events without a
// session id are rejected at this boundary and surfaced as diagnostics.
var WithSession = opts.ForName[SubscribeOptions, string]("session")

// admit decides whether an event may be delivered to a subscription scoped to
// the given session. The second return reports a scope violation: an event
// with no session id offered to a scoped subscriber.
func admit(scope string, event events.Event) (deliver, violation bool) {
	if scope == "" {
		return true, false
	}
	session := event.Session()
	if session == "" {
		return false, true
	}
	return session == scope, false
}
