package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/yysun/agent-world-sub006/broker"
	"github.com/yysun/agent-world-sub006/events"
	"github.com/yysun/agent-world-sub006/mention"
	"github.com/yysun/agent-world-sub006/messages"
	"github.com/yysun/agent-world-sub006/provider"
)

// Key identifies one in-flight reply stream. Concurrent sessions and agents
// never collide because all three parts participate.
type Key struct {
	SessionID string
	Agent     string
	MessageID uuid.UUID
}

func (k Key) String() string {
	return k.SessionID + "/" + k.Agent + "/" + k.MessageID.String()
}

// Sink persists finished replies. Completed returns the exact text that was
// stored, which the aggregator then publishes so subscribers and storage can
// never disagree. Failed is informational; a failed stream persists nothing.
type Sink interface {
	Completed(ctx context.Context, key Key, raw string, usage gjson.Result) (string, error)
	Failed(ctx context.Context, key Key, err error)
}

type status int

const (
	statusPending status = iota
	statusActive
	statusComplete
	statusError
)

type state struct {
	status  status
	content strings.Builder
}

// Aggregator tracks every live stream in a world and drives each one from
// provider events to a terminal outcome.
type Aggregator struct {
	topic broker.Topic
	sink  Sink
	live  *haxmap.Map[string, *state]
}

func New(topic broker.Topic, sink Sink) *Aggregator {
	return &Aggregator{
		topic: topic,
		sink:  sink,
		live:  haxmap.New[string, *state](),
	}
}

// Live reports how many streams are currently in flight.
func (a *Aggregator) Live() int {
	return int(a.live.Len())
}

// Run consumes one provider stream to completion. It returns the stream
// error, if any, after the terminal event has been published. Closing the
// event channel without a terminal event counts as an error.
func (a *Aggregator) Run(ctx context.Context, key Key, in <-chan provider.StreamEvent) error {
	st := &state{}
	a.live.Set(key.String(), st)
	defer a.live.Del(key.String())

	started := false
	ensureStarted := func() {
		if started {
			return
		}
		started = true
		_ = a.topic.Publish(ctx, events.StreamStart{
			MessageID: key.MessageID,
			SessionID: key.SessionID,
			Agent:     key.Agent,
			Timestamp: strfmt.DateTime(time.Now()),
		})
	}

	for {
		select {
		case <-ctx.Done():
			return a.fail(ctx, key, st, ctx.Err())
		case event, ok := <-in:
			if !ok {
				if st.status == statusComplete || st.status == statusError {
					return nil
				}
				return a.fail(ctx, key, st, errors.New("stream closed before completion"))
			}

			switch ev := event.(type) {
			case provider.Start:
				st.status = statusActive
				ensureStarted()

			case provider.Chunk:
				st.status = statusActive
				ensureStarted()
				st.content.WriteString(ev.Delta)
				_ = a.topic.Publish(ctx, events.StreamChunk{
					MessageID: key.MessageID,
					SessionID: key.SessionID,
					Agent:     key.Agent,
					Delta:     ev.Delta,
					Timestamp: strfmt.DateTime(time.Now()),
				})

			case provider.Response:
				ensureStarted()
				st.status = statusComplete
				raw := ev.Content
				if raw == "" {
					raw = st.content.String()
				}
				final, err := a.sink.Completed(ctx, key, raw, ev.Usage)
				if err != nil {
					st.status = statusError
					return a.fail(ctx, key, st, fmt.Errorf("persisting reply: %w", err))
				}
				_ = a.topic.Publish(ctx, events.StreamEnd{
					MessageID: key.MessageID,
					SessionID: key.SessionID,
					Agent:     key.Agent,
					Content:   final,
					Usage:     ev.Usage,
					Timestamp: strfmt.DateTime(time.Now()),
				})

			case provider.Error:
				st.status = statusError
				return a.fail(ctx, key, st, ev.Err)
			}
		}
	}
}

// fail publishes the error outcome. The sink hears about it but must not
// persist anything.
func (a *Aggregator) fail(ctx context.Context, key Key, st *state, err error) error {
	st.status = statusError
	a.sink.Failed(ctx, key, err)
	_ = a.topic.Publish(ctx, events.StreamError{
		MessageID: key.MessageID,
		SessionID: key.SessionID,
		Agent:     key.Agent,
		Err:       err,
		Timestamp: strfmt.DateTime(time.Now()),
	})
	return err
}

// FinalizeReply normalizes an agent reply before it is persisted. Leading
// self mentions are dropped first. A reply that then opens with any mention
// keeps its addressing, so agents can pass the conversation to each other;
// everything else is addressed back at whoever triggered the reply, unless
// that was the system.
func FinalizeReply(agent string, trigger messages.Sender, raw string) string {
	out := mention.StripLeading(raw, agent)
	if trigger.IsSystem() || trigger.Name == "" {
		return out
	}
	if _, ok := mention.Leading(out); ok {
		return out
	}
	return "@" + trigger.Name + " " + out
}
