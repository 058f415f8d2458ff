package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/yysun/agent-world-sub006/broker"
	"github.com/yysun/agent-world-sub006/events"
	"github.com/yysun/agent-world-sub006/messages"
	"github.com/yysun/agent-world-sub006/pkg/uuidx"
	"github.com/yysun/agent-world-sub006/provider"
)

type recordingSink struct {
	mu        sync.Mutex
	finalize  func(key Key, raw string) string
	completed []string
	failed    []error
	usage     []gjson.Result
}

func (s *recordingSink) Completed(_ context.Context, key Key, raw string, usage gjson.Result) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	final := raw
	if s.finalize != nil {
		final = s.finalize(key, raw)
	}
	s.completed = append(s.completed, final)
	s.usage = append(s.usage, usage)
	return final, nil
}

func (s *recordingSink) Failed(_ context.Context, _ Key, err error) {
	s.mu.Lock()
	s.failed = append(s.failed, err)
	s.mu.Unlock()
}

type recordingStreamHook struct {
	events.NoopHook
	mu     sync.Mutex
	wg     *sync.WaitGroup
	starts []events.StreamStart
	chunks []events.StreamChunk
	ends   []events.StreamEnd
	errs   []events.StreamError
}

func (r *recordingStreamHook) done() {
	if r.wg != nil {
		r.wg.Done()
	}
}

func (r *recordingStreamHook) OnStreamStart(_ context.Context, e events.StreamStart) {
	r.mu.Lock()
	r.starts = append(r.starts, e)
	r.mu.Unlock()
	r.done()
}

func (r *recordingStreamHook) OnStreamChunk(_ context.Context, e events.StreamChunk) {
	r.mu.Lock()
	r.chunks = append(r.chunks, e)
	r.mu.Unlock()
	r.done()
}

func (r *recordingStreamHook) OnStreamEnd(_ context.Context, e events.StreamEnd) {
	r.mu.Lock()
	r.ends = append(r.ends, e)
	r.mu.Unlock()
	r.done()
}

func (r *recordingStreamHook) OnStreamError(_ context.Context, e events.StreamError) {
	r.mu.Lock()
	r.errs = append(r.errs, e)
	r.mu.Unlock()
	r.done()
}

func waitFor(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for stream events")
	}
}

func feed(evs ...provider.StreamEvent) <-chan provider.StreamEvent {
	ch := make(chan provider.StreamEvent, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestAggregatorRun(t *testing.T) {
	t.Run("aggregates chunks into the persisted reply", func(t *testing.T) {
		ctx := context.Background()
		topic := broker.Local().Topic(ctx, events.TopicStream)

		var wg sync.WaitGroup
		rec := &recordingStreamHook{wg: &wg}
		sub, err := topic.Subscribe(ctx, rec)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		sink := &recordingSink{finalize: func(_ Key, raw string) string { return "@sam " + raw }}
		agg := New(topic, sink)

		key := Key{SessionID: "s1", Agent: "ava", MessageID: uuidx.New()}
		wg.Add(4) // start, two chunks, end
		err = agg.Run(ctx, key, feed(
			provider.Start{MessageID: key.MessageID, SessionID: key.SessionID},
			provider.Chunk{MessageID: key.MessageID, SessionID: key.SessionID, Delta: "Hel"},
			provider.Chunk{MessageID: key.MessageID, SessionID: key.SessionID, Delta: "lo"},
			provider.Response{MessageID: key.MessageID, SessionID: key.SessionID, Content: "Hello"},
		))
		require.NoError(t, err)
		waitFor(t, &wg)

		rec.mu.Lock()
		defer rec.mu.Unlock()
		require.Len(t, rec.starts, 1)
		assert.Equal(t, "ava", rec.starts[0].Agent)
		require.Len(t, rec.chunks, 2)
		assert.Equal(t, "Hel", rec.chunks[0].Delta)
		assert.Equal(t, "lo", rec.chunks[1].Delta)
		require.Len(t, rec.ends, 1)

		// the published text matches the persisted text byte for byte
		require.Len(t, sink.completed, 1)
		assert.Equal(t, sink.completed[0], rec.ends[0].Content)
		assert.Equal(t, "@sam Hello", rec.ends[0].Content)
		assert.Empty(t, rec.errs)
		assert.Zero(t, agg.Live())
	})

	t.Run("falls back to accumulated chunks when the response carries no text", func(t *testing.T) {
		ctx := context.Background()
		topic := broker.Local().Topic(ctx, events.TopicStream)
		sink := &recordingSink{}
		agg := New(topic, sink)

		key := Key{SessionID: "s1", Agent: "ava", MessageID: uuidx.New()}
		err := agg.Run(ctx, key, feed(
			provider.Start{},
			provider.Chunk{Delta: "Hel"},
			provider.Chunk{Delta: "lo"},
			provider.Response{},
		))
		require.NoError(t, err)
		require.Len(t, sink.completed, 1)
		assert.Equal(t, "Hello", sink.completed[0])
	})

	t.Run("session scoped subscribers never see another session's stream", func(t *testing.T) {
		ctx := context.Background()
		topic := broker.Local().Topic(ctx, events.TopicStream)

		var wg sync.WaitGroup
		mine := &recordingStreamHook{wg: &wg}
		other := &recordingStreamHook{}

		subMine, err := topic.Subscribe(ctx, mine, broker.WithSession("s1"))
		require.NoError(t, err)
		defer subMine.Unsubscribe()
		subOther, err := topic.Subscribe(ctx, other, broker.WithSession("s2"))
		require.NoError(t, err)
		defer subOther.Unsubscribe()

		agg := New(topic, &recordingSink{})
		key := Key{SessionID: "s1", Agent: "ava", MessageID: uuidx.New()}
		wg.Add(3) // start, chunk, end
		err = agg.Run(ctx, key, feed(
			provider.Start{},
			provider.Chunk{Delta: "Hello"},
			provider.Response{Content: "Hello"},
		))
		require.NoError(t, err)
		waitFor(t, &wg)

		other.mu.Lock()
		assert.Empty(t, other.starts)
		assert.Empty(t, other.chunks)
		assert.Empty(t, other.ends)
		other.mu.Unlock()
	})

	t.Run("provider error persists nothing", func(t *testing.T) {
		ctx := context.Background()
		topic := broker.Local().Topic(ctx, events.TopicStream)

		var wg sync.WaitGroup
		rec := &recordingStreamHook{wg: &wg}
		sub, err := topic.Subscribe(ctx, rec)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		sink := &recordingSink{}
		agg := New(topic, sink)

		boom := errors.New("model unavailable")
		key := Key{SessionID: "s1", Agent: "ava", MessageID: uuidx.New()}
		wg.Add(3) // start, chunk, error
		err = agg.Run(ctx, key, feed(
			provider.Start{},
			provider.Chunk{Delta: "Hel"},
			provider.Error{Err: boom},
		))
		require.ErrorIs(t, err, boom)
		waitFor(t, &wg)

		assert.Empty(t, sink.completed)
		require.Len(t, sink.failed, 1)
		rec.mu.Lock()
		require.Len(t, rec.errs, 1)
		assert.Empty(t, rec.ends)
		rec.mu.Unlock()
		assert.Zero(t, agg.Live())
	})

	t.Run("channel closing early is an error", func(t *testing.T) {
		ctx := context.Background()
		topic := broker.Local().Topic(ctx, events.TopicStream)
		sink := &recordingSink{}
		agg := New(topic, sink)

		key := Key{SessionID: "s1", Agent: "ava", MessageID: uuidx.New()}
		err := agg.Run(ctx, key, feed(
			provider.Start{},
			provider.Chunk{Delta: "Hel"},
		))
		require.Error(t, err)
		assert.Empty(t, sink.completed)
		require.Len(t, sink.failed, 1)
	})

	t.Run("usage passes through to sink and event", func(t *testing.T) {
		ctx := context.Background()
		topic := broker.Local().Topic(ctx, events.TopicStream)

		var wg sync.WaitGroup
		rec := &recordingStreamHook{wg: &wg}
		sub, err := topic.Subscribe(ctx, rec)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		sink := &recordingSink{}
		agg := New(topic, sink)

		usage := gjson.Parse(`{"prompt_tokens":12,"completion_tokens":3}`)
		key := Key{SessionID: "s1", Agent: "ava", MessageID: uuidx.New()}
		wg.Add(2) // start, end
		err = agg.Run(ctx, key, feed(
			provider.Start{},
			provider.Response{Content: "Hi", Usage: usage},
		))
		require.NoError(t, err)
		waitFor(t, &wg)

		require.Len(t, sink.usage, 1)
		assert.Equal(t, int64(12), sink.usage[0].Get("prompt_tokens").Int())
		rec.mu.Lock()
		require.Len(t, rec.ends, 1)
		assert.Equal(t, int64(3), rec.ends[0].Usage.Get("completion_tokens").Int())
		rec.mu.Unlock()
	})
}

func TestFinalizeReply(t *testing.T) {
	sam := messages.Human("sam")

	t.Run("prepends the trigger mention when missing", func(t *testing.T) {
		assert.Equal(t, "@sam hello", FinalizeReply("ava", sam, "hello"))
	})

	t.Run("keeps an existing trigger mention", func(t *testing.T) {
		assert.Equal(t, "@sam hello", FinalizeReply("ava", sam, "@sam hello"))
	})

	t.Run("strips leading self mentions first", func(t *testing.T) {
		assert.Equal(t, "@sam hello", FinalizeReply("ava", sam, "@ava @sam hello"))
		assert.Equal(t, "@sam hello", FinalizeReply("ava", sam, "@ava hello"))
	})

	t.Run("is idempotent", func(t *testing.T) {
		once := FinalizeReply("ava", sam, "hello")
		assert.Equal(t, once, FinalizeReply("ava", sam, once))
	})

	t.Run("system trigger gets no mention", func(t *testing.T) {
		assert.Equal(t, "hello", FinalizeReply("ava", messages.System(), "hello"))
	})

	t.Run("mentions aimed at other agents survive", func(t *testing.T) {
		assert.Equal(t, "@bud your turn", FinalizeReply("ava", messages.Agent("bud"), "@bud your turn"))
	})

	t.Run("a reply opening with another mention is not re-addressed", func(t *testing.T) {
		assert.Equal(t, "@bud take it from here", FinalizeReply("ava", sam, "@bud take it from here"))
		assert.Equal(t, "@bud take it from here", FinalizeReply("ava", sam, "@ava @bud take it from here"))
	})
}
