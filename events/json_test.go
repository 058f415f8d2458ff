package events

import (
	"errors"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/yysun/agent-world-sub006/messages"
	"github.com/yysun/agent-world-sub006/pkg/uuidx"
)

func TestEventWireFormat(t *testing.T) {
	now := strfmt.DateTime(time.Now().Truncate(time.Millisecond))

	t.Run("message carries discriminator and sender classification", func(t *testing.T) {
		in := Message{
			MessageID: uuidx.New(),
			SessionID: "s1",
			Sender:    messages.Human("sam"),
			Content:   "hello @alice",
			Timestamp: now,
		}
		data, err := ToJSON(in)
		require.NoError(t, err)
		assert.Equal(t, "message", gjson.GetBytes(data, "type").String())
		assert.Equal(t, "human", gjson.GetBytes(data, "sender.kind").String())

		out, err := FromJSON(data)
		require.NoError(t, err)
		msg, ok := out.(Message)
		require.True(t, ok)
		assert.Equal(t, in.MessageID, msg.MessageID)
		assert.Equal(t, in.SessionID, msg.SessionID)
		assert.Equal(t, in.Sender, msg.Sender)
		assert.Equal(t, in.Content, msg.Content)
	})

	t.Run("stream chunk keeps delta verbatim", func(t *testing.T) {
		in := StreamChunk{
			MessageID: uuidx.New(),
			SessionID: "s1",
			Agent:     "alice",
			Delta:     "  Hel\nlo ",
			Timestamp: now,
		}
		data, err := ToJSON(in)
		require.NoError(t, err)

		out, err := FromJSON(data)
		require.NoError(t, err)
		chunk, ok := out.(StreamChunk)
		require.True(t, ok)
		assert.Equal(t, in.Delta, chunk.Delta)
		assert.Equal(t, in.Agent, chunk.Agent)
	})

	t.Run("stream end passes provider usage through raw", func(t *testing.T) {
		in := StreamEnd{
			MessageID: uuidx.New(),
			SessionID: "s1",
			Agent:     "alice",
			Content:   "@sam Hello",
			Usage:     gjson.Parse(`{"prompt_tokens":12,"completion_tokens":3}`),
			Timestamp: now,
		}
		data, err := ToJSON(in)
		require.NoError(t, err)
		assert.Equal(t, int64(12), gjson.GetBytes(data, "usage.prompt_tokens").Int())

		out, err := FromJSON(data)
		require.NoError(t, err)
		end, ok := out.(StreamEnd)
		require.True(t, ok)
		assert.Equal(t, in.Content, end.Content)
		assert.Equal(t, int64(3), end.Usage.Get("completion_tokens").Int())
	})

	t.Run("stream error survives the wire as a plain error", func(t *testing.T) {
		in := StreamError{
			MessageID: uuidx.New(),
			SessionID: "s1",
			Agent:     "alice",
			Err:       errors.New("model unavailable"),
			Timestamp: now,
		}
		data, err := ToJSON(in)
		require.NoError(t, err)

		out, err := FromJSON(data)
		require.NoError(t, err)
		serr, ok := out.(StreamError)
		require.True(t, ok)
		assert.EqualError(t, serr.Err, "model unavailable")
	})

	t.Run("stream error with nil err round-trips", func(t *testing.T) {
		in := StreamError{
			MessageID: uuidx.New(),
			SessionID: "s1",
			Agent:     "alice",
			Timestamp: now,
		}
		data, err := ToJSON(in)
		require.NoError(t, err)
		assert.True(t, gjson.GetBytes(data, "error").Exists())

		out, err := FromJSON(data)
		require.NoError(t, err)
		serr, ok := out.(StreamError)
		require.True(t, ok)
		assert.Nil(t, serr.Err)
	})

	t.Run("diagnostic without session id", func(t *testing.T) {
		in := Diagnostic{Scope: ScopeSubscriber, Detail: "hook panicked", Timestamp: now}
		data, err := ToJSON(in)
		require.NoError(t, err)
		assert.False(t, gjson.GetBytes(data, "session_id").Exists())

		out, err := FromJSON(data)
		require.NoError(t, err)
		diag, ok := out.(Diagnostic)
		require.True(t, ok)
		assert.Equal(t, ScopeSubscriber, diag.Scope)
		assert.Empty(t, diag.Session())
	})

	t.Run("rejects unknown discriminator", func(t *testing.T) {
		_, err := FromJSON([]byte(`{"type":"banana"}`))
		assert.Error(t, err)
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		_, err := FromJSON([]byte(`{"type":`))
		assert.Error(t, err)
	})
}
