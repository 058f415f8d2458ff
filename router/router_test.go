package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yysun/agent-world-sub006/messages"
)

type fakeRoster struct {
	active   []string
	inactive []string
}

func (r fakeRoster) ActiveNames() []string { return r.active }

func (r fakeRoster) IsKnown(name string) bool {
	return r.IsActive(name) || r.contains(r.inactive, name)
}

func (r fakeRoster) IsActive(name string) bool { return r.contains(r.active, name) }

func (fakeRoster) contains(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

func TestRoute(t *testing.T) {
	roster := fakeRoster{active: []string{"ava", "bud", "cleo"}}

	t.Run("human message without mention goes to every active agent", func(t *testing.T) {
		d := Route(messages.New("s1", messages.Human("sam"), "hello everyone"), roster)
		assert.False(t, d.Addressed)
		assert.Equal(t, []string{"ava", "bud", "cleo"}, d.Candidates)
	})

	t.Run("human message with mention goes to that agent only", func(t *testing.T) {
		d := Route(messages.New("s1", messages.Human("sam"), "@bud how are you"), roster)
		assert.True(t, d.Addressed)
		assert.Equal(t, []string{"bud"}, d.Candidates)
	})

	t.Run("only the first valid mention routes", func(t *testing.T) {
		d := Route(messages.New("s1", messages.Human("sam"), "@ava ask @bud about it\n\n@cleo stay out"), roster)
		assert.Equal(t, []string{"ava"}, d.Candidates)
	})

	t.Run("mid paragraph mentions do not address", func(t *testing.T) {
		d := Route(messages.New("s1", messages.Human("sam"), "I think @ava should answer"), roster)
		assert.False(t, d.Addressed)
		assert.Equal(t, []string{"ava", "bud", "cleo"}, d.Candidates)
	})

	t.Run("unknown mention is skipped in favor of the next valid one", func(t *testing.T) {
		d := Route(messages.New("s1", messages.Human("sam"), "@nobody hi\n\n@cleo your turn"), roster)
		assert.True(t, d.Addressed)
		assert.Equal(t, []string{"cleo"}, d.Candidates)
	})

	t.Run("mention matching is case-insensitive", func(t *testing.T) {
		d := Route(messages.New("s1", messages.Human("sam"), "@Ava hello"), roster)
		assert.True(t, d.Addressed)
		require.Len(t, d.Candidates, 1)
		assert.True(t, strings.EqualFold("ava", d.Candidates[0]))
	})

	t.Run("system message broadcasts to all active agents", func(t *testing.T) {
		d := Route(messages.New("s1", messages.System(), "the world is closing"), roster)
		assert.Equal(t, []string{"ava", "bud", "cleo"}, d.Candidates)
	})

	t.Run("agent reply without mention goes to nobody", func(t *testing.T) {
		d := Route(messages.New("s1", messages.Agent("ava"), "interesting point"), roster)
		assert.False(t, d.Addressed)
		assert.Empty(t, d.Candidates)
	})

	t.Run("agent self mention is skipped", func(t *testing.T) {
		d := Route(messages.New("s1", messages.Agent("ava"), "@ava note to self\n\n@bud over to you"), roster)
		assert.True(t, d.Addressed)
		assert.Equal(t, []string{"bud"}, d.Candidates)
	})

	t.Run("agent with only a self mention goes to nobody", func(t *testing.T) {
		d := Route(messages.New("s1", messages.Agent("ava"), "@ava thinking out loud"), roster)
		assert.False(t, d.Addressed)
		assert.Empty(t, d.Candidates)
	})

	t.Run("mention of an inactive agent is addressed but undeliverable", func(t *testing.T) {
		r := fakeRoster{active: []string{"ava"}, inactive: []string{"bud"}}
		d := Route(messages.New("s1", messages.Human("sam"), "@bud wake up"), r)
		assert.True(t, d.Addressed)
		assert.Empty(t, d.Candidates)
	})
}

func TestLimiter(t *testing.T) {
	t.Run("acquire consumes the budget", func(t *testing.T) {
		l := NewLimiter(2)
		assert.True(t, l.Acquire())
		assert.True(t, l.Acquire())
		assert.False(t, l.Acquire())
		assert.True(t, l.Blocked())
		assert.Equal(t, 2, l.Count())
	})

	t.Run("reset returns the full budget", func(t *testing.T) {
		l := NewLimiter(1)
		require.True(t, l.Acquire())
		require.False(t, l.Acquire())
		l.Reset()
		assert.False(t, l.Blocked())
		assert.True(t, l.Acquire())
	})

	t.Run("set limit keeps the current count", func(t *testing.T) {
		l := NewLimiter(1)
		require.True(t, l.Acquire())
		require.True(t, l.Blocked())
		l.SetLimit(3)
		assert.Equal(t, 1, l.Count())
		assert.True(t, l.Acquire())
	})

	t.Run("zero limit blocks immediately", func(t *testing.T) {
		l := NewLimiter(0)
		assert.False(t, l.Acquire())
		assert.True(t, l.Blocked())
	})
}

func TestHandlePass(t *testing.T) {
	t.Run("reply with directive becomes the hand-back notice", func(t *testing.T) {
		out, passed := HandlePass("I have nothing to add. " + PassDirective)
		assert.True(t, passed)
		assert.Equal(t, HandBackNotice, out)
	})

	t.Run("reply without directive is unchanged", func(t *testing.T) {
		out, passed := HandlePass("@bud your move")
		assert.False(t, passed)
		assert.Equal(t, "@bud your move", out)
	})
}
