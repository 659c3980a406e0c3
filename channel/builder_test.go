package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/tether/address"
	"github.com/casualjim/tether/transport"
)

type subscription struct {
	topic string
	qos   transport.QoS
}

type fakeAgent struct {
	role       string
	groupID    string
	qos        transport.QoS
	subscribed []subscription
	err        error
}

func (f *fakeAgent) Role() string { return f.role }

func (f *fakeAgent) GroupID() (string, bool) { return f.groupID, f.groupID != "" }

func (f *fakeAgent) DefaultQoS() transport.QoS { return f.qos }

func (f *fakeAgent) Subscribe(_ context.Context, topic string, qos transport.QoS) error {
	if f.err != nil {
		return f.err
	}
	f.subscribed = append(f.subscribed, subscription{topic, qos})
	return nil
}

func tester() *fakeAgent {
	return &fakeAgent{role: "tester", qos: transport.AtLeastOnce}
}

func TestSender(t *testing.T) {
	t.Run("defaults to the agent role", func(t *testing.T) {
		def, err := NewSender("two").Resolve(tester())
		require.NoError(t, err)
		assert.Equal(t, "tester/two", def.Topic())
		assert.Equal(t, "two", def.Name)
		assert.Equal(t, KindSender, def.Kind)
		assert.Equal(t, transport.AtLeastOnce, def.QoS)
		assert.False(t, def.Retain)
	})

	t.Run("group override", func(t *testing.T) {
		def, err := NewSender("two").GroupID("g1").Resolve(tester())
		require.NoError(t, err)
		assert.Equal(t, "tester/two/g1", def.Topic())
	})

	t.Run("inherits the agent group", func(t *testing.T) {
		agent := tester()
		agent.groupID = "grp"
		def, err := NewSender("two").Resolve(agent)
		require.NoError(t, err)
		assert.Equal(t, "tester/two/grp", def.Topic())
	})

	t.Run("role override and options", func(t *testing.T) {
		def, err := NewSender("state").Role("brush").QoS(transport.ExactlyOnce).Retain(true).Resolve(tester())
		require.NoError(t, err)
		assert.Equal(t, "brush/state", def.Topic())
		assert.Equal(t, transport.ExactlyOnce, def.QoS)
		assert.True(t, def.Retain)
	})

	t.Run("channel name override is a no-op", func(t *testing.T) {
		b := NewSender("two").ChannelName("other")
		def, err := b.Resolve(tester())
		require.NoError(t, err)
		assert.Equal(t, "tester/two", def.Topic())

		diags := b.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, SeverityError, diags[0].Severity)
	})

	t.Run("wildcard is rejected", func(t *testing.T) {
		_, err := NewSender("two").Role("+").Resolve(tester())
		assert.ErrorIs(t, err, ErrWildcardSender)

		_, err = NewSender("two").Topic("a/#").Resolve(tester())
		assert.ErrorIs(t, err, ErrWildcardSender)
	})

	t.Run("empty role is invalid", func(t *testing.T) {
		_, err := NewSender("two").Resolve(&fakeAgent{})
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})

	t.Run("build does not subscribe", func(t *testing.T) {
		agent := tester()
		_, err := NewSender("two").Build(context.Background(), agent)
		require.NoError(t, err)
		assert.Empty(t, agent.subscribed)
	})
}

func TestReceiver(t *testing.T) {
	t.Run("does not inherit the agent group", func(t *testing.T) {
		agent := tester()
		agent.groupID = "grp"

		def, err := NewReceiver("one").Build(context.Background(), agent)
		require.NoError(t, err)
		assert.Equal(t, "+/one/#", def.Topic())
		assert.Equal(t, []subscription{{"+/one/#", transport.AtLeastOnce}}, agent.subscribed)
	})

	t.Run("role and group overrides", func(t *testing.T) {
		def, err := NewReceiver("x").Role("r").GroupID("g").Resolve(tester())
		require.NoError(t, err)
		assert.Equal(t, "r/x/g", def.Topic())
	})

	t.Run("multi level group accepts every group", func(t *testing.T) {
		def, err := NewReceiver("x").GroupID("#").Resolve(tester())
		require.NoError(t, err)
		assert.Equal(t, "+/x/#", def.Topic())
		assert.True(t, def.Matches(address.NewWithGroup("r", "x", "g")))
		assert.True(t, def.Matches(address.New("r", "x")))
		assert.True(t, def.Matches(address.ParseOrCustom("r/x/g")))
	})

	t.Run("any channel keeps the declared name", func(t *testing.T) {
		def, err := NewReceiver("myPlugName").AnyChannel().Resolve(tester())
		require.NoError(t, err)
		assert.Equal(t, "+/+/#", def.Topic())
		assert.Equal(t, "myPlugName", def.Name)
		assert.True(t, def.Matches(address.New("whoever", "whatever")))
	})

	t.Run("full topic wins with a warning", func(t *testing.T) {
		b := NewReceiver("one").Role("r").Topic("some/raw/topic").GroupID("g")
		def, err := b.Resolve(tester())
		require.NoError(t, err)
		assert.True(t, def.Address.IsCustom())
		assert.Equal(t, "some/raw/topic", def.Topic())

		diags := b.Diagnostics()
		require.Len(t, diags, 2)
		for _, d := range diags {
			assert.Equal(t, SeverityWarning, d.Severity)
		}
	})

	t.Run("retain is a no-op", func(t *testing.T) {
		b := NewReceiver("one").Retain(true)
		def, err := b.Resolve(tester())
		require.NoError(t, err)
		assert.False(t, def.Retain)
		require.Len(t, b.Diagnostics(), 1)
		assert.Equal(t, SeverityError, b.Diagnostics()[0].Severity)
	})

	t.Run("invalid qos is a no-op", func(t *testing.T) {
		b := NewReceiver("one").QoS(transport.QoS(9))
		def, err := b.Resolve(tester())
		require.NoError(t, err)
		assert.Equal(t, transport.AtLeastOnce, def.QoS)
		assert.Len(t, b.Diagnostics(), 1)
	})

	t.Run("qos falls back to the owner default", func(t *testing.T) {
		agent := tester()
		agent.qos = transport.AtMostOnce
		def, err := NewReceiver("one").Resolve(agent)
		require.NoError(t, err)
		assert.Equal(t, transport.AtMostOnce, def.QoS)
	})

	t.Run("subscribe failure yields no definition", func(t *testing.T) {
		agent := tester()
		agent.err = errors.New("boom")
		def, err := NewReceiver("one").Build(context.Background(), agent)
		require.Error(t, err)
		assert.Equal(t, Definition{}, def)
	})

	t.Run("resolve is repeatable", func(t *testing.T) {
		b := NewReceiver("one").Role("r")
		first, err := b.Resolve(tester())
		require.NoError(t, err)
		second, err := b.Resolve(tester())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestDefinitionMatches(t *testing.T) {
	recv, err := NewReceiver("x").Role("role").Resolve(tester())
	require.NoError(t, err)
	assert.True(t, recv.Matches(address.NewWithGroup("role", "x", "anything")))
	assert.False(t, recv.Matches(address.NewWithGroup("other", "x", "anything")))

	all, err := NewReceiver("all").Topic("#").Resolve(tester())
	require.NoError(t, err)
	assert.True(t, all.Matches(address.New("a", "b")))
	assert.True(t, all.Matches(address.Custom("x")))

	send, err := NewSender("x").Resolve(tester())
	require.NoError(t, err)
	assert.False(t, send.Matches(address.New("tester", "x")))
}
