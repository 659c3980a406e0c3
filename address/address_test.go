package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testIdentity struct {
	role  string
	group string
}

func (i testIdentity) Role() string { return i.role }

func (i testIdentity) GroupID() (string, bool) { return i.group, i.group != "" }

func TestForPublish(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		identity testIdentity
		override Overrides
		want     string
	}{
		{name: "agent defaults", channel: "two", identity: testIdentity{role: "tester"}, want: "tester/two"},
		{name: "agent group", channel: "two", identity: testIdentity{role: "tester", group: "grp"}, want: "tester/two/grp"},
		{name: "group override", channel: "two", identity: testIdentity{role: "tester"}, override: Overrides{GroupID: "g1"}, want: "tester/two/g1"},
		{name: "group override beats agent group", channel: "two", identity: testIdentity{role: "tester", group: "grp"}, override: Overrides{GroupID: "g1"}, want: "tester/two/g1"},
		{name: "role override", channel: "two", identity: testIdentity{role: "tester"}, override: Overrides{Role: "other"}, want: "other/two"},
		{name: "both overrides", channel: "two", identity: testIdentity{role: "tester"}, override: Overrides{Role: "other", GroupID: "x"}, want: "other/two/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := ForPublish(tt.channel, tt.identity, tt.override)
			assert.True(t, addr.IsStructured())
			assert.Equal(t, tt.want, addr.Topic())
			assert.False(t, addr.HasWildcard())
			require.NoError(t, addr.Validate())
		})
	}
}

func TestForSubscribe(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		override Overrides
		want     string
	}{
		{name: "defaults", channel: "x", want: "+/x/#"},
		{name: "role and group", channel: "x", override: Overrides{Role: "r", GroupID: "g"}, want: "r/x/g"},
		{name: "role only", channel: "theChannel", override: Overrides{Role: "specificRole"}, want: "specificRole/theChannel/#"},
		{name: "group only", channel: "theChannel", override: Overrides{GroupID: "specificID"}, want: "+/theChannel/specificID"},
		{name: "any channel", channel: "+", override: Overrides{Role: "brain"}, want: "brain/+/#"},
		{name: "multi level group", channel: "x", override: Overrides{GroupID: "#"}, want: "+/x/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := ForSubscribe(tt.channel, tt.override)
			assert.Equal(t, tt.want, addr.Topic())
			assert.Equal(t, MustParse(tt.want), addr, "address agrees with its parsed topic")
		})
	}
}

func TestTopicIsIdempotent(t *testing.T) {
	for _, addr := range []Address{
		New("a", "b"),
		NewWithGroup("a", "b", "c"),
		ForSubscribe("b", Overrides{}),
		Custom("foo/bar/baz/one"),
	} {
		first := addr.Topic()
		assert.Equal(t, first, addr.Topic())
		assert.Equal(t, first, addr.String())
	}
}

func TestMutatorsRebuildTopic(t *testing.T) {
	base := New("tester", "two")

	withGroup := base.WithGroupID("g1")
	assert.Equal(t, "tester/two/g1", withGroup.Topic())
	assert.Equal(t, "tester/two", base.Topic(), "original value is untouched")

	assert.Equal(t, "other/two/g1", withGroup.WithRole("other").Topic())
	assert.Equal(t, "tester/three/g1", withGroup.WithChannelName("three").Topic())
	assert.Equal(t, "tester/two", withGroup.WithoutGroupID().Topic())

	custom := Custom("raw/topic")
	assert.Equal(t, custom, custom.WithRole("x"))
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, NewWithGroup("a", "b", "c").Validate())
		assert.NoError(t, Custom("#").Validate())
	})

	t.Run("invalid", func(t *testing.T) {
		for _, addr := range []Address{
			New("", "b"),
			New("a", ""),
			New("a/b", "c"),
			NewWithGroup("a", "b", "c/d"),
			NewWithGroup("a", "b", ""),
			Custom(""),
			{},
		} {
			err := addr.Validate()
			assert.ErrorIs(t, err, ErrInvalidAddress, addr.Topic())
		}
	})
}

func TestHasWildcard(t *testing.T) {
	assert.False(t, New("a", "b").HasWildcard())
	assert.True(t, New("+", "b").HasWildcard())
	assert.True(t, New("a", "+").HasWildcard())
	assert.True(t, NewWithGroup("a", "b", "+").HasWildcard())
	assert.True(t, ForSubscribe("b", Overrides{Role: "a"}).HasWildcard())
	assert.True(t, Custom("a/#").HasWildcard())
	assert.False(t, Custom("a/b/c/d").HasWildcard())
}
