package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"

	"github.com/casualjim/tether"
	"github.com/casualjim/tether/codec"
	"github.com/casualjim/tether/recording"
	"github.com/casualjim/tether/transport"
	"github.com/casualjim/tether/transport/memory"
)

func init() {
	color.NoColor = true
}

// syncBuffer is written by a command goroutine while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type registrar interface {
	Register(app *cli.Command) *cli.Command
}

func newApp(flags *Flags, out *syncBuffer, cmds ...registrar) *cli.Command {
	app := &cli.Command{Name: "tether", Flags: flags.Global(), Writer: out, ErrWriter: out}
	for _, cmd := range cmds {
		app = cmd.Register(app)
	}
	return app
}

func observer(t *testing.T, b *memory.Broker, filter string) *tether.Agent {
	t.Helper()
	a, err := tether.New("observer", tether.Dialer(b.Dial), tether.AutoConnect(false), tether.PollInterval(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background()))
	require.NoError(t, a.Subscribe(context.Background(), filter, transport.AtLeastOnce))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func waitMessage(t *testing.T, a *tether.Agent) tether.Message {
	t.Helper()
	var msg tether.Message
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok = a.CheckMessages()
		return ok
	}, 2*time.Second, time.Millisecond)
	return msg
}

// waitTopic skips messages on other topics.
func waitTopic(t *testing.T, a *tether.Agent, topic string) tether.Message {
	t.Helper()
	var msg tether.Message
	require.Eventually(t, func() bool {
		for {
			m, ok := a.CheckMessages()
			if !ok {
				return false
			}
			if m.Topic() == topic {
				msg = m
				return true
			}
		}
	}, 2*time.Second, time.Millisecond)
	return msg
}

// publishUntil publishes on topic every few milliseconds until done is closed.
func publishUntil(t *testing.T, b *memory.Broker, topic string, payload []byte, done <-chan struct{}) {
	t.Helper()
	a, err := tether.New("publisher", tether.Dialer(b.Dial), tether.AutoConnect(false), tether.PollInterval(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background()))

	go func() {
		defer a.Close()
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = a.PublishRaw(context.Background(), topic, payload, transport.AtLeastOnce, false)
			}
		}
	}()
}

func TestBuildPayload(t *testing.T) {
	t.Run("no message is empty", func(t *testing.T) {
		payload, err := BuildPayload("", nil, false)
		require.NoError(t, err)
		assert.Empty(t, payload)
	})

	t.Run("json message", func(t *testing.T) {
		payload, err := BuildPayload(`{"hello":"world","n":3}`, nil, false)
		require.NoError(t, err)
		text, err := codec.ToJSON(payload)
		require.NoError(t, err)
		assert.Equal(t, "world", gjson.Get(text, "hello").String())
		assert.Equal(t, int64(3), gjson.Get(text, "n").Int())
	})

	t.Run("sets build on the message", func(t *testing.T) {
		payload, err := BuildPayload(`{"a":1}`, []string{"b.c=2", "name=left", "list=[1,2]"}, false)
		require.NoError(t, err)
		text, err := codec.ToJSON(payload)
		require.NoError(t, err)
		assert.Equal(t, int64(1), gjson.Get(text, "a").Int())
		assert.Equal(t, int64(2), gjson.Get(text, "b.c").Int())
		assert.Equal(t, "left", gjson.Get(text, "name").String())
		assert.Len(t, gjson.Get(text, "list").Array(), 2)
	})

	t.Run("sets alone start from an object", func(t *testing.T) {
		payload, err := BuildPayload("", []string{"x=1"}, false)
		require.NoError(t, err)
		text, err := codec.ToJSON(payload)
		require.NoError(t, err)
		assert.Equal(t, int64(1), gjson.Get(text, "x").Int())
	})

	t.Run("dummy data", func(t *testing.T) {
		payload, err := BuildPayload("", nil, true)
		require.NoError(t, err)
		var got DummyData
		require.NoError(t, codec.Decode(payload, &got))
		assert.Equal(t, dummyData, got)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := BuildPayload("{nope", nil, false)
		assert.Error(t, err)
		_, err = BuildPayload(`{}`, []string{"missing-equals"}, false)
		assert.Error(t, err)
		_, err = BuildPayload(`{}`, nil, true)
		assert.Error(t, err)
	})
}

func TestSplitFilters(t *testing.T) {
	assert.Equal(t, []string{"colours", "+/state/#"}, splitFilters(" colours, ,+/state/#"))
	assert.Empty(t, splitFilters(""))
}

func TestDialer(t *testing.T) {
	f := &Flags{Transport: "memory"}
	d, err := f.dialer()
	require.NoError(t, err)
	assert.NotNil(t, d)
	assert.NotNil(t, f.Broker)

	for _, name := range []string{"mqtt", "nats", ""} {
		f := &Flags{Transport: name}
		_, err := f.dialer()
		assert.NoError(t, err, name)
	}

	f = &Flags{Transport: "pigeon"}
	_, err = f.dialer()
	assert.Error(t, err)
}

func TestReceiveFormat(t *testing.T) {
	payload, err := codec.FromJSON(`{"colour":{"r":255},"n":1}`)
	require.NoError(t, err)

	cmd := &ReceiveCmd{}
	assert.Equal(t, "(empty message)", cmd.format(nil))
	assert.Equal(t, "(undecodable payload, 1 bytes)", cmd.format([]byte{0xc1}))
	assert.JSONEq(t, `{"colour":{"r":255},"n":1}`, cmd.format(payload))

	cmd.path = "colour.r"
	assert.Equal(t, "255", cmd.format(payload))
	cmd.path = "missing"
	assert.Equal(t, "(nothing at missing)", cmd.format(payload))
}

func TestSendCmd(t *testing.T) {
	b := memory.NewBroker()
	obs := observer(t, b, "#")
	flags := &Flags{Broker: b}
	out := &syncBuffer{}

	app := newApp(flags, out, NewSendCmd(flags))
	err := app.Run(context.Background(), []string{"tether", "--transport", "memory", "--group", "g1", "send", "--message", `{"hello":"world"}`})
	require.NoError(t, err)

	msg := waitMessage(t, obs)
	assert.Equal(t, "utils/testMessages/g1", msg.Topic())
	text, err := codec.ToJSON(msg.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, text)
	assert.Contains(t, out.String(), "utils/testMessages/g1")
}

func TestSendCmdTopicOverride(t *testing.T) {
	b := memory.NewBroker()
	obs := observer(t, b, "#")
	flags := &Flags{Broker: b}
	out := &syncBuffer{}

	app := newApp(flags, out, NewSendCmd(flags))
	err := app.Run(context.Background(), []string{"tether", "--transport", "memory", "send", "--topic", "custom/place"})
	require.NoError(t, err)

	msg := waitMessage(t, obs)
	assert.Equal(t, "custom/place", msg.Topic())
	assert.True(t, msg.IsEmpty())
}

func TestReceiveCmd(t *testing.T) {
	b := memory.NewBroker()
	flags := &Flags{Broker: b}
	out := &syncBuffer{}
	payload, err := codec.FromJSON(`{"on":true}`)
	require.NoError(t, err)

	done := make(chan struct{})
	defer close(done)
	publishUntil(t, b, "brush/colours/left", payload, done)

	app := newApp(flags, out, NewReceiveCmd(flags))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = app.Run(ctx, []string{"tether", "--transport", "memory", "receive", "--channel-role", "brush", "--count", "2"})
	require.NoError(t, err)
	require.NoError(t, ctx.Err(), "receive should stop after two messages")

	got := out.String()
	assert.Contains(t, got, "brush/colours/left colours")
	assert.Contains(t, got, `{"on":true}`)
}

func TestTopicsCmd(t *testing.T) {
	b := memory.NewBroker()
	flags := &Flags{Broker: b}
	out := &syncBuffer{}

	done := make(chan struct{})
	defer close(done)
	publishUntil(t, b, "brush/colours/left", nil, done)

	app := newApp(flags, out, NewTopicsCmd(flags))
	err := app.Run(context.Background(), []string{"tether", "--transport", "memory", "topics", "--plain", "--duration", "200ms", "--report-interval", "0"})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "# Insights")
	assert.Contains(t, got, "`brush/colours/left`")
	assert.Contains(t, got, "### brush")
}

func TestRecordAndPlayback(t *testing.T) {
	b := memory.NewBroker()
	flags := &Flags{Broker: b}
	file := filepath.Join(t.TempDir(), "recording.json")
	payload, err := codec.FromJSON(`{"r":1}`)
	require.NoError(t, err)

	done := make(chan struct{})
	publishUntil(t, b, "brush/colours/left", payload, done)

	out := &syncBuffer{}
	app := newApp(flags, out, NewRecordCmd(flags))
	err = app.Run(context.Background(), []string{"tether", "--transport", "memory", "record", "--topic", "+/colours/#", "--file", file, "--duration", "200ms"})
	close(done)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "recorded")

	f, err := os.Open(file)
	require.NoError(t, err)
	entries, err := recording.Load(f)
	f.Close()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "brush/colours/left", entries[0].Topic)
	assert.Equal(t, uint64(0), entries[0].DeltaTime)
	assert.Equal(t, []byte(entries[0].Message.Data), payload)

	obs := observer(t, b, "#")
	out = &syncBuffer{}
	app = newApp(flags, out, NewPlaybackCmd(flags))
	err = app.Run(context.Background(), []string{"tether", "--transport", "memory", "playback", "--speed", "100", "--override-topic", "replay/colours", file})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "published")

	msg := waitTopic(t, obs, "replay/colours")
	assert.Equal(t, payload, msg.Payload)
}

func TestPlaybackCmdArgs(t *testing.T) {
	flags := &Flags{Broker: memory.NewBroker()}
	app := newApp(flags, &syncBuffer{}, NewPlaybackCmd(flags))
	err := app.Run(context.Background(), []string{"tether", "--transport", "memory", "playback"})
	assert.Error(t, err)

	app = newApp(flags, &syncBuffer{}, NewPlaybackCmd(flags))
	err = app.Run(context.Background(), []string{"tether", "--transport", "memory", "playback", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestSchemaCmd(t *testing.T) {
	out := &syncBuffer{}
	app := newApp(&Flags{}, out, NewSchemaCmd())
	require.NoError(t, app.Run(context.Background(), []string{"tether", "schema"}))

	got := out.String()
	assert.True(t, gjson.Valid(got))
	assert.Equal(t, "date-time", gjson.Get(got, "properties.recordedAt.format").String())
	assert.Equal(t, "array", gjson.Get(got, "properties.message.properties.data.type").String())
}
