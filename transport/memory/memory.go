// Package memory implements an in-process broker and transport.
//
// It follows broker filter semantics for "+" and "#", keeps retained messages
// and delivers each publish at most once per connected client. It is meant for
// tests, examples and offline tooling; it is not a broker for production use.
package memory

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/tether/address"
	"github.com/casualjim/tether/pkg/slogx"
	"github.com/casualjim/tether/pkg/uuidx"
	"github.com/casualjim/tether/transport"
)

const defaultBufferSize = 256

// Broker routes messages between the transports it dialed.
type Broker struct {
	clients    *haxmap.Map[string, *client]
	retained   *haxmap.Map[string, []byte]
	bufferSize int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		clients:    haxmap.New[string, *client](),
		retained:   haxmap.New[string, []byte](),
		bufferSize: defaultBufferSize,
	}
}

// WithBufferSize configures the event buffer of clients dialed afterwards.
func (b *Broker) WithBufferSize(size int) *Broker {
	b.bufferSize = size
	return b
}

// Dial creates a transport bound to this broker. It satisfies transport.Dialer.
func (b *Broker) Dial(opts transport.Options) (transport.Transport, error) {
	id := opts.ClientID
	if id == "" {
		id = uuidx.ClientID("memory")
	}
	return &client{
		id:      id,
		broker:  b,
		filters: haxmap.New[string, transport.QoS](),
		stream:  transport.NewStream(b.bufferSize),
	}, nil
}

// Connected returns the number of connected clients.
func (b *Broker) Connected() int {
	return int(b.clients.Len())
}

// Retained returns the retained payload for a topic.
func (b *Broker) Retained(topic string) ([]byte, bool) {
	return b.retained.Get(topic)
}

func (b *Broker) route(topic string, payload []byte, retain bool) {
	if retain {
		if len(payload) == 0 {
			b.retained.Del(topic)
		} else {
			b.retained.Set(topic, bytes.Clone(payload))
		}
	}

	b.clients.ForEach(func(_ string, c *client) bool {
		if c != nil && c.accepts(topic) {
			c.deliver(topic, payload)
		}
		return true
	})
}

type client struct {
	id        string
	broker    *Broker
	filters   *haxmap.Map[string, transport.QoS]
	stream    *transport.Stream
	connected atomic.Bool
}

func (c *client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.broker.clients.Set(c.id, c)
	c.connected.Store(true)
	c.stream.Emit(transport.Event{Kind: transport.EventConnAck})
	return nil
}

func (c *client) Subscribe(ctx context.Context, topic string, qos transport.QoS) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.connected.Load() {
		return transport.ErrNotConnected
	}
	c.filters.Set(topic, qos)

	c.broker.retained.ForEach(func(retainedTopic string, payload []byte) bool {
		if address.MatchFilter(topic, retainedTopic) {
			c.deliver(retainedTopic, payload)
		}
		return true
	})
	return nil
}

func (c *client) Publish(ctx context.Context, topic string, payload []byte, _ transport.QoS, retain bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.connected.Load() {
		return transport.ErrNotConnected
	}
	c.broker.route(topic, payload, retain)
	return nil
}

func (c *client) Events() <-chan transport.Event {
	return c.stream.Events()
}

func (c *client) Close() error {
	if c.connected.CompareAndSwap(true, false) {
		c.broker.clients.Del(c.id)
	}
	c.stream.Close()
	return nil
}

func (c *client) accepts(topic string) bool {
	matched := false
	c.filters.ForEach(func(filter string, _ transport.QoS) bool {
		matched = address.MatchFilter(filter, topic)
		return !matched
	})
	return matched
}

func (c *client) deliver(topic string, payload []byte) {
	if !c.stream.Emit(transport.Event{Kind: transport.EventPublish, Topic: topic, Payload: bytes.Clone(payload)}) {
		slog.Debug("dropped message for closed client", slogx.Topic(topic), slog.String("client", c.id))
	}
}
