package tether

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/casualjim/tether/address"
	"github.com/casualjim/tether/channel"
	"github.com/casualjim/tether/codec"
	"github.com/casualjim/tether/pkg/slogx"
	"github.com/casualjim/tether/pkg/stdx"
)

// Sender publishes values of type T, encoded with codec.Encode.
type Sender[T any] struct {
	agent *Agent
	def   channel.Definition
}

// NewSender resolves a sender named name with default settings.
func NewSender[T any](a *Agent, name string) (*Sender[T], error) {
	def, err := a.Sender(name)
	if err != nil {
		return nil, err
	}
	return SenderOf[T](a, def)
}

// SenderOf wraps an existing sender definition.
func SenderOf[T any](a *Agent, def channel.Definition) (*Sender[T], error) {
	if !def.IsSender() {
		return nil, fmt.Errorf("tether: %q: %w", def.Name, ErrNotSender)
	}
	return &Sender[T]{agent: a, def: def}, nil
}

func (s *Sender[T]) Definition() channel.Definition {
	return s.def
}

// Send encodes and publishes v.
func (s *Sender[T]) Send(ctx context.Context, v T) error {
	payload, err := codec.Encode(v)
	if err != nil {
		return fmt.Errorf("tether: send on %q: %w", s.def.Name, err)
	}
	return s.agent.Publish(ctx, s.def, payload)
}

// SendRaw publishes an already encoded payload.
func (s *Sender[T]) SendRaw(ctx context.Context, payload []byte) error {
	return s.agent.Publish(ctx, s.def, payload)
}

// SendEmpty publishes a message without payload, as used for plain signals.
func (s *Sender[T]) SendEmpty(ctx context.Context) error {
	return s.agent.Publish(ctx, s.def, nil)
}

// Receiver decodes messages of type T that arrive on its definition.
type Receiver[T any] struct {
	def channel.Definition
}

// NewReceiver builds a receiver named name with default settings and
// subscribes to it.
func NewReceiver[T any](ctx context.Context, a *Agent, name string) (*Receiver[T], error) {
	def, err := a.Receiver(ctx, name)
	if err != nil {
		return nil, err
	}
	return ReceiverOf[T](def)
}

// ReceiverOf wraps an existing receiver definition.
func ReceiverOf[T any](def channel.Definition) (*Receiver[T], error) {
	if !def.IsReceiver() {
		return nil, fmt.Errorf("tether: %q: %w", def.Name, ErrNotReceiver)
	}
	return &Receiver[T]{def: def}, nil
}

func (r *Receiver[T]) Definition() channel.Definition {
	return r.def
}

// Matches reports whether a message address belongs to this receiver.
func (r *Receiver[T]) Matches(incoming address.Address) bool {
	return r.def.Matches(incoming)
}

// Parse decodes the message when it belongs to this receiver. The boolean is
// false for messages of other channels and for payloads that do not decode
// into T.
func (r *Receiver[T]) Parse(msg Message) (T, bool) {
	var v T
	if !r.Matches(msg.Address) {
		return v, false
	}
	if err := codec.Decode(msg.Payload, &v); err != nil {
		slog.Warn("could not decode message",
			slogx.LoggerName("tether"), slog.String("channel", r.def.Name), slogx.Topic(msg.Topic()), slogx.Error(err))
		return stdx.Zero[T](), false
	}
	return v, true
}
