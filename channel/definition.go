// Package channel describes the inputs and outputs of a tether agent.
//
// A Definition is the resolved, immutable description of one channel: the
// label the application uses for it, the address it lives on, the delivery
// guarantee and whether it receives or sends. Definitions come out of a
// Builder, which computes the address from the owning agent's identity and
// whatever overrides the caller set:
//
//	out, err := channel.NewSender("colours").Resolve(agent)          // brush/colours
//	in, err := channel.NewReceiver("colours").Build(ctx, agent)      // +/colours/#
//	any, err := channel.NewReceiver("all").AnyChannel().Build(ctx, agent) // +/+/#
package channel

import (
	"errors"
	"log/slog"

	"github.com/casualjim/tether/address"
	"github.com/casualjim/tether/pkg/slogx"
	"github.com/casualjim/tether/transport"
)

var (
	// ErrWildcardSender is returned when a sender would publish to a topic
	// containing a wildcard.
	ErrWildcardSender = errors.New("sender address contains a wildcard")
	// ErrInvalidAddress is returned when the computed address breaks a segment
	// invariant. It is the same value as address.ErrInvalidAddress.
	ErrInvalidAddress = address.ErrInvalidAddress
)

// Kind tells receivers and senders apart.
type Kind uint8

const (
	KindReceiver Kind = iota
	KindSender
)

func (k Kind) String() string {
	switch k {
	case KindReceiver:
		return "receiver"
	case KindSender:
		return "sender"
	default:
		return "unknown"
	}
}

// Definition is a resolved channel.
type Definition struct {
	// Name is the label the caller declared. It is kept even when the channel
	// name segment of the address was overridden.
	Name    string
	Address address.Address
	QoS     transport.QoS
	Kind    Kind
	// Retain only applies to senders.
	Retain bool
}

// Topic is the rendered topic of the definition's address.
func (d Definition) Topic() string {
	return d.Address.Topic()
}

func (d Definition) IsReceiver() bool { return d.Kind == KindReceiver }

func (d Definition) IsSender() bool { return d.Kind == KindSender }

// Matches reports whether an incoming message address belongs to this
// receiver. Senders never match.
func (d Definition) Matches(incoming address.Address) bool {
	if d.Kind != KindReceiver {
		slog.Warn("matches called on a sender definition",
			slogx.LoggerName("channel"), slog.String("channel", d.Name), slogx.Topic(incoming.Topic()))
		return false
	}
	return address.Match(d.Address, incoming)
}

func (d Definition) String() string {
	return d.Kind.String() + " " + d.Name + " @ " + d.Topic()
}
