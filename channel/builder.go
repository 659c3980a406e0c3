package channel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/casualjim/tether/address"
	"github.com/casualjim/tether/pkg/slogx"
	"github.com/casualjim/tether/transport"
)

// Owner supplies the defaults a builder falls back to.
type Owner interface {
	address.Identity
	DefaultQoS() transport.QoS
}

// Subscriber is an owner that can register interest in a topic.
type Subscriber interface {
	Owner
	Subscribe(ctx context.Context, topic string, qos transport.QoS) error
}

// Severity grades a diagnostic.
type Severity uint8

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic records a configuration conflict on a builder. The conflicting
// call has no effect; diagnostics never fail a build.
type Diagnostic struct {
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return d.Severity.String() + ": " + d.Message
}

// Builder accumulates the configuration of a single channel.
// The zero value is not usable; start from NewReceiver or NewSender.
type Builder struct {
	kind        Kind
	name        string
	qos         transport.QoS
	hasQoS      bool
	role        string
	groupID     string
	channelName string
	topic       string
	retain      bool
	diagnostics []Diagnostic
}

// NewReceiver starts a receiver definition.
func NewReceiver(name string) *Builder {
	return &Builder{kind: KindReceiver, name: name}
}

// NewSender starts a sender definition.
func NewSender(name string) *Builder {
	return &Builder{kind: KindSender, name: name}
}

// QoS sets the delivery guarantee. Without it the owner's default applies.
func (b *Builder) QoS(qos transport.QoS) *Builder {
	if !qos.Valid() {
		b.report(SeverityError, fmt.Sprintf("ignoring invalid %s", qos))
		return b
	}
	b.qos, b.hasQoS = qos, true
	return b
}

// Role overrides the role segment.
func (b *Builder) Role(role string) *Builder {
	if b.topic != "" {
		b.report(SeverityWarning, "role override "+role+" is ignored because a full topic is set")
	}
	b.role = role
	return b
}

// GroupID overrides the group id segment.
func (b *Builder) GroupID(groupID string) *Builder {
	if b.topic != "" {
		b.report(SeverityWarning, "group id override "+groupID+" is ignored because a full topic is set")
	}
	b.groupID = groupID
	return b
}

// ChannelName overrides the channel name segment of a receiver's address
// while the declared name stays as the label. Senders always publish under
// their declared name.
func (b *Builder) ChannelName(channelName string) *Builder {
	if b.kind == KindSender {
		b.report(SeverityError, "senders cannot override their channel name, publishing as "+b.name)
		return b
	}
	if b.topic != "" {
		b.report(SeverityWarning, "channel name override "+channelName+" is ignored because a full topic is set")
	}
	b.channelName = channelName
	return b
}

// AnyChannel makes a receiver accept every channel name.
func (b *Builder) AnyChannel() *Builder {
	return b.ChannelName(address.SingleLevelWildcard)
}

// Topic sets the full topic verbatim. It takes precedence over role, group id
// and channel name overrides.
func (b *Builder) Topic(topic string) *Builder {
	if b.role != "" || b.groupID != "" || b.channelName != "" {
		b.report(SeverityWarning, "full topic "+topic+" overrides the role, group id and channel name settings")
	}
	b.topic = topic
	return b
}

// Retain asks the broker to keep the last message of a sender.
func (b *Builder) Retain(retain bool) *Builder {
	if b.kind == KindReceiver {
		b.report(SeverityError, "receivers cannot retain messages")
		return b
	}
	b.retain = retain
	return b
}

// Diagnostics returns the conflicts recorded so far.
func (b *Builder) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), b.diagnostics...)
}

// Resolve computes the definition without any I/O. The same builder state and
// owner identity always resolve to the same definition.
//
// Senders publish under the owner's role and group id unless overridden.
// Receivers subscribe to any role and any group unless overridden; they never
// inherit the owner's group id. A full topic replaces the computed address.
// The QoS is the builder's, else the owner's default, else at-least-once.
//
// Parameters:
//   - owner: the agent identity the channel belongs to. It may be nil, in
//     which case a sender needs an explicit role.
//
// Returns:
//   - Definition: the resolved channel.
//   - error: ErrWildcardSender when a sender address contains a wildcard, or
//     ErrInvalidAddress when a segment is empty or malformed.
func (b *Builder) Resolve(owner Owner) (Definition, error) {
	def := Definition{
		Name:    b.name,
		Kind:    b.kind,
		QoS:     transport.AtLeastOnce,
		Address: b.address(owner),
	}
	if owner != nil {
		def.QoS = owner.DefaultQoS()
	}
	if b.hasQoS {
		def.QoS = b.qos
	}
	if b.kind == KindSender {
		def.Retain = b.retain
		if def.Address.HasWildcard() {
			return Definition{}, fmt.Errorf("channel %q: %w: %s", b.name, ErrWildcardSender, def.Topic())
		}
	}
	if err := def.Address.Validate(); err != nil {
		return Definition{}, fmt.Errorf("channel %q: %w", b.name, err)
	}
	return def, nil
}

// Build resolves the definition against the subscriber and, for receivers,
// subscribes to its topic. No definition is returned when the subscribe fails.
func (b *Builder) Build(ctx context.Context, sub Subscriber) (Definition, error) {
	def, err := b.Resolve(sub)
	if err != nil {
		return Definition{}, err
	}
	if def.Kind == KindReceiver {
		if err := sub.Subscribe(ctx, def.Topic(), def.QoS); err != nil {
			return Definition{}, fmt.Errorf("channel %q: subscribe %s: %w", b.name, def.Topic(), err)
		}
	}
	logger(b).Debug("channel ready", slogx.Topic(def.Topic()), slogx.Stringer("qos", def.QoS))
	return def, nil
}

func (b *Builder) address(owner Owner) address.Address {
	if b.topic != "" {
		return address.Custom(b.topic)
	}

	o := address.Overrides{Role: b.role, GroupID: b.groupID}
	if b.kind == KindSender {
		return address.ForPublish(b.name, owner, o)
	}

	channelName := b.name
	if b.channelName != "" {
		channelName = b.channelName
	}
	return address.ForSubscribe(channelName, o)
}

func (b *Builder) report(severity Severity, msg string) {
	b.diagnostics = append(b.diagnostics, Diagnostic{Severity: severity, Message: msg})
	level := slog.LevelWarn
	if severity == SeverityError {
		level = slog.LevelError
	}
	logger(b).Log(context.Background(), level, msg)
}

func logger(b *Builder) *slog.Logger {
	return slog.Default().With(slogx.LoggerName("channel"), slog.String("channel", b.name), slogx.Stringer("kind", b.kind))
}
