package address

import (
	"fmt"
	"strings"
)

const (
	// Separator splits the segments of a topic string.
	Separator = "/"
	// SingleLevelWildcard matches exactly one segment.
	SingleLevelWildcard = "+"
	// MultiLevelWildcard matches all remaining segments.
	MultiLevelWildcard = "#"
)

// Kind tells the two address variants apart.
type Kind uint8

const (
	KindStructured Kind = iota
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Identity is the part of an agent that publish addresses default from.
type Identity interface {
	Role() string
	GroupID() (string, bool)
}

// Overrides holds the optional parts a caller may force when an address is
// computed. Empty fields are not set.
type Overrides struct {
	Role    string
	GroupID string
}

// Address is a structured or custom topic identifier.
// The zero value is not a valid address.
type Address struct {
	kind        Kind
	role        string
	channelName string
	groupID     string
	hasGroup    bool
	// subscribe renders an absent group as a trailing multi-level wildcard.
	subscribe bool
	raw       string
}

// New creates a structured publish address without a group id.
func New(role, channelName string) Address {
	return Address{kind: KindStructured, role: role, channelName: channelName}
}

// NewWithGroup creates a structured address scoped to a group id.
func NewWithGroup(role, channelName, groupID string) Address {
	return Address{kind: KindStructured, role: role, channelName: channelName, groupID: groupID, hasGroup: true}
}

// Custom creates an address that renders the raw topic unchanged.
func Custom(raw string) Address {
	return Address{kind: KindCustom, raw: raw}
}

// ForPublish computes the address a sender publishes to.
//
// The role falls back to the identity's role. The group id falls back to the
// identity's group id when it has one, and is absent otherwise.
func ForPublish(channelName string, id Identity, o Overrides) Address {
	role := o.Role
	if role == "" && id != nil {
		role = id.Role()
	}

	addr := New(role, channelName)
	switch {
	case o.GroupID != "":
		addr.groupID, addr.hasGroup = o.GroupID, true
	case id != nil:
		addr.groupID, addr.hasGroup = id.GroupID()
	}
	return addr
}

// ForSubscribe computes the address a receiver subscribes to.
//
// The role falls back to the single-level wildcard. The group id is absent unless
// overridden, which renders as a trailing multi-level wildcard. A group override
// of "#" is the same as no override. The agent's own group id never applies
// here: a receiver only narrows to a group when asked to.
func ForSubscribe(channelName string, o Overrides) Address {
	role := o.Role
	if role == "" {
		role = SingleLevelWildcard
	}

	if o.GroupID != "" && o.GroupID != MultiLevelWildcard {
		return NewWithGroup(role, channelName, o.GroupID)
	}
	return Address{kind: KindStructured, role: role, channelName: channelName, subscribe: true}
}

func (a Address) Kind() Kind { return a.kind }

func (a Address) IsStructured() bool { return a.kind == KindStructured }

func (a Address) IsCustom() bool { return a.kind == KindCustom }

// Role returns the role segment; empty for custom addresses.
func (a Address) Role() string { return a.role }

// ChannelName returns the channel name segment; empty for custom addresses.
func (a Address) ChannelName() string { return a.channelName }

// GroupID returns the group id segment and whether one is present.
func (a Address) GroupID() (string, bool) { return a.groupID, a.hasGroup }

// Raw returns the custom topic string; empty for structured addresses.
func (a Address) Raw() string { return a.raw }

// IsSubscribeForm reports whether an absent group renders as a wildcard.
func (a Address) IsSubscribeForm() bool { return a.kind == KindStructured && a.subscribe && !a.hasGroup }

// HasWildcard reports whether the rendered topic contains a wildcard token.
func (a Address) HasWildcard() bool {
	if a.kind == KindCustom {
		return strings.ContainsAny(a.raw, SingleLevelWildcard+MultiLevelWildcard)
	}
	if a.IsSubscribeForm() {
		return true
	}
	return a.role == SingleLevelWildcard ||
		a.channelName == SingleLevelWildcard ||
		(a.hasGroup && (a.groupID == SingleLevelWildcard || a.groupID == MultiLevelWildcard))
}

// Topic renders the flat topic string.
func (a Address) Topic() string {
	if a.kind == KindCustom {
		return a.raw
	}
	switch {
	case a.hasGroup:
		return a.role + Separator + a.channelName + Separator + a.groupID
	case a.subscribe:
		return a.role + Separator + a.channelName + Separator + MultiLevelWildcard
	default:
		return a.role + Separator + a.channelName
	}
}

func (a Address) String() string {
	return a.Topic()
}

// WithRole returns a copy with the role replaced. Custom addresses are returned unchanged.
func (a Address) WithRole(role string) Address {
	if a.kind == KindStructured {
		a.role = role
	}
	return a
}

// WithChannelName returns a copy with the channel name replaced.
func (a Address) WithChannelName(channelName string) Address {
	if a.kind == KindStructured {
		a.channelName = channelName
	}
	return a
}

// WithGroupID returns a copy scoped to the group id.
func (a Address) WithGroupID(groupID string) Address {
	if a.kind == KindStructured {
		a.groupID, a.hasGroup = groupID, true
	}
	return a
}

// WithoutGroupID returns a copy with the group id removed.
func (a Address) WithoutGroupID() Address {
	if a.kind == KindStructured {
		a.groupID, a.hasGroup = "", false
	}
	return a
}

// Validate checks the segment invariants of a structured address.
func (a Address) Validate() error {
	switch a.kind {
	case KindCustom:
		if a.raw == "" {
			return fmt.Errorf("%w: empty custom topic", ErrInvalidAddress)
		}
		return nil
	case KindStructured:
		if err := validateSegment("role", a.role); err != nil {
			return err
		}
		if err := validateSegment("channel name", a.channelName); err != nil {
			return err
		}
		if a.hasGroup {
			return validateSegment("group id", a.groupID)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidAddress, a.kind)
	}
}

func validateSegment(part, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidAddress, part)
	}
	if strings.Contains(value, Separator) {
		return fmt.Errorf("%w: %s %q contains %q", ErrInvalidAddress, part, value, Separator)
	}
	return nil
}
