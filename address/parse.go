package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/casualjim/tether/pkg/stdx"
)

var (
	// ErrMalformedAddress is returned when a topic does not have two or three segments.
	ErrMalformedAddress = errors.New("malformed address")
	// ErrInvalidAddress is returned when an address breaks a segment invariant.
	ErrInvalidAddress = errors.New("invalid address")
)

// TryParse converts a topic string into a structured address.
//
// Two segments yield an address without group id, three segments an address
// with the third segment as group id. A third segment equal to the multi-level
// wildcard is read as the subscribe form with an absent group.
func TryParse(topic string) (Address, error) {
	parts := strings.Split(topic, Separator)
	if len(parts) < 2 || len(parts) > 3 {
		return Address{}, fmt.Errorf("%w: found %d segments in %q, expected 2 or 3", ErrMalformedAddress, len(parts), topic)
	}
	for _, p := range parts {
		if p == "" {
			return Address{}, fmt.Errorf("%w: empty segment in %q", ErrMalformedAddress, topic)
		}
	}

	role, channelName := parts[0], parts[1]
	if len(parts) == 2 {
		return New(role, channelName), nil
	}
	if parts[2] == MultiLevelWildcard {
		return ForSubscribe(channelName, Overrides{Role: role}), nil
	}
	return NewWithGroup(role, channelName, parts[2]), nil
}

// MustParse is like TryParse but panics on error.
func MustParse(topic string) Address {
	return stdx.Must(TryParse(topic))
}

// ParseOrCustom parses the topic and falls back to a custom address when the
// topic does not follow the convention.
func ParseOrCustom(topic string) Address {
	if addr, err := TryParse(topic); err == nil {
		return addr
	}
	return Custom(topic)
}

// RolePart returns the first segment of a raw topic.
func RolePart(topic string) (string, bool) {
	return segment(topic, 0)
}

// ChannelNamePart returns the second segment of a raw topic.
func ChannelNamePart(topic string) (string, bool) {
	return segment(topic, 1)
}

// GroupIDPart returns the third segment of a raw topic.
func GroupIDPart(topic string) (string, bool) {
	return segment(topic, 2)
}

func segment(topic string, idx int) (string, bool) {
	parts := strings.Split(topic, Separator)
	if idx >= len(parts) {
		return "", false
	}
	return parts[idx], true
}
