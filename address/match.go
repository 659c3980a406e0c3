package address

import (
	"log/slog"
	"strings"

	"github.com/casualjim/tether/pkg/slogx"
)

// Match reports whether the incoming address satisfies the pattern a receiver
// declared. The relation is not symmetric: wildcards are only honoured on the
// pattern side.
//
// A structured pattern compares segment by segment. "+" in the role, channel
// or group position accepts any value there, and a pattern without a group id
// (or with "#" as group id) accepts incoming addresses with or without one.
// A structured pattern never matches a custom incoming address.
//
// A custom pattern matches when it is the multi-level wildcard or equals the
// incoming topic string exactly; broker wildcard rules are never applied to
// custom patterns.
//
// Parameters:
//   - pattern: the address a receiver subscribed with.
//   - incoming: the address parsed from a delivered topic.
//
// Returns:
//   - bool: true when the message belongs to the receiver.
func Match(pattern, incoming Address) bool {
	if pattern.kind == KindCustom {
		return pattern.raw == MultiLevelWildcard || pattern.raw == incoming.Topic()
	}

	if incoming.kind == KindCustom {
		slog.Warn("incoming topic does not follow the role/channel convention, a structured pattern cannot match it",
			slogx.Topic(incoming.raw), slog.String("pattern", pattern.Topic()))
		return false
	}

	matchesRole := pattern.role == SingleLevelWildcard || pattern.role == incoming.role
	matchesChannel := pattern.channelName == SingleLevelWildcard || pattern.channelName == incoming.channelName
	matchesGroup := true
	if pattern.hasGroup && pattern.groupID != SingleLevelWildcard && pattern.groupID != MultiLevelWildcard {
		matchesGroup = incoming.hasGroup && pattern.groupID == incoming.groupID
	}

	slog.Debug("match structured address",
		slog.String("pattern", pattern.Topic()),
		slogx.Topic(incoming.Topic()),
		slog.Bool("role", matchesRole),
		slog.Bool("channel", matchesChannel),
		slog.Bool("group", matchesGroup),
	)
	return matchesRole && matchesChannel && matchesGroup
}

// MatchFilter reports whether a concrete topic matches a broker subscription
// filter, with "+" matching one segment and "#" matching the remaining ones,
// including none.
func MatchFilter(filter, topic string) bool {
	if filter == topic {
		return true
	}
	return matchSegments(strings.Split(filter, Separator), strings.Split(topic, Separator))
}

func matchSegments(filter, topic []string) bool {
	fi, ti := 0, 0

	for fi < len(filter) && ti < len(topic) {
		switch filter[fi] {
		case MultiLevelWildcard:
			return true
		case SingleLevelWildcard:
			fi++
			ti++
		default:
			if filter[fi] != topic[ti] {
				return false
			}
			fi++
			ti++
		}
	}

	if fi == len(filter) && ti == len(topic) {
		return true
	}

	// "a/b/#" also matches the parent level "a/b"
	return fi == len(filter)-1 && filter[fi] == MultiLevelWildcard
}
