package natsx

import (
	"strings"

	"github.com/casualjim/tether/address"
)

const (
	subjectSeparator = "."
	subjectAnyToken  = "*"
	subjectAnyTail   = ">"
)

// Characters with a meaning in subjects are percent-escaped inside tokens, so
// a topic segment such as "v1.2" stays one token.
var (
	escaper   = strings.NewReplacer("%", "%25", ".", "%2E", "*", "%2A", ">", "%3E")
	unescaper = strings.NewReplacer("%2E", ".", "%2A", "*", "%3E", ">", "%25", "%")
)

// Subject maps a topic or topic filter onto a NATS subject.
func Subject(topic string) string {
	parts := strings.Split(topic, address.Separator)
	for i, p := range parts {
		switch p {
		case address.SingleLevelWildcard:
			parts[i] = subjectAnyToken
		case address.MultiLevelWildcard:
			parts[i] = subjectAnyTail
		default:
			parts[i] = escaper.Replace(p)
		}
	}
	return strings.Join(parts, subjectSeparator)
}

// SubscribeSubjects maps a topic filter onto the NATS subjects that cover it.
// A trailing "#" in a topic filter also matches its parent level, which ">"
// does not, so "a/b/#" needs both "a.b" and "a.b.>".
func SubscribeSubjects(filter string) []string {
	subject := Subject(filter)
	if filter == address.MultiLevelWildcard {
		return []string{subject}
	}
	if parent, ok := strings.CutSuffix(filter, address.Separator+address.MultiLevelWildcard); ok {
		return []string{Subject(parent), subject}
	}
	return []string{subject}
}

// Topic maps a NATS subject back onto a topic string. It reverses Subject for
// concrete topics.
func Topic(subject string) string {
	tokens := strings.Split(subject, subjectSeparator)
	for i, t := range tokens {
		tokens[i] = unescaper.Replace(t)
	}
	return strings.Join(tokens, address.Separator)
}
