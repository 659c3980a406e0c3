// Package insights keeps running statistics about the traffic on a broker:
// which topics, roles, group ids and channels were seen, how the agents are
// organised, and what the most recent messages looked like.
package insights

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/deque"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/casualjim/tether/address"
	"github.com/casualjim/tether/codec"
)

const (
	// LogLength is the number of recent messages kept.
	LogLength = 256
	// EmptyMessage stands in for the payload of empty messages in the log.
	EmptyMessage = "[EMPTY_MESSAGE]"
	// Unknown stands in for a topic segment that is missing.
	Unknown = "unknown"
)

// LogEntry is a recent message with its payload rendered as JSON.
type LogEntry struct {
	Topic string
	JSON  string
}

// AgentTree groups the group ids and channels seen for one role.
type AgentTree struct {
	Role     string
	GroupIDs []string
	Channels []string
}

// Insights accumulates statistics from messages passed to Update. It is safe
// for concurrent use.
type Insights struct {
	mu       sync.Mutex
	topics   *orderedmap.OrderedMap[string, uint64]
	roles    *orderedmap.OrderedMap[string, uint64]
	groupIDs *orderedmap.OrderedMap[string, uint64]
	channels *orderedmap.OrderedMap[string, uint64]
	trees    []AgentTree
	count    uint64
	start    time.Time
	log      deque.Deque[LogEntry]
	sampler  *Sampler
	now      func() time.Time
}

// New creates empty insights whose sampler takes one sample per interval.
func New(samplerInterval time.Duration) *Insights {
	return newInsights(samplerInterval, time.Now)
}

func newInsights(samplerInterval time.Duration, now func() time.Time) *Insights {
	return &Insights{
		topics:   orderedmap.New[string, uint64](),
		roles:    orderedmap.New[string, uint64](),
		groupIDs: orderedmap.New[string, uint64](),
		channels: orderedmap.New[string, uint64](),
		sampler:  newSampler(samplerInterval, now),
		now:      now,
	}
}

// Update records one message. It reports whether a topic, role, group id or
// channel was seen for the first time.
func (in *Insights) Update(topic string, payload []byte) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.count++
	if in.start.IsZero() {
		in.start = in.now()
	}

	in.log.PushBack(LogEntry{Topic: topic, JSON: render(payload)})
	if in.log.Len() > LogLength {
		in.log.PopFront()
	}

	changed := count(in.topics, topic)
	changed = count(in.roles, part(address.RolePart, topic)) || changed
	changed = count(in.groupIDs, part(address.GroupIDPart, topic)) || changed
	changed = count(in.channels, part(address.ChannelNamePart, topic)) || changed

	if changed {
		in.trees = in.buildTrees()
	}
	return changed
}

func render(payload []byte) string {
	if len(payload) == 0 {
		return EmptyMessage
	}
	text, err := codec.ToJSON(payload)
	if err != nil {
		return fmt.Sprintf("[UNDECODABLE %d bytes]", len(payload))
	}
	return text
}

func part(fn func(string) (string, bool), topic string) string {
	if v, ok := fn(topic); ok && v != "" {
		return v
	}
	return Unknown
}

func count(m *orderedmap.OrderedMap[string, uint64], key string) bool {
	n, seen := m.Get(key)
	m.Set(key, n+1)
	return !seen
}

func keys(m *orderedmap.OrderedMap[string, uint64]) []string {
	out := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (in *Insights) buildTrees() []AgentTree {
	trees := make([]AgentTree, 0, in.roles.Len())
	for role := in.roles.Oldest(); role != nil; role = role.Next() {
		tree := AgentTree{Role: role.Key}
		seenGroups := make(map[string]struct{})
		seenChannels := make(map[string]struct{})
		for topic := in.topics.Oldest(); topic != nil; topic = topic.Next() {
			if r, _ := address.RolePart(topic.Key); r != role.Key {
				continue
			}
			if g, ok := address.GroupIDPart(topic.Key); ok {
				if _, dup := seenGroups[g]; !dup {
					seenGroups[g] = struct{}{}
					tree.GroupIDs = append(tree.GroupIDs, g)
				}
			}
			if c, ok := address.ChannelNamePart(topic.Key); ok {
				if _, dup := seenChannels[c]; !dup {
					seenChannels[c] = struct{}{}
					tree.Channels = append(tree.Channels, c)
				}
			}
		}
		trees = append(trees, tree)
	}
	return trees
}

// Sample feeds the current message count to the sampler.
func (in *Insights) Sample() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.sampler.Add(in.count)
}

// Deltas returns the messages per sampler interval, oldest first.
func (in *Insights) Deltas() []uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.sampler.Deltas()
}

// Topics returns the topics in the order they were first seen.
func (in *Insights) Topics() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return keys(in.topics)
}

func (in *Insights) Roles() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return keys(in.roles)
}

func (in *Insights) GroupIDs() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return keys(in.groupIDs)
}

func (in *Insights) Channels() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return keys(in.channels)
}

// TopicCount returns how many messages arrived on a topic.
func (in *Insights) TopicCount(topic string) uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	n, _ := in.topics.Get(topic)
	return n
}

func (in *Insights) Trees() []AgentTree {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]AgentTree(nil), in.trees...)
}

func (in *Insights) MessageCount() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.count
}

// Log returns the recent messages, oldest first.
func (in *Insights) Log() []LogEntry {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]LogEntry, in.log.Len())
	for i := range out {
		out[i] = in.log.At(i)
	}
	return out
}

// SinceStart returns the time since the first message.
func (in *Insights) SinceStart() (time.Duration, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.start.IsZero() {
		return 0, false
	}
	return in.now().Sub(in.start), true
}

// Rate returns messages per second since the first message.
func (in *Insights) Rate() (float64, bool) {
	elapsed, ok := in.SinceStart()
	if !ok || elapsed <= 0 {
		return 0, false
	}
	return float64(in.MessageCount()) / elapsed.Seconds(), true
}

// Markdown renders a report of everything seen so far. At most recent log
// entries are included.
func (in *Insights) Markdown(recent int) string {
	topics := in.Topics()
	roles := in.Roles()
	groups := in.GroupIDs()
	channels := in.Channels()
	trees := in.Trees()
	entries := in.Log()

	var b strings.Builder
	b.WriteString("# Insights\n\n")
	fmt.Fprintf(&b, "**%d messages**", in.MessageCount())
	if rate, ok := in.Rate(); ok {
		fmt.Fprintf(&b, " at %.2f msg/s", rate)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "## Topics (%d)\n\n", len(topics))
	for _, t := range topics {
		fmt.Fprintf(&b, "- `%s` x%d\n", t, in.TopicCount(t))
	}
	fmt.Fprintf(&b, "\n**Roles (%d):** %s\n\n", len(roles), strings.Join(roles, ", "))
	fmt.Fprintf(&b, "**Group IDs (%d):** %s\n\n", len(groups), strings.Join(groups, ", "))
	fmt.Fprintf(&b, "**Channels (%d):** %s\n\n", len(channels), strings.Join(channels, ", "))

	b.WriteString("## Agents\n\n")
	for _, tree := range trees {
		fmt.Fprintf(&b, "### %s\n\n", tree.Role)
		fmt.Fprintf(&b, "- groups: %s\n", listOrNone(tree.GroupIDs))
		fmt.Fprintf(&b, "- channels: %s\n\n", listOrNone(tree.Channels))
	}

	if recent > 0 && len(entries) > 0 {
		if len(entries) > recent {
			entries = entries[len(entries)-recent:]
		}
		b.WriteString("## Recent messages\n\n| topic | payload |\n|---|---|\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "| `%s` | `%s` |\n", e.Topic, strings.ReplaceAll(e.JSON, "|", `\|`))
		}
	}
	return b.String()
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
