package tether

import "github.com/casualjim/tether/address"

// Message is an incoming publish as queued by the dispatch goroutine.
type Message struct {
	// Address is parsed from the topic; topics that do not follow the
	// role/channel convention arrive as custom addresses.
	Address address.Address
	Payload []byte
}

// Topic returns the topic the message arrived on.
func (m Message) Topic() string {
	return m.Address.Topic()
}

// IsEmpty reports whether the message carries no payload.
func (m Message) IsEmpty() bool {
	return len(m.Payload) == 0
}
