// Package recording captures broker traffic into a JSON file and plays it back
// with the recorded timing.
//
// A recording is a JSON array of entries:
//
//	[
//	{"topic":"brush/colours/left","message":{"type":"Buffer","data":[129,161,114,204,255]},"deltaTime":0,"recordedAt":"2024-05-01T12:00:00.000Z"},
//	{"topic":"brush/colours/left","message":{"type":"Buffer","data":[]},"deltaTime":16,"recordedAt":"2024-05-01T12:00:00.016Z"}
//	]
//
// deltaTime is the number of milliseconds since the previous entry.
package recording

import (
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/go-openapi/strfmt"
)

// BufferType is the message type written for every entry.
const BufferType = "Buffer"

// Entry is one recorded message.
type Entry struct {
	Topic      string          `json:"topic"`
	Message    Message         `json:"message"`
	DeltaTime  uint64          `json:"deltaTime"`
	RecordedAt strfmt.DateTime `json:"recordedAt"`
}

// Message holds the raw payload of an entry.
type Message struct {
	Type string `json:"type"`
	Data Bytes  `json:"data"`
}

// Bytes is a payload that is written as an array of numbers instead of base64.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 2+len(b)*4)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var values []uint16
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("payload data: %w", err)
	}
	out := make(Bytes, len(values))
	for i, v := range values {
		if v > 0xff {
			return fmt.Errorf("payload data: value %d at index %d is not a byte", v, i)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// Load reads every entry of a recording.
func Load(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("recording: load: %w", err)
	}
	return entries, nil
}
