// Package codec is the payload encoding shared by every tether agent.
//
// Payloads are MessagePack. JSON conversion exists for tools that show
// messages to people or read them from the command line.
package codec

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes v as MessagePack. Struct fields are keyed by their json
// tag so that values look the same on the wire and when printed.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("codec: encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes a MessagePack payload into v.
func Decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("codec: decode into %T: %w", v, err)
	}
	return nil
}

// ToJSON renders a MessagePack payload as JSON text. An empty payload renders
// as an empty string.
func ToJSON(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	var v any
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	dec.SetMapDecoder(func(d *msgpack.Decoder) (any, error) {
		return d.DecodeUntypedMap()
	})
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("codec: decode: %w", err)
	}

	out, err := json.Marshal(jsonSafe(v))
	if err != nil {
		return "", fmt.Errorf("codec: to json: %w", err)
	}
	return string(out), nil
}

// FromJSON converts JSON text into a MessagePack payload.
func FromJSON(text string) ([]byte, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("codec: parse json: %w", err)
	}
	return Encode(numbers(v))
}

// jsonSafe rewrites maps with non-string keys, which MessagePack allows and
// JSON does not.
func jsonSafe(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonSafe(val)
		}
		return out
	case map[string]any:
		for k, val := range t {
			t[k] = jsonSafe(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = jsonSafe(val)
		}
		return t
	default:
		return v
	}
}

// numbers turns json.Number values into int64 when they are integral, so that
// integers stay integers on the wire.
func numbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, val := range t {
			t[k] = numbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = numbers(val)
		}
		return t
	default:
		return v
	}
}
