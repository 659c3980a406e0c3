package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reading struct {
	Sensor string   `json:"sensor"`
	Value  float64  `json:"value"`
	Tags   []string `json:"tags,omitempty"`
}

func TestEncodeDecode(t *testing.T) {
	t.Run("struct uses json field names", func(t *testing.T) {
		data, err := Encode(reading{Sensor: "t1", Value: 21.5})
		require.NoError(t, err)

		text, err := ToJSON(data)
		require.NoError(t, err)
		assert.JSONEq(t, `{"sensor":"t1","value":21.5}`, text)

		var got reading
		require.NoError(t, Decode(data, &got))
		assert.Equal(t, reading{Sensor: "t1", Value: 21.5}, got)
	})

	t.Run("string is a msgpack fixstr", func(t *testing.T) {
		data, err := Encode("x")
		require.NoError(t, err)
		assert.Equal(t, []byte{0xa1, 'x'}, data)
	})

	t.Run("decode of garbage fails", func(t *testing.T) {
		var s string
		assert.Error(t, Decode([]byte{0xc1}, &s))
	})
}

func TestJSON(t *testing.T) {
	t.Run("empty payload", func(t *testing.T) {
		text, err := ToJSON(nil)
		require.NoError(t, err)
		assert.Empty(t, text)
	})

	t.Run("integers stay integers", func(t *testing.T) {
		data, err := FromJSON(`{"count": 3, "ratio": 0.5, "names": ["a", "b"], "ok": true}`)
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, Decode(data, &got))
		assert.EqualValues(t, 3, got["count"])
		assert.InDelta(t, 0.5, got["ratio"], 1e-9)
		assert.Equal(t, true, got["ok"])

		text, err := ToJSON(data)
		require.NoError(t, err)
		assert.JSONEq(t, `{"count": 3, "ratio": 0.5, "names": ["a", "b"], "ok": true}`, text)
	})

	t.Run("non string keys", func(t *testing.T) {
		data, err := Encode(map[int]string{1: "one"})
		require.NoError(t, err)
		text, err := ToJSON(data)
		require.NoError(t, err)
		assert.JSONEq(t, `{"1":"one"}`, text)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := FromJSON(`{`)
		assert.Error(t, err)
	})
}
