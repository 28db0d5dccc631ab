package codec

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample is the message shape used by the round trip tests and benchmarks
type sample struct {
	Kind  string
	Key   string
	Value []byte
	TTL   uint64
	Ok    bool
	Tags  []string
	Meta  map[string]int
}

// testCodecs is a map of codec name to factory function
var testCodecs = map[string]func() ICodec{
	"MsgPack": func() ICodec { return NewMsgPackCodec(serialization.NewRegistry(serialization.Options{})) },
	"JSON":    NewJSONCodec,
	"GOB":     NewGOBCodec,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []sample {
	return []sample{
		// Basic message with just a kind
		{Kind: "success"},

		// Set request
		{Kind: "set", Key: "test-key", Value: []byte("test-value")},

		// Get response
		{Kind: "get", Key: "test-key", Value: []byte("test-value"), Ok: true},

		// Message with all fields filled
		{
			Kind:  "acquire",
			Key:   "test-lock-key",
			Value: []byte("test-lock-value"),
			TTL:   60,
			Ok:    true,
			Tags:  []string{"a", "b"},
			Meta:  map[string]int{"retries": 3},
		},
	}
}

// TestCodecRoundTrip tests that messages can be encoded and decoded correctly
func TestCodecRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()

			for i, msg := range messages {
				data, err := c.Encode(msg)
				if err != nil {
					t.Errorf("Failed to encode message %d: %v", i, err)
					continue
				}

				var result sample
				if err := c.Decode(data, &result); err != nil {
					t.Errorf("Failed to decode message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestCodecSizes logs the encoded size of every message per codec
func TestCodecSizes(t *testing.T) {
	msg := testMessages()[3]
	sizes := make(map[string]int)
	for name, factory := range testCodecs {
		data, err := factory().Encode(msg)
		require.NoError(t, err)
		sizes[name] = len(data)
		t.Logf("%-8s %4d bytes", name, len(data))
	}
	assert.Less(t, sizes["MsgPack"], sizes["JSON"])
	assert.Less(t, sizes["MsgPack"], sizes["GOB"])
}

func TestByName(t *testing.T) {
	assert.Equal(t, []string{"gob", "json", "msgpack"}, Names())

	c, err := ByName("json", nil)
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	_, err = ByName("xml", nil)
	assert.True(t, common.IsConfigurationError(err))
}

func TestConvert(t *testing.T) {
	msgpack := NewMsgPackCodec(serialization.NewRegistry(serialization.Options{}))
	json := NewJSONCodec()

	in := []byte(`{"a":1,"b":[true,"x",1.5],"c":null}`)
	packed, err := Convert(in, json, msgpack)
	require.NoError(t, err)

	var v any
	require.NoError(t, msgpack.Decode(packed, &v))
	assert.Equal(t, map[any]any{"a": int64(1), "b": []any{true, "x", 1.5}, "c": nil}, v)

	out, err := Convert(packed, msgpack, json)
	require.NoError(t, err)
	assert.JSONEq(t, string(in), string(out))
}

func TestJSONIntegerKeys(t *testing.T) {
	out, err := NewJSONCodec().Encode(map[any]any{int64(1): "one"})
	require.NoError(t, err)
	assert.Equal(t, `{"1":"one"}`, string(out))
}
