package codec

// ICodec is the interface for all value codecs
type ICodec interface {
	// Name returns the name the codec is selected by ("msgpack", "json", "gob")
	Name() string
	// Encode serializes v into a byte array
	// It returns the serialized byte array and an error if any
	Encode(v any) ([]byte, error)
	// Decode deserializes a byte array into the value ptr points to
	// It returns an error if any
	Decode(b []byte, ptr any) error
}
