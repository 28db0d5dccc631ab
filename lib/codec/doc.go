// Package codec puts the MessagePack serializers of lib/serialization behind a
// small codec interface shared with JSON and gob implementations, so the CLI and
// the benchmarks can switch formats by name.
//
// Key Components:
//
//   - ICodec: Core interface that all codec implementations must satisfy.
//
//   - msgPackCodecImpl: MessagePack through a serialization.Registry. Fast and
//     compact; supports polymorphism through type code bindings.
//
//   - jsonCodecImpl: JSON through json-iterator, useful for debugging and for
//     converting MessagePack data into something human readable.
//
//   - gobCodecImpl: Go's gob encoding, kept as a baseline for the benchmarks.
//
// Thread Safety:
//
//	All codecs are safe for concurrent use across multiple goroutines.
//
// Usage:
//
//	c, err := codec.ByName("msgpack", reg)
//	data, err := c.Encode(order)
//	var back Order
//	err = c.Decode(data, &back)
package codec
