// Package wire implements the byte level contract of dPack: the MessagePack format.
//
// It knows nothing about Go types. Writer appends tokens (nil, bool, integers,
// floats, strings, binaries, array and map headers, extension frames) always
// choosing the smallest encoding that fits; Reader decodes them and accepts every
// width of every header.
//
// Decoding an array or map header only yields the declared count. Checking that
// the input really holds that many items is left to the caller: a reader that is
// exhausted before the last item means the input was truncated at that item. The
// caller also brackets every nested level with Enter and Leave, which bounds the
// nesting depth of untrusted input. Subtree returns a Reader bounded to exactly the
// next value, for callers that hand a value to code that must not see its siblings.
//
// Extension frames carry a signed 8 bit type code. The negative codes belong to
// the MessagePack specification (-1 is the timestamp); dPack uses codes 0 to 127
// for polymorphism bindings.
//
// ReadValue reads one complete value from an io.Reader, which lets the stream
// decoder of lib/serialization wait for the transport only between values.
package wire
