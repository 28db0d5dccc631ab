package wire

import (
	"bytes"
	"io"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/cockroachdb/errors"
)

// ReadValue reads exactly one complete value from src and returns its encoded bytes.
// Only the bytes of that value are consumed, so consecutive calls walk a stream of
// concatenated values. This is the only place where decoding waits for a transport:
// once ReadValue returns, the value is decoded from memory.
//
// io.EOF is returned when src ends before the first byte of a value. A stream that
// ends inside a value yields a truncation error.
func ReadValue(src io.Reader) ([]byte, error) {
	var out bytes.Buffer
	var hdr [6]byte
	pending := 1

	for pending > 0 {
		if _, err := io.ReadFull(src, hdr[:1]); err != nil {
			if errors.Is(err, io.EOF) && out.Len() == 0 {
				return nil, io.EOF
			}
			return nil, truncatedStream(err, out.Len())
		}
		hl, err := headerLen(hdr[0])
		if err != nil {
			return nil, err
		}
		if hl > 1 {
			if _, err := io.ReadFull(src, hdr[1:hl]); err != nil {
				return nil, truncatedStream(err, out.Len())
			}
		}
		out.Write(hdr[:hl])

		payload, children := payloadAndChildren(hdr[:hl])
		if payload > 0 {
			// CopyN grows the buffer as data arrives, a bogus length cannot force a huge allocation
			if _, err := io.CopyN(&out, src, int64(payload)); err != nil {
				return nil, truncatedStream(err, out.Len())
			}
		}
		pending += children - 1
	}
	return out.Bytes(), nil
}

// truncatedStream marks a read failure inside a value as a truncation
func truncatedStream(err error, offset int) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Mark(errors.Wrapf(err, "dpack: stream ended inside a value at offset %d", offset), common.ErrTruncation)
	}
	return errors.Wrapf(err, "dpack: reading value at offset %d", offset)
}
