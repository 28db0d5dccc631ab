package serialization

import (
	"bufio"
	"context"
	"io"
	"reflect"

	"github.com/ValentinKolb/dPack/lib/wire"
	"github.com/cockroachdb/errors"
)

// Encoder writes a sequence of values to a stream. Values are written back to back
// without framing, since every MessagePack value is self delimiting.
type Encoder struct {
	reg *Registry
	dst io.Writer
	w   *wire.Writer
}

// NewEncoder creates an encoder using the serializers of reg
func NewEncoder(reg *Registry, dst io.Writer) *Encoder {
	return &Encoder{reg: reg, dst: dst, w: wire.NewWriter(256)}
}

// Encode writes v. It returns ctx.Err() without writing when ctx is done.
func (e *Encoder) Encode(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.w.Reset()
	if t := reflect.TypeOf(v); t == nil {
		e.w.WriteNil()
	} else {
		p, err := e.reg.Get(t)
		if err != nil {
			return err
		}
		if err := p.Pack(e.w, reflect.ValueOf(v)); err != nil {
			return err
		}
	}
	_, err := e.w.WriteTo(e.dst)
	return errors.Wrap(err, "write value")
}

// Decoder reads a sequence of values from a stream
type Decoder struct {
	reg *Registry
	src *bufio.Reader
}

// NewDecoder creates a decoder using the serializers of reg
func NewDecoder(reg *Registry, src io.Reader) *Decoder {
	return &Decoder{reg: reg, src: bufio.NewReader(src)}
}

// Decode reads the next value into the value ptr points to. At the end of the
// stream it returns io.EOF; a stream ending inside a value is a truncation error.
func (d *Decoder) Decode(ctx context.Context, ptr any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := d.Raw()
	if err != nil {
		return err
	}
	return d.reg.Unmarshal(raw, ptr)
}

// Raw returns the encoded bytes of the next value
func (d *Decoder) Raw() ([]byte, error) {
	return wire.ReadValue(d.src)
}
