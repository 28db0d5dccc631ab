package codec

import (
	"bytes"
	"encoding/gob"

	"github.com/cockroachdb/errors"
)

// NewGOBCodec creates a new codec using Go's binary gob format. Values stored in
// interfaces must be registered with gob.Register.
func NewGOBCodec() ICodec {
	return &gobCodecImpl{}
}

// gobCodecImpl implements the ICodec interface using gob encoding
type gobCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (g gobCodecImpl) Name() string { return "gob" }

func (g gobCodecImpl) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "gob encode")
	}
	return buf.Bytes(), nil
}

func (g gobCodecImpl) Decode(b []byte, ptr any) error {
	dec := gob.NewDecoder(bytes.NewReader(b))
	return errors.Wrap(dec.Decode(ptr), "gob decode")
}
