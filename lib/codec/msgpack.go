package codec

import "github.com/ValentinKolb/dPack/lib/serialization"

// NewMsgPackCodec creates a codec writing MessagePack with the serializers of reg.
// A nil reg uses the default registry.
func NewMsgPackCodec(reg *serialization.Registry) ICodec {
	if reg == nil {
		reg = serialization.DefaultRegistry()
	}
	return &msgPackCodecImpl{reg: reg}
}

// msgPackCodecImpl implements the ICodec interface on a serializer registry
type msgPackCodecImpl struct {
	reg *serialization.Registry
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (m *msgPackCodecImpl) Name() string { return "msgpack" }

func (m *msgPackCodecImpl) Encode(v any) ([]byte, error) {
	return m.reg.Marshal(v)
}

func (m *msgPackCodecImpl) Decode(b []byte, ptr any) error {
	return m.reg.Unmarshal(b, ptr)
}
