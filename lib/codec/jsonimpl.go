package codec

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

// jsonAPI sorts map keys so the output is stable, and keeps numbers decoded into
// `any` as numbers instead of float64
var jsonAPI = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// NewJSONCodec creates a new codec using json encoding
func NewJSONCodec() ICodec {
	return &jsonCodecImpl{}
}

// jsonCodecImpl implements the ICodec interface using json-iterator
type jsonCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (j jsonCodecImpl) Name() string { return "json" }

func (j jsonCodecImpl) Encode(v any) ([]byte, error) {
	b, err := jsonAPI.Marshal(toJSON(v))
	return b, errors.Wrap(err, "json encode")
}

func (j jsonCodecImpl) Decode(b []byte, ptr any) error {
	if err := jsonAPI.Unmarshal(b, ptr); err != nil {
		return errors.Wrap(err, "json decode")
	}
	if p, ok := ptr.(*any); ok {
		*p = fromJSON(*p)
	}
	return nil
}

// --------------------------------------------------------------------------
// Untyped value conversion
// --------------------------------------------------------------------------

// toJSON rewrites the untyped maps produced by MessagePack decoding, whose keys
// may be of any type, into maps with string keys
func toJSON(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[keyString(k)] = toJSON(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = toJSON(val)
		}
		return out
	}
	return v
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

// number is implemented by the number type json-iterator decodes into `any`
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

// fromJSON turns decoded numbers into int64 when they are integral and float64
// otherwise, and all JSON objects into map[string]any
func fromJSON(v any) any {
	switch x := v.(type) {
	case number:
		if i, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, val := range x {
			x[k] = fromJSON(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = fromJSON(val)
		}
		return x
	}
	return v
}
