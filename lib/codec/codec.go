package codec

import (
	"sort"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/serialization"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("codec")

// factories creates the codecs selectable by name
var factories = map[string]func(reg *serialization.Registry) ICodec{
	"msgpack": NewMsgPackCodec,
	"json":    func(*serialization.Registry) ICodec { return NewJSONCodec() },
	"gob":     func(*serialization.Registry) ICodec { return NewGOBCodec() },
}

// Names lists the available codecs
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName returns the codec called name. The msgpack codec uses reg.
func ByName(name string, reg *serialization.Registry) (ICodec, error) {
	f, ok := factories[name]
	if !ok {
		return nil, common.NewConfigurationError("unknown codec %q. must be one of %v", name, Names())
	}
	return f(reg), nil
}

// Convert decodes b with from into an untyped value and encodes that value with to
func Convert(b []byte, from, to ICodec) ([]byte, error) {
	var v any
	if err := from.Decode(b, &v); err != nil {
		return nil, err
	}
	Logger.Debugf("converting %T from %s to %s", v, from.Name(), to.Name())
	return to.Encode(v)
}
