package inspect

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	w := wire.NewWriter(32)
	w.WriteMapHeader(1)
	w.WriteString("xs")
	w.WriteArrayHeader(2)
	w.WriteInt(-1)
	w.WriteNil()

	var out bytes.Buffer
	require.NoError(t, Dump(&out, w.Bytes()))
	assert.Equal(t, ""+
		"000000  map 1\n"+
		"000001    string \"xs\"\n"+
		"000004    array 2\n"+
		"000005      int -1\n"+
		"000006      nil\n", out.String())
}

func TestDumpExtension(t *testing.T) {
	payload := wire.NewWriter(8)
	payload.WriteArrayHeader(1)
	payload.WriteUint(7)
	w := wire.NewWriter(16)
	w.WriteExt(3, payload.Bytes())

	var out bytes.Buffer
	require.NoError(t, Dump(&out, w.Bytes()))
	assert.Equal(t, ""+
		"000000  ext 3, 2 bytes\n"+
		"000000    array 1\n"+
		"000001      uint 7\n", out.String())
}

func TestDumpTruncated(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, Dump(&out, []byte{0x92, 0x01}))
}

func TestDumpDepthLimit(t *testing.T) {
	var out bytes.Buffer
	err := Dump(&out, bytes.Repeat([]byte{0x91}, 1<<20))
	assert.True(t, common.IsFormatError(err), "%v", err)
}

func TestDecodeHex(t *testing.T) {
	b, err := decodeHex("93 01\n02 03")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x93, 0x01, 0x02, 0x03}, b)
}
