package inspect

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ValentinKolb/dPack/cmd/util"
	"github.com/ValentinKolb/dPack/lib/wire"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	InspectCmd = &cobra.Command{
		Use:   "inspect [hex]",
		Short: "Print the tokens of MessagePack data",
		Long: `Print the tokens of MessagePack data as an indented tree. The data is taken from the
argument (hex encoded), from --file or from stdin. Several concatenated values are
printed one after the other.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "file"
	InspectCmd.Flags().String(key, "", util.WrapString("Read the data from this file instead of stdin"))

	key = "hex"
	InspectCmd.Flags().Bool(key, false, util.WrapString("The file or stdin holds hex text instead of raw bytes"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	return util.BindCommandFlags(cmd)
}

func run(cmd *cobra.Command, args []string) error {
	data, err := readInput(args)
	if err != nil {
		return err
	}
	return Dump(cmd.OutOrStdout(), data)
}

// readInput returns the bytes to inspect
func readInput(args []string) ([]byte, error) {
	if len(args) == 1 {
		return decodeHex(args[0])
	}

	var raw []byte
	var err error
	if path := viper.GetString("file"); path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read input")
	}
	if viper.GetBool("hex") {
		return decodeHex(string(raw))
	}
	return raw, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	b, err := hex.DecodeString(s)
	return b, errors.Wrap(err, "decode hex")
}

// --------------------------------------------------------------------------
// Token dump
// --------------------------------------------------------------------------

// Dump writes the tokens of every value in data to w. Input nested deeper than
// wire.DefaultMaxDepth is rejected.
func Dump(w io.Writer, data []byte) error {
	return dumpAll(w, wire.NewReader(data))
}

func dumpAll(w io.Writer, r *wire.Reader) error {
	for !r.Exhausted() {
		if err := dumpValue(w, r, 0); err != nil {
			return err
		}
	}
	return nil
}

func dumpValue(w io.Writer, r *wire.Reader, depth int) error {
	indent := strings.Repeat("  ", depth)
	offset := r.Offset()
	k, err := r.PeekKind()
	if err != nil {
		return err
	}

	line := func(format string, args ...any) {
		fmt.Fprintf(w, "%06x  %s%s\n", offset, indent, fmt.Sprintf(format, args...))
	}

	switch k {
	case wire.KindNil:
		line("nil")
		return r.ReadNil()
	case wire.KindBool:
		v, err := r.ReadBool()
		line("bool %t", v)
		return err
	case wire.KindInt:
		v, err := r.ReadInt()
		line("int %d", v)
		return err
	case wire.KindUint:
		v, err := r.ReadUint()
		line("uint %d", v)
		return err
	case wire.KindFloat32, wire.KindFloat64:
		v, err := r.ReadFloat()
		line("%s %g", k, v)
		return err
	case wire.KindString:
		v, err := r.ReadString()
		line("string %q", v)
		return err
	case wire.KindBinary:
		v, err := r.ReadBinary()
		line("binary %d bytes %x", len(v), v)
		return err

	case wire.KindArray:
		n, err := r.ReadArrayHeader()
		if err != nil {
			return err
		}
		line("array %d", n)
		if err := r.Enter(); err != nil {
			return err
		}
		defer r.Leave()
		for i := 0; i < n; i++ {
			if err := dumpValue(w, r, depth+1); err != nil {
				return err
			}
		}
		return nil

	case wire.KindMap:
		n, err := r.ReadMapHeader()
		if err != nil {
			return err
		}
		line("map %d", n)
		if err := r.Enter(); err != nil {
			return err
		}
		defer r.Leave()
		for i := 0; i < 2*n; i++ {
			if err := dumpValue(w, r, depth+1); err != nil {
				return err
			}
		}
		return nil

	case wire.KindExt:
		code, err := r.PeekExtCode()
		if err != nil {
			return err
		}
		if code == wire.TimestampCode {
			ts, err := r.ReadTime()
			line("timestamp %s", ts.Format("2006-01-02T15:04:05.999999999Z07:00"))
			return err
		}
		code, payload, err := r.ReadExt()
		if err != nil {
			return err
		}
		line("ext %d, %d bytes", code, len(payload))
		// polymorphic frames carry a complete value
		if code >= 0 && isValue(payload) {
			fr := r.Frame(payload)
			if err := fr.Enter(); err != nil {
				return err
			}
			defer fr.Leave()
			return dumpAll(prefixed{w: w, prefix: indent + "  "}, fr)
		}
		return nil
	}
	return errors.Newf("invalid token at offset %d", offset)
}

// isValue reports whether payload holds exactly one complete value
func isValue(payload []byte) bool {
	n, err := wire.ValueLength(payload)
	return err == nil && n == len(payload)
}

// prefixed indents every line written to it
type prefixed struct {
	w      io.Writer
	prefix string
}

func (p prefixed) Write(b []byte) (int, error) {
	// lines start with the six digit offset, the indent goes after it
	lines := strings.SplitAfter(string(b), "\n")
	var sb strings.Builder
	for _, l := range lines {
		if len(l) > 8 {
			sb.WriteString(l[:8] + p.prefix + l[8:])
		} else {
			sb.WriteString(l)
		}
	}
	if _, err := io.WriteString(p.w, sb.String()); err != nil {
		return 0, err
	}
	return len(b), nil
}
