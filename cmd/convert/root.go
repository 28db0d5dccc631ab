package convert

import (
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/ValentinKolb/dPack/cmd/util"
	"github.com/ValentinKolb/dPack/lib/codec"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ConvertCmd = &cobra.Command{
		Use:   "convert",
		Short: "Convert untyped data between codecs",
		Long: `Convert data between MessagePack and JSON (or gob for simple values). The input is
decoded into untyped Go values (maps, slices and scalars) and encoded again with the
target codec, e.g.

  echo '{"a":[1,2]}' | dpack convert --from json --to msgpack --hex`,
		Args:    cobra.NoArgs,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "from"
	ConvertCmd.Flags().String(key, "json", util.WrapString("Codec of the input (msgpack, json, gob)"))

	key = "to"
	ConvertCmd.Flags().String(key, "msgpack", util.WrapString("Codec of the output (msgpack, json, gob)"))

	key = "in"
	ConvertCmd.Flags().String(key, "", util.WrapString("Read the input from this file instead of stdin"))

	key = "out"
	ConvertCmd.Flags().String(key, "", util.WrapString("Write the output to this file instead of stdout"))

	key = "hex"
	ConvertCmd.Flags().Bool(key, false, util.WrapString("Binary input and output is hex text"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	return util.BindCommandFlags(cmd)
}

func run(cmd *cobra.Command, _ []string) error {
	reg, err := util.GetRegistry(nil)
	if err != nil {
		return err
	}
	from, err := util.GetCodec(viper.GetString("from"), reg)
	if err != nil {
		return err
	}
	to, err := util.GetCodec(viper.GetString("to"), reg)
	if err != nil {
		return err
	}

	in, err := readInput(viper.GetString("in"))
	if err != nil {
		return err
	}
	useHex := viper.GetBool("hex")
	if useHex && from.Name() != "json" {
		if in, err = hex.DecodeString(strings.Join(strings.Fields(string(in)), "")); err != nil {
			return errors.Wrap(err, "decode hex input")
		}
	}

	out, err := codec.Convert(in, from, to)
	if err != nil {
		return err
	}
	if useHex && to.Name() != "json" {
		out = []byte(hex.EncodeToString(out))
	}
	if to.Name() == "json" || useHex {
		out = append(out, '\n')
	}
	return writeOutput(cmd.OutOrStdout(), viper.GetString("out"), out)
}

func readInput(path string) ([]byte, error) {
	var b []byte
	var err error
	if path != "" {
		b, err = os.ReadFile(path)
	} else {
		b, err = io.ReadAll(os.Stdin)
	}
	return b, errors.Wrap(err, "read input")
}

func writeOutput(stdout io.Writer, path string, b []byte) error {
	if path != "" {
		return errors.Wrap(os.WriteFile(path, b, 0o644), "write output")
	}
	_, err := stdout.Write(b)
	return err
}
