package util

import (
	"strings"

	"github.com/ValentinKolb/dPack/lib/codec"
	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/schema"
	"github.com/ValentinKolb/dPack/lib/serialization"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupSerializationFlags adds the serializer configuration flags to a command
func SetupSerializationFlags(cmd *cobra.Command) {
	def := common.DefaultConfig()

	key := "enum-method"
	cmd.PersistentFlags().String(key, def.EnumMethod, WrapString("How enum-like types are written (name, value)"))

	key = "object-method"
	cmd.PersistentFlags().String(key, def.ObjectMethod, WrapString("How structs are written: positional arrays or maps keyed by member name (array, map)"))

	key = "key-transform"
	cmd.PersistentFlags().String(key, def.KeyTransform, WrapString("Transformation of member names in map layout (none, lower-camel)"))

	key = "max-depth"
	cmd.PersistentFlags().Int(key, def.MaxDepth, WrapString("Maximum nesting depth of decoded input (0 for the default of 512)"))

	key = "known-types"
	cmd.PersistentFlags().String(key, "", WrapString("Comma-separated list of type names that must be registered for polymorphism tags"))

	key = "log-level"
	cmd.PersistentFlags().String(key, def.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads .env files and sets up viper to read DPACK_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dpack")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetConfig reads the serializer configuration from viper
func GetConfig() common.Config {
	conf := common.Config{
		EnumMethod:   viper.GetString("enum-method"),
		ObjectMethod: viper.GetString("object-method"),
		KeyTransform: viper.GetString("key-transform"),
		MaxDepth:     viper.GetInt("max-depth"),
		LogLevel:     viper.GetString("log-level"),
	}
	for _, name := range strings.Split(viper.GetString("known-types"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			conf.KnownTypes = append(conf.KnownTypes, name)
		}
	}
	return conf
}

// GetRegistry creates a serializer registry from the configuration. Type names used
// in tags are resolved in table, which may be nil when no type declares polymorphism.
func GetRegistry(table *schema.TypeTable) (*serialization.Registry, error) {
	if table == nil {
		table = schema.NewTypeTable()
	}
	opts, err := serialization.OptionsFromConfig(GetConfig(), table)
	if err != nil {
		return nil, err
	}
	return serialization.NewRegistry(opts), nil
}

// GetCodec creates the codec called name, using reg for MessagePack
func GetCodec(name string, reg *serialization.Registry) (codec.ICodec, error) {
	return codec.ByName(strings.ToLower(name), reg)
}

// BindCommandFlags binds a command's flags to viper and applies the log level
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return common.InitLoggers(viper.GetString("log-level"))
}
