package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dPack/cmd/convert"
	"github.com/ValentinKolb/dPack/cmd/inspect"
	"github.com/ValentinKolb/dPack/cmd/perf"
	"github.com/ValentinKolb/dPack/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dpack",
		Short: "MessagePack serialization toolkit",
		Long: fmt.Sprintf(`dPack (v%s)

A MessagePack serialization engine for Go. It builds and caches
serializers for Go types, including polymorphic positions bound
to type codes. The CLI inspects, converts and benchmarks data.

Settings can be given as flags or as DPACK_<FLAG> environment
variables (e.g. DPACK_OBJECT_METHOD=map), also from .env files.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dPack",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dPack v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(inspect.InspectCmd)
	RootCmd.AddCommand(convert.ConvertCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(perf.StatsCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupSerializationFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
