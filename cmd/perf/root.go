package perf

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dPack/cmd/util"
	"github.com/ValentinKolb/dPack/lib/codec"
	"github.com/ValentinKolb/dPack/lib/serialization"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the codecs",
		Long:    "Benchmark encoding and decoding of sample types with every codec, and the cost of building serializers.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}

	StatsCmd = &cobra.Command{
		Use:     "stats",
		Short:   "Build the serializers of the sample types and print the registry statistics",
		RunE:    runStats,
		PreRunE: processPerfConfig,
	}

	perfNumThreads = 10
	perfSkip       = make([]string, 0)
	perfCodecs     = codec.Names()
)

func init() {
	// add flags
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. encode-item,build)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "codecs"
	PerfCmd.Flags().String(key, strings.Join(codec.Names(), ","), util.WrapString("Codecs to benchmark (comma separated)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "metrics"
	StatsCmd.Flags().Bool(key, false, util.WrapString("Also print the registry metrics in Prometheus text format"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	if perfNumThreads < 1 {
		perfNumThreads = 1
	}
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	if s := viper.GetString("codecs"); s != "" {
		perfCodecs = strings.Split(s, ",")
	}
	return nil
}

// result is one finished benchmark
type result struct {
	name  string
	codec string
	res   testing.BenchmarkResult
	size  int
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dPack")

	// Print configuration
	conf := util.GetConfig()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	reg, err := util.GetRegistry(sampleTypes())
	if err != nil {
		return err
	}

	fmt.Println("starting tests...")
	var results []result

	item := sampleItem()
	for _, name := range perfCodecs {
		c, err := util.GetCodec(name, reg)
		if err != nil {
			return err
		}
		data, err := c.Encode(item)
		if err != nil {
			return errors.Wrapf(err, "encode sample item with %s", c.Name())
		}

		results = append(results, bench("encode-item", c.Name(), len(data), func() error {
			_, err := c.Encode(item)
			return err
		}))
		results = append(results, bench("decode-item", c.Name(), len(data), func() error {
			var out Item
			return c.Decode(data, &out)
		}))
	}

	// polymorphic positions are only supported by MessagePack
	order := sampleOrder()
	s, err := serialization.For[Order](reg)
	if err != nil {
		return err
	}
	data, err := s.Marshal(order)
	if err != nil {
		return err
	}
	results = append(results, bench("encode-order", "msgpack", len(data), func() error {
		_, err := s.Marshal(order)
		return err
	}))
	results = append(results, bench("decode-order", "msgpack", len(data), func() error {
		_, err := s.Unmarshal(data)
		return err
	}))
	results = append(results, bench("build", "msgpack", 0, func() error {
		_, err := serialization.NewRegistry(reg.Options()).Get(reflect.TypeFor[Order]())
		return err
	}))

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}
	return nil
}

// bench runs op in parallel and prints the result
func bench(test, codecName string, size int, op func() error) result {
	r := result{name: test, codec: codecName, size: size}
	if shouldSkip(test) {
		printResult(r)
		return r
	}

	r.res = testing.Benchmark(func(b *testing.B) {
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if err := op(); err != nil {
					b.Errorf("(%s/%s) - %v", codecName, test, err)
					return
				}
			}
		})
	})
	printResult(r)
	return r
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(r result) {
	label := fmt.Sprintf("%s/%s", r.codec, r.name)
	if r.res.NsPerOp() == 0 {
		fmt.Printf("%-24sskipped\n", label)
		return
	}

	nsPerOp := math.Max(float64(r.res.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-24s%.0fns/op (%s/op)\t%.0f ops/sec\t%d bytes\n", label, nsPerOp, time.Duration(nsPerOp), opsPerSec, r.size)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []result) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	conf := util.GetConfig()
	header := []string{
		"Test", "Codec", "NsPerOp", "DurationPerOp", "OpsPerSec", "Bytes", "Skipped",
		"EnumMethod", "ObjectMethod", "KeyTransform", "Threads",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, r := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if r.res.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(r.res.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			r.name,
			r.codec,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.Itoa(r.size),
			skipped,
			conf.EnumMethod,
			conf.ObjectMethod,
			conf.KeyTransform,
			strconv.Itoa(perfNumThreads),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", r.name, err)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Stats
// --------------------------------------------------------------------------

func runStats(cmd *cobra.Command, _ []string) error {
	reg, err := util.GetRegistry(sampleTypes())
	if err != nil {
		return err
	}
	for _, t := range []reflect.Type{reflect.TypeFor[Item](), reflect.TypeFor[Order](), reflect.TypeFor[[]Order]()} {
		if _, err := reg.Get(t); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, spec := range reg.Specifications() {
		strategy := "pending"
		if p, ok := reg.Cached(spec); ok {
			strategy = p.Strategy().String()
		}
		fmt.Fprintf(out, "%-60s %s\n", spec, strategy)
	}

	st := reg.Stats()
	fmt.Fprintf(out, "\nbuilds %d, hits %d, failures %d, entries %d\n", st.Builds, st.Hits, st.Failures, st.Entries)
	if viper.GetBool("metrics") {
		fmt.Fprintln(out)
		reg.WriteMetrics(out)
	}
	return nil
}
