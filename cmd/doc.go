// Package cmd implements the command-line interface of dPack. The commands work on
// MessagePack data with the serializers of lib/serialization.
//
// The package is organized into several subpackages:
//
//   - inspect: Dump the tokens of MessagePack data as an indented tree
//   - convert: Convert untyped data between MessagePack and JSON
//   - perf: Benchmark the codecs on sample types and print registry statistics
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dpack -help for a list of all commands.
package cmd
