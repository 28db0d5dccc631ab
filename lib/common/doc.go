// Package common provides the pieces shared by all dPack packages: the error kinds
// surfaced by the serializer, the user facing configuration and the logger setup.
//
// Key Components:
//
//   - Errors: ErrConfiguration, ErrFormat, ErrTruncation and ErrUnknownExtension are
//     the four error kinds. Concrete errors are created with cockroachdb/errors and
//     marked with one of the kinds, so errors.Is works across any amount of wrapping.
//     TruncationError carries the index of the item at which the input ran out.
//
//   - Config: plain configuration values (enum method, object layout, key transform,
//     log level) that the CLI fills from flags, environment variables and .env files.
//
//   - Logger: dragonboat's logger facade backed by zap, so every package can hold a
//     package level logger created with logger.GetLogger before InitLoggers runs.
package common
