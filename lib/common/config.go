package common

import (
	"fmt"
	"sort"
	"strings"
)

// --------------------------------------------------------------------------
// Serialization configuration struct
// --------------------------------------------------------------------------

// Config holds the user facing configuration of a serializer registry. It only uses
// plain values so it can be filled from flags, environment variables or .env files.
// lib/serialization converts it into its typed Options.
type Config struct {
	// EnumMethod selects how enum-like types are written: "name" or "value"
	EnumMethod string

	// ObjectMethod selects the layout of structs: "array" (positional) or "map" (keyed by member name)
	ObjectMethod string

	// KeyTransform names the transformation applied to member names in map layout:
	// "none" or "lower-camel"
	KeyTransform string

	// KnownTypes lists the type names registered for use in `dpack` struct tags
	KnownTypes []string

	// MaxDepth bounds the nesting of decoded input, 0 for the default
	MaxDepth int

	// Logging configuration
	LogLevel string
}

// DefaultConfig returns the configuration used when nothing else is given
func DefaultConfig() Config {
	return Config{
		EnumMethod:   "name",
		ObjectMethod: "array",
		KeyTransform: "none",
		LogLevel:     "info",
	}
}

// Validate checks all enumerated settings
func (c *Config) Validate() error {
	check := func(name, value string, allowed ...string) error {
		for _, a := range allowed {
			if strings.EqualFold(value, a) {
				return nil
			}
		}
		return NewConfigurationError("invalid %s %q. must be one of %s", name, value, strings.Join(allowed, ", "))
	}
	if err := check("enum method", c.EnumMethod, "name", "value"); err != nil {
		return err
	}
	if err := check("object method", c.ObjectMethod, "array", "map"); err != nil {
		return err
	}
	if err := check("key transform", c.KeyTransform, "none", "lower-camel"); err != nil {
		return err
	}
	if c.MaxDepth < 0 {
		return NewConfigurationError("invalid max depth %d. must not be negative", c.MaxDepth)
	}
	return check("log level", c.LogLevel, "debug", "info", "warn", "warning", "error")
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Serialization settings
	addSection("Serialization")
	addField("Enum Method", c.EnumMethod)
	addField("Object Method", c.ObjectMethod)
	addField("Key Transform", c.KeyTransform)
	addField("Max Depth", maxDepthString(c.MaxDepth))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if len(c.KnownTypes) > 0 {
		addSection("Known Types")

		// Sort for consistent output
		names := append([]string(nil), c.KnownTypes...)
		sort.Strings(names)
		for i, name := range names {
			addField(fmt.Sprintf("%d", i), name)
		}
	}
	return sb.String()
}

func maxDepthString(n int) string {
	if n == 0 {
		return "default"
	}
	return fmt.Sprintf("%d", n)
}
