// Package capabilities implements the four host capabilities a guest
// module is granted: log, sys, sync-request, and kv. Each capability
// is instantiated once per module and closed over that module's name,
// so a guest can never forge another module's identity no matter what
// string arguments it passes across the ABI boundary.
package capabilities

import "github.com/rs/zerolog"

// LogCapability implements the log.{trace,debug,info,warn,error}
// imports. Every line is tagged with the owning module's name, mirroring
// how module output was prefixed in the original host.
type LogCapability struct {
	module string
	logger zerolog.Logger
}

// NewLogCapability returns a log capability scoped to moduleName.
func NewLogCapability(moduleName string, logger zerolog.Logger) *LogCapability {
	return &LogCapability{module: moduleName, logger: logger.With().Str("module", moduleName).Logger()}
}

func (c *LogCapability) Trace(msg string) { c.logger.Trace().Msg(msg) }
func (c *LogCapability) Debug(msg string) { c.logger.Debug().Msg(msg) }
func (c *LogCapability) Info(msg string)  { c.logger.Info().Msg(msg) }
func (c *LogCapability) Warn(msg string)  { c.logger.Warn().Msg(msg) }
func (c *LogCapability) Error(msg string) { c.logger.Error().Msg(msg) }
