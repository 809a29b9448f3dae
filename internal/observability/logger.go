package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component returns a child of the global logger tagged with the
// subsystem name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}
