package log

import (
	"github.com/panjf2000/gnet/v2/pkg/logging"
	"github.com/rs/zerolog"
)

// gnetLogger routes gnet's internal logging through zerolog so the event loop
// engine does not bring up its own logger.
type gnetLogger struct {
	l zerolog.Logger
}

// NewGnetLogger adapts l to gnet's logging.Logger.
func NewGnetLogger(l zerolog.Logger) logging.Logger {
	return gnetLogger{l: l.With().Str("Component", "gnet").Logger()}
}

func (g gnetLogger) Debugf(format string, args ...any) { g.l.Debug().Msgf(format, args...) }
func (g gnetLogger) Infof(format string, args ...any)  { g.l.Info().Msgf(format, args...) }
func (g gnetLogger) Warnf(format string, args ...any)  { g.l.Warn().Msgf(format, args...) }
func (g gnetLogger) Errorf(format string, args ...any) { g.l.Error().Msgf(format, args...) }
func (g gnetLogger) Fatalf(format string, args ...any) { g.l.Fatal().Msgf(format, args...) }
