package upstream

import (
	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/rs/zerolog"
)

// LogSink writes every envelope to the log. Used when no broker is configured.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(env models.Envelope) error {
	s.logger.Info().
		Str("peripheral", env.Peripheral).
		Str("role", env.Role).
		Uint8("seq", env.Seq).
		Hex("frame", env.Frame).
		Msg("relayed frame")
	return nil
}

func (s *LogSink) Close() error { return nil }
