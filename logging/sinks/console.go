package sinks

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"netcode-csp/logging"
)

// Console renders events as human readable lines through zerolog.
type Console struct {
	logger zerolog.Logger
}

func NewConsole(w io.Writer, cfg logging.ConsoleConfig) *Console {
	out := zerolog.ConsoleWriter{Out: w, NoColor: !cfg.UseColor, TimeFormat: "15:04:05.000"}
	return &Console{logger: zerolog.New(out)}
}

func (s *Console) Write(event logging.Event) error {
	e := s.logger.WithLevel(level(event.Severity)).
		Time(zerolog.TimestampFieldName, event.Time).
		Uint64("tick", event.Tick).
		Str("subject", formatSubject(event.Subject))
	if event.Category != "" {
		e = e.Str("category", event.Category)
	}
	if event.Payload != nil {
		e = e.Interface("payload", event.Payload)
	}
	if len(event.Extra) > 0 {
		e = e.Fields(event.Extra)
	}
	e.Msg(string(event.Type))
	return nil
}

func (s *Console) Close(context.Context) error {
	return nil
}

func level(sev logging.Severity) zerolog.Level {
	switch sev {
	case logging.SeverityDebug:
		return zerolog.DebugLevel
	case logging.SeverityWarn:
		return zerolog.WarnLevel
	case logging.SeverityError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func formatSubject(ref logging.SubjectRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return string(ref.Kind) + ":" + ref.ID
}
