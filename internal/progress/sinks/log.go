package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/venueminer/venueminer/internal/progress"
)

// LogSink emits structured logs for the progress stream. It is the default
// sink for interactive runs, where tailing the log is the progress UI.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID.String()),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.VenueID != "" {
			fields = append(fields,
				zap.String("venue_id", evt.VenueID),
				zap.String("venue", evt.VenueName),
			)
		}
		if evt.Stage == progress.StageVenueDone {
			fields = append(fields,
				zap.String("variant", string(evt.Variant)),
				zap.Int("rooms", evt.Rooms),
				zap.String("outcome", string(evt.Outcome)),
				zap.Duration("dur", evt.Dur),
			)
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
