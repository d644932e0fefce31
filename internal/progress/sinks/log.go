package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/progress"
)

// LogSink emits structured logs for the progress stream. It is useful during
// development or audits where metrics alone are too coarse.
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
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("target", evt.Target),
		}
		if evt.Page > 0 {
			fields = append(fields,
				zap.Int("page", evt.Page),
				zap.Int("total_pages", evt.TotalPages),
			)
		}
		if evt.Business != "" {
			fields = append(fields,
				zap.String("business", evt.Business),
				zap.String("outcome", string(evt.Outcome)),
			)
		}
		if evt.Found > 0 || evt.Accepted > 0 {
			fields = append(fields,
				zap.Int64("found", evt.Found),
				zap.Int64("accepted", evt.Accepted),
			)
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
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
