package notifier

import (
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// endSpan records the outcome of err on span, logs failures and ends the
// span. err is returned unchanged.
func endSpan(span trace.Span, err error, message string, logger *slog.Logger) error {
	defer span.End()

	if err != nil {
		logger.Error(message, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, message)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
