package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type recordingSpan struct {
	trace.Span

	code  codes.Code
	desc  string
	errs  []error
	ended  int
}

func newRecordingSpan() *recordingSpan {
	return &recordingSpan{Span: trace.SpanFromContext(context.Background())}
}

func (s *recordingSpan) SetStatus(code codes.Code, description string) {
	s.code = code
	s.desc = description
}

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) End(...trace.SpanEndOption) {
	s.ended++
}

func TestEndSpan(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	span := newRecordingSpan()
	assert.NoError(t, endSpan(span, nil, "failed to fetch listener stats", logger))
	assert.Equal(t, codes.Ok, span.code)
	assert.Empty(t, span.errs)
	assert.Equal(t, 1, span.ended)

	fetchErr := errors.New("status unavailable")
	span = newRecordingSpan()
	err := endSpan(span, fetchErr, "failed to fetch listener stats", logger)
	assert.Same(t, fetchErr, err)
	assert.Equal(t, codes.Error, span.code)
	assert.Equal(t, "failed to fetch listener stats", span.desc)
	assert.Equal(t, []error{fetchErr}, span.errs)
	assert.Equal(t, 1, span.ended)
}
