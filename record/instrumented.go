package record

import (
	"context"

	"github.com/fazildgr8/stretch-ai/metrics"
	"github.com/fazildgr8/stretch-ai/types"
)

// InstrumentedSink wraps a Sink and counts appends on the metrics
// collector, one success or failure increment per call.
type InstrumentedSink struct {
	inner     Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// Append delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) Append(ctx context.Context, frame types.Frame) error {
	err := s.inner.Append(ctx, frame)
	if err != nil {
		s.collector.IncRecordWriteFailure()
	} else {
		s.collector.IncRecordWriteSuccess()
	}
	return err
}

// Flush delegates to the inner sink.
func (s *InstrumentedSink) Flush(ctx context.Context) error {
	return s.inner.Flush(ctx)
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

// Verify InstrumentedSink implements Sink.
var _ Sink = (*InstrumentedSink)(nil)
