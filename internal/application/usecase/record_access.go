package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// AccessRecorder fans access records out to all configured sinks
// through a bounded buffer. The request path never blocks on a slow
// sink: when the buffer is full the record is dropped and counted.
type AccessRecorder struct {
	sinks   []port.AccessSink
	records chan port.AccessRecord
	onDrop  func()
	logger  *logger.Logger

	dropped   atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
}

func NewAccessRecorder(sinks []port.AccessSink, bufferSize int, onDrop func(), log *logger.Logger) *AccessRecorder {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &AccessRecorder{
		sinks:   sinks,
		records: make(chan port.AccessRecord, bufferSize),
		onDrop:  onDrop,
		logger:  log,
		done:    make(chan struct{}),
	}
}

// Run consumes the buffer and delivers to sinks. Must run in its own
// goroutine; returns after Shutdown closes the buffer.
func (r *AccessRecorder) Run() {
	defer close(r.done)
	for record := range r.records {
		for _, sink := range r.sinks {
			if err := sink.Publish(context.Background(), record); err != nil {
				r.logger.Warn("Access sink publish failed", "error", err.Error())
			}
		}
	}
}

// Record enqueues one access record without blocking.
func (r *AccessRecorder) Record(record port.AccessRecord) {
	select {
	case r.records <- record:
	default:
		r.dropped.Add(1)
		if r.onDrop != nil {
			r.onDrop()
		}
	}
}

// Dropped returns how many records were discarded on a full buffer.
func (r *AccessRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Shutdown drains the buffer, flushes every sink and closes them.
// Idempotent: only the first call does the work, so sinks are flushed
// and closed exactly once.
func (r *AccessRecorder) Shutdown(ctx context.Context) {
	r.closeOnce.Do(func() {
		close(r.records)

		select {
		case <-r.done:
		case <-ctx.Done():
			r.logger.Warn("Access recorder drain timed out")
		}

		for _, sink := range r.sinks {
			if err := sink.Flush(ctx); err != nil {
				r.logger.Warn("Access sink flush failed", "error", err.Error())
			}
			if err := sink.Close(); err != nil {
				r.logger.Warn("Access sink close failed", "error", err.Error())
			}
		}
	})
}
