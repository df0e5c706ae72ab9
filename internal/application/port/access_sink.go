package port

import (
	"context"
	"time"
)

// AccessRecord is one served request, as delivered to access sinks.
type AccessRecord struct {
	RequestID  string        `json:"request_id"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Query      string        `json:"query,omitempty"`
	Status     int           `json:"status"`
	BytesSent  int64         `json:"bytes_sent"`
	Duration   time.Duration `json:"duration_ns"`
	RemoteAddr string        `json:"remote_addr"`
	Referer    string        `json:"referer,omitempty"`
	UserAgent  string        `json:"user_agent,omitempty"`
	Protocol   string        `json:"protocol"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// AccessSink receives access records. Implementations buffer
// internally; a failed delivery must never fail the request path.
type AccessSink interface {
	// Publish hands one record to the sink.
	Publish(ctx context.Context, record AccessRecord) error

	// Flush forces delivery of buffered records. Called on shutdown.
	Flush(ctx context.Context) error

	// Close releases the sink's resources.
	Close() error
}
