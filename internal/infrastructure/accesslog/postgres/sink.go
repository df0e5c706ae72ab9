package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// Expected table:
//
//	CREATE TABLE access_log (
//	    id           UUID PRIMARY KEY,
//	    request_id   TEXT NOT NULL,
//	    method       TEXT NOT NULL,
//	    path         TEXT NOT NULL,
//	    query        TEXT NOT NULL DEFAULT '',
//	    status       INT NOT NULL,
//	    bytes_sent   BIGINT NOT NULL,
//	    duration_ms  DOUBLE PRECISION NOT NULL,
//	    remote_addr  TEXT NOT NULL,
//	    referer      TEXT NOT NULL DEFAULT '',
//	    user_agent   TEXT NOT NULL DEFAULT '',
//	    protocol     TEXT NOT NULL,
//	    occurred_at  TIMESTAMPTZ NOT NULL
//	);

type SinkConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// Sink persists access records to PostgreSQL in batched transactions.
type Sink struct {
	db        *sql.DB
	batchSize int

	mu     sync.Mutex
	buffer []port.AccessRecord

	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	logger      *logger.Logger
}

// NewSink wraps an open database handle. The sink does not own the
// handle and will not close it.
func NewSink(db *sql.DB, cfg SinkConfig, log *logger.Logger) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	s := &Sink{
		db:          db,
		batchSize:   cfg.BatchSize,
		buffer:      make([]port.AccessRecord, 0, cfg.BatchSize),
		flushTicker: time.NewTicker(cfg.FlushInterval),
		stopCh:      make(chan struct{}),
		logger:      log,
	}

	s.wg.Add(1)
	go s.flushLoop()

	return s
}

// Publish buffers one record; a full buffer flushes inline.
func (s *Sink) Publish(ctx context.Context, record port.AccessRecord) error {
	s.mu.Lock()
	s.buffer = append(s.buffer, record)
	full := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered records in a single transaction.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.buffer
	s.buffer = make([]port.AccessRecord, 0, s.batchSize)
	s.mu.Unlock()

	return s.saveBatch(ctx, batch)
}

// Close stops the background flusher. Flush first to avoid losing the
// tail; the database handle stays open for its owner.
func (s *Sink) Close() error {
	close(s.stopCh)
	s.flushTicker.Stop()
	s.wg.Wait()
	return nil
}

func (s *Sink) saveBatch(ctx context.Context, records []port.AccessRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO access_log (id, request_id, method, path, query, status, bytes_sent, duration_ms, remote_addr, referer, user_agent, protocol, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		_, err = stmt.ExecContext(ctx,
			uuid.NewString(),
			record.RequestID,
			record.Method,
			record.Path,
			record.Query,
			record.Status,
			record.BytesSent,
			float64(record.Duration)/float64(time.Millisecond),
			record.RemoteAddr,
			record.Referer,
			record.UserAgent,
			record.Protocol,
			record.OccurredAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert access record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("Access log batch persisted", "records", len(records))
	return nil
}

func (s *Sink) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("Access log periodic flush failed", "error", err.Error())
			}
			cancel()
		case <-s.stopCh:
			return
		}
	}
}
