package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dreschagin/staticserve/internal/application/port"
)

type captureSink struct {
	mu      sync.Mutex
	records []port.AccessRecord
	flushes int
	closes  int
	err     error
}

func (s *captureSink) Publish(_ context.Context, record port.AccessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func (s *captureSink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *captureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestAccessRecorderDeliversToAllSinks(t *testing.T) {
	first := &captureSink{}
	second := &captureSink{}
	recorder := NewAccessRecorder([]port.AccessSink{first, second}, 16, nil, testLogger())
	go recorder.Run()

	recorder.Record(port.AccessRecord{Path: "/index.html", Status: 200})
	recorder.Record(port.AccessRecord{Path: "/app.js", Status: 200})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	recorder.Shutdown(ctx)

	if first.count() != 2 || second.count() != 2 {
		t.Fatalf("records delivered: first=%d second=%d, want 2 each", first.count(), second.count())
	}
	if first.flushes == 0 || first.closes == 0 {
		t.Error("sinks must be flushed and closed on shutdown")
	}
}

func TestAccessRecorderShutdownIsIdempotent(t *testing.T) {
	sink := &captureSink{}
	recorder := NewAccessRecorder([]port.AccessSink{sink}, 16, nil, testLogger())
	go recorder.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	recorder.Shutdown(ctx)
	recorder.Shutdown(ctx)

	if sink.flushes != 1 {
		t.Errorf("Flush calls = %d, want 1", sink.flushes)
	}
	if sink.closes != 1 {
		t.Errorf("Close calls = %d, want 1", sink.closes)
	}
}

func TestAccessRecorderDropsOnFullBuffer(t *testing.T) {
	var drops int
	recorder := NewAccessRecorder(nil, 1, func() { drops++ }, testLogger())
	// Run is intentionally not started: the buffer stays full.

	recorder.Record(port.AccessRecord{Path: "/a"})
	recorder.Record(port.AccessRecord{Path: "/b"})
	recorder.Record(port.AccessRecord{Path: "/c"})

	if recorder.Dropped() != 2 {
		t.Fatalf("Dropped() = %d, want 2", recorder.Dropped())
	}
	if drops != 2 {
		t.Fatalf("onDrop calls = %d, want 2", drops)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go recorder.Run()
	recorder.Shutdown(ctx)
}

func TestAccessRecorderSinkErrorDoesNotStopDelivery(t *testing.T) {
	failing := &captureSink{err: errors.New("broker down")}
	healthy := &captureSink{}
	recorder := NewAccessRecorder([]port.AccessSink{failing, healthy}, 16, nil, testLogger())
	go recorder.Run()

	recorder.Record(port.AccessRecord{Path: "/index.html"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	recorder.Shutdown(ctx)

	if healthy.count() != 1 {
		t.Fatalf("healthy sink records = %d, want 1", healthy.count())
	}
}
