// Package sse implements the server-sent events push channel: a writer that
// frames named events onto an HTTP response and a reader that parses them
// back out of a byte stream.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ErrChannelClosed is returned by Send once the client is gone. A closed
// writer never reopens.
var ErrChannelClosed = errors.New("sse: channel closed")

const heartbeatFrame = ": heartbeat\n\n"

// Writer writes SSE frames to a single HTTP response. Send and the
// heartbeat loop are serialized, so frames never interleave.
type Writer struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewWriter sets the event-stream headers, commits the response and starts
// a heartbeat every interval. A zero interval disables heartbeats.
func NewWriter(w http.ResponseWriter, interval time.Duration, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("sse: response does not support flushing: %w", err)
	}
	// Streams outlive the server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Debug("sse: clear write deadline", "error", err)
	}

	sw := &Writer{
		w:      w,
		rc:     rc,
		logger: logger,
		done:   make(chan struct{}),
	}
	if interval > 0 {
		go sw.heartbeat(interval)
	}
	return sw, nil
}

// Send encodes payload as JSON and writes it as one frame named event.
// Any write or flush failure closes the writer and returns ErrChannelClosed.
func (s *Writer) Send(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		s.markClosed()
		return fmt.Errorf("%w: %w", ErrChannelClosed, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: encode %s payload: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrChannelClosed
	}
	if err := s.writeLocked("event: " + event + "\ndata: " + string(data) + "\n\n"); err != nil {
		s.logger.Debug("sse: send failed", "event", event, "error", err)
		return fmt.Errorf("%w: %w", ErrChannelClosed, err)
	}
	return nil
}

// Closed reports whether the writer has observed a failure or been closed.
func (s *Writer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the heartbeat and rejects further sends. Safe to call twice.
func (s *Writer) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.markClosed()
}

func (s *Writer) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// writeLocked writes and flushes one chunk. Caller must hold mu.
func (s *Writer) writeLocked(chunk string) error {
	if _, err := s.w.Write([]byte(chunk)); err != nil {
		s.closed = true
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.closed = true
		return err
	}
	return nil
}

func (s *Writer) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			err := s.writeLocked(heartbeatFrame)
			s.mu.Unlock()
			if err != nil {
				s.logger.Debug("sse: heartbeat failed", "error", err)
				return
			}
		}
	}
}
