package sse

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncRecorder is a flushable response writer safe for concurrent reads.
type syncRecorder struct {
	mu      sync.Mutex
	header  http.Header
	body    bytes.Buffer
	flushes int
	failAt  int // fail the Nth write when > 0
	writes  int
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{header: http.Header{}}
}

func (r *syncRecorder) Header() http.Header { return r.header }
func (r *syncRecorder) WriteHeader(int)     {}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.failAt > 0 && r.writes >= r.failAt {
		return 0, errors.New("broken pipe")
	}
	return r.body.Write(p)
}

func (r *syncRecorder) Flush() {
	r.mu.Lock()
	r.flushes++
	r.mu.Unlock()
}

func (r *syncRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func TestNewWriterSetsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	w, err := NewWriter(rec, 0, nil)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)
}

func TestSendFormatsFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec, 0, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	require.NoError(t, w.Send(ctx, "start", map[string]string{"topic": "nursing"}))
	require.NoError(t, w.Send(ctx, "progress", map[string]int{"step": 1}))

	want := "event: start\ndata: {\"topic\":\"nursing\"}\n\n" +
		"event: progress\ndata: {\"step\":1}\n\n"
	assert.Equal(t, want, rec.Body.String())
}

func TestSendAfterWriteFailure(t *testing.T) {
	rec := newSyncRecorder()
	rec.failAt = 2

	w, err := NewWriter(rec, 0, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	require.NoError(t, w.Send(ctx, "start", struct{}{}))

	err = w.Send(ctx, "progress", struct{}{})
	require.ErrorIs(t, err, ErrChannelClosed)
	assert.True(t, w.Closed())

	err = w.Send(ctx, "progress", struct{}{})
	require.ErrorIs(t, err, ErrChannelClosed, "closed writer stays closed")
	assert.Equal(t, 2, rec.writes, "no writes after close")
}

func TestSendCancelledContext(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = w.Send(ctx, "start", struct{}{})
	require.ErrorIs(t, err, ErrChannelClosed)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Body.String())
}

func TestSendEncodeError(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec, 0, nil)
	require.NoError(t, err)
	defer w.Close()

	err = w.Send(context.Background(), "start", make(chan int))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrChannelClosed)
	assert.False(t, w.Closed(), "encode errors leave the channel open")
}

func TestHeartbeat(t *testing.T) {
	rec := newSyncRecorder()

	w, err := NewWriter(rec, 5*time.Millisecond, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return strings.Contains(rec.String(), heartbeatFrame)
	}, time.Second, 5*time.Millisecond)

	w.Close()
	w.Close()
	require.ErrorIs(t, w.Send(context.Background(), "start", struct{}{}), ErrChannelClosed)
}
