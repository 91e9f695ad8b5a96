package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type captureStorage struct {
	mu      sync.Mutex
	events  []AuthEvent
	batches int
}

func (s *captureStorage) WriteBatch(_ context.Context, events []AuthEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	s.batches++
	return nil
}

func (s *captureStorage) snapshot() []AuthEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuthEvent(nil), s.events...)
}

func TestRecorder_DrainOnStop(t *testing.T) {
	store := &captureStorage{}
	rec := NewRecorder(store, zap.NewNop(), nil, Options{FlushInterval: time.Hour, BatchSize: 1000})
	rec.Start()

	for i := 0; i < 250; i++ {
		rec.Record(AuthEvent{Action: ActionLogin, Outcome: OutcomeOK})
	}
	rec.Stop()

	events := store.snapshot()
	require.Len(t, events, 250)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestRecorder_BatchBySize(t *testing.T) {
	store := &captureStorage{}
	rec := NewRecorder(store, zap.NewNop(), nil, Options{FlushInterval: time.Hour, BatchSize: 10})
	rec.Start()

	for i := 0; i < 30; i++ {
		rec.Record(AuthEvent{Action: ActionSignup})
	}

	require.Eventually(t, func() bool { return len(store.snapshot()) == 30 }, time.Second, 5*time.Millisecond)
	rec.Stop()
	assert.Equal(t, 3, store.batches)
}

func TestRecorder_RecordAfterStopIsDropped(t *testing.T) {
	store := &captureStorage{}
	rec := NewRecorder(store, zap.NewNop(), nil, Options{})
	rec.Start()
	rec.Stop()

	assert.NotPanics(t, func() { rec.Record(AuthEvent{Action: ActionLogout}) })
	assert.NotPanics(t, rec.Stop)
	assert.Empty(t, store.snapshot())
}

func TestLogStorage_WritesStructuredEntries(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogStorage(zap.New(core))

	require.NoError(t, s.WriteBatch(context.Background(), []AuthEvent{
		{Action: ActionLogin, Outcome: OutcomeDenied, Email: "a@b.com"},
	}))

	entries := logs.FilterMessage("auth event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "denied", entries[0].ContextMap()["outcome"])
	assert.Equal(t, "a@b.com", entries[0].ContextMap()["email"])
}
