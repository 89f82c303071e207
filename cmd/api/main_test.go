package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsense/cropsense/internal/ingest"
)

type stubConsumer struct {
	err error
}

func (s *stubConsumer) Start(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubConsumer) Close() error { return nil }
func (s *stubConsumer) Name() string { return "stub" }

func TestStartIngest_NoConsumersNeverSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := startIngest(ctx, zerolog.New(io.Discard), nil)
	assert.Nil(t, errCh)

	select {
	case err := <-errCh:
		t.Fatalf("unexpected ingest signal: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartIngest_CleanStopIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	errCh := startIngest(ctx, zerolog.New(io.Discard), []ingest.Consumer{&stubConsumer{}})
	require.NotNil(t, errCh)
	cancel()

	select {
	case err := <-errCh:
		t.Fatalf("unexpected ingest signal: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStartIngest_ReportsConsumerFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("broker unreachable")
	errCh := startIngest(ctx, zerolog.New(io.Discard), []ingest.Consumer{&stubConsumer{err: boom}})

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("consumer failure was not reported")
	}
}

func TestRetries(t *testing.T) {
	assert.Equal(t, uint64(2), retries(2))
	assert.Equal(t, ^uint64(0), retries(0))
	assert.Equal(t, ^uint64(0), retries(-1))
}
