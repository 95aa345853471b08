package hlog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAppliesLevelAndFormat(t *testing.T) {
	logger := New(Config{Level: LevelDebug, Format: "json"})
	require.Equal(t, 5, int(logger.GetLevel())) // logrus.DebugLevel == 5
}

func TestEntryWithContextAttachesKnownFields(t *testing.T) {
	logger := New(DefaultConfig())
	e := NewEntry(logger)

	ctx := WithTxID(context.Background(), "tx-1")
	ctx = WithEntity(ctx, "vectors")

	attached := e.WithContext(ctx)
	require.Equal(t, "tx-1", attached.Data["tx_id"])
	require.Equal(t, "vectors", attached.Data["entity"])
}

func TestTimedReturnsUnderlyingError(t *testing.T) {
	logger := New(DefaultConfig())
	e := NewEntry(logger)

	wantErr := errors.New("boom")
	err := Timed(e, "test-op", func() error { return wantErr })
	require.ErrorIs(t, err, wantErr)

	require.NoError(t, Timed(e, "test-op", func() error { return nil }))
}
