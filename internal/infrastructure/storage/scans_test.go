package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
)

func TestScanStoreAndGet(t *testing.T) {
	s := newTestShard(t)
	ctx := context.Background()

	err := s.ScanStore(ctx, "paste-abc", entities.ScanContentPaste, entities.ScanVerdict{
		Safe:       true,
		Confidence: 0.92,
		Reason:     "benign code snippet",
	})
	require.NoError(t, err)

	scan, err := s.ScanGet(ctx, "paste-abc")
	require.NoError(t, err)
	assert.Equal(t, "paste-abc", scan.ContentID)
	assert.Equal(t, entities.ScanContentPaste, scan.ContentType)
	assert.True(t, scan.Safe)
	assert.InDelta(t, 0.92, scan.Confidence, 1e-9)
	assert.Equal(t, "benign code snippet", scan.Reason)
}

func TestScanStore_LatestVerdictWins(t *testing.T) {
	s := newTestShard(t)
	ctx := context.Background()

	err := s.ScanStore(ctx, "kv-1", entities.ScanContentKV, entities.ScanVerdict{Safe: true, Confidence: 0.5})
	require.NoError(t, err)

	// confidence above 1 clamps down
	err = s.ScanStore(ctx, "kv-1", entities.ScanContentKV, entities.ScanVerdict{
		Safe:       false,
		Confidence: 1.7,
		Reason:     "prompt injection",
	})
	require.NoError(t, err)

	scan, err := s.ScanGet(ctx, "kv-1")
	require.NoError(t, err)
	assert.False(t, scan.Safe)
	assert.InDelta(t, 1.0, scan.Confidence, 1e-9)
	assert.Equal(t, "prompt injection", scan.Reason)

	list, err := s.ScanList(ctx, entities.ScanContentKV, false, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestScanStore_Validation(t *testing.T) {
	s := newTestShard(t)
	ctx := context.Background()

	err := s.ScanStore(ctx, "", entities.ScanContentKV, entities.ScanVerdict{})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	err = s.ScanStore(ctx, "x", "video", entities.ScanVerdict{})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	// negative confidence clamps to zero
	err = s.ScanStore(ctx, "x", entities.ScanContentMemory, entities.ScanVerdict{Safe: true, Confidence: -2})
	require.NoError(t, err)
	scan, err := s.ScanGet(ctx, "x")
	require.NoError(t, err)
	assert.Zero(t, scan.Confidence)
}

func TestScanGet_NotFound(t *testing.T) {
	s := newTestShard(t)

	_, err := s.ScanGet(context.Background(), "never-scanned")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestScanList_Filters(t *testing.T) {
	s := newTestShard(t)
	ctx := context.Background()

	require.NoError(t, s.ScanStore(ctx, "p1", entities.ScanContentPaste, entities.ScanVerdict{Safe: true, Confidence: 1}))
	require.NoError(t, s.ScanStore(ctx, "p2", entities.ScanContentPaste, entities.ScanVerdict{Safe: false, Confidence: 1}))
	require.NoError(t, s.ScanStore(ctx, "k1", entities.ScanContentKV, entities.ScanVerdict{Safe: true, Confidence: 1}))

	all, err := s.ScanList(ctx, "", false, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pastes, err := s.ScanList(ctx, entities.ScanContentPaste, false, 0)
	require.NoError(t, err)
	assert.Len(t, pastes, 2)

	safe, err := s.ScanList(ctx, "", true, 0)
	require.NoError(t, err)
	assert.Len(t, safe, 2)
	for _, scan := range safe {
		assert.True(t, scan.Safe)
	}

	_, err = s.ScanList(ctx, "audio", false, 0)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}
