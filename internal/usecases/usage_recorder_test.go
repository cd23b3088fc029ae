package usecases

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	"github.com/aibtcdev/x402-api/internal/infrastructure/models"
	"github.com/aibtcdev/x402-api/internal/infrastructure/storage"
)

const recorderTestPayer = "SP000000000000000000002Q6VF78"

func newRecorderManager(t *testing.T) (*storage.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := storage.NewManager(dir)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, dir
}

func TestUsageRecorder_RingAndTotals(t *testing.T) {
	r := NewUsageRecorder(nil, nil)

	for i := 0; i < recentRingSize+10; i++ {
		r.ObserveRequest(entities.RequestRecord{
			Method:   "GET",
			Path:     fmt.Sprintf("/endpoint/%d", i),
			Status:   200,
			Category: "storage",
			At:       time.Now(),
		})
	}

	recent := r.Recent()
	require.Len(t, recent, recentRingSize)
	// Oldest entries fell off the front.
	assert.Equal(t, "/endpoint/10", recent[0].Path)
	assert.Equal(t, fmt.Sprintf("/endpoint/%d", recentRingSize+9), recent[len(recent)-1].Path)

	totals := r.Totals()
	assert.Equal(t, int64(recentRingSize+10), totals.Requests)
}

func TestUsageRecorder_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewUsageRecorder(nil, reg)

	r.ObserveRequest(entities.RequestRecord{Method: "POST", Path: "/x", Status: 200, Category: "hashing"})
	r.ObserveRequest(entities.RequestRecord{Method: "POST", Path: "/x", Status: 402, Category: "hashing"})
	r.ObserveRequest(entities.RequestRecord{Method: "GET", Path: "/y", Status: 500, Category: "storage"})

	assert.InDelta(t, 1.0, testutil.ToFloat64(r.requestsTotal.WithLabelValues("hashing", "POST", "2xx")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.requestsTotal.WithLabelValues("hashing", "POST", "4xx")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.requestsTotal.WithLabelValues("storage", "GET", "5xx")), 0.001)

	r.RecordSettled(context.Background(), &entities.UsageEvent{
		Payer:  recorderTestPayer,
		Token:  entities.TokenNative,
		Tier:   entities.TierStandard,
		Amount: big.NewInt(1000),
	})
	r.RecordSettled(context.Background(), &entities.UsageEvent{
		Payer:  recorderTestPayer,
		Token:  entities.TokenNative,
		Tier:   entities.TierStandard,
		Amount: big.NewInt(500),
	})
	r.Flush()

	assert.InDelta(t, 1500.0, testutil.ToFloat64(r.revenueTotal.WithLabelValues("Native", "standard")), 0.001)
	totals := r.Totals()
	assert.Equal(t, int64(2), totals.ByToken["Native"])
}

func TestUsageRecorder_WritesShardUsage(t *testing.T) {
	manager, dir := newRecorderManager(t)
	r := NewUsageRecorder(manager, nil)

	r.RecordSettled(context.Background(), &entities.UsageEvent{
		Payer:       recorderTestPayer,
		Endpoint:    "POST /hashing/sha256",
		Category:    "hashing",
		Token:       entities.TokenNative,
		Tier:        entities.TierStandard,
		Amount:      big.NewInt(1000),
		Transaction: "0xabc",
		Status:      200,
		At:          time.Now(),
	})
	r.Flush()

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, recorderTestPayer+".db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	var records []models.UsageRecord
	require.NoError(t, db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, "POST /hashing/sha256", records[0].Endpoint)
	assert.Equal(t, "1000", records[0].Amount)
	assert.Equal(t, "0xabc", records[0].TxID.String)

	var daily []models.UsageDaily
	require.NoError(t, db.Find(&daily).Error)
	require.Len(t, daily, 1)
	assert.Equal(t, int64(1), daily[0].Requests)
	assert.Equal(t, "1000", daily[0].Amount)
}

func TestUsageRecorder_InvalidPayerDoesNotBlock(t *testing.T) {
	manager, _ := newRecorderManager(t)
	r := NewUsageRecorder(manager, nil)

	r.RecordSettled(context.Background(), &entities.UsageEvent{
		Payer:  "not-a-payer",
		Token:  entities.TokenNative,
		Tier:   entities.TierStandard,
		Amount: big.NewInt(1),
	})
	r.Flush()

	r.RecordSettled(context.Background(), nil)
	assert.Equal(t, int64(0), r.Totals().Requests)
}
