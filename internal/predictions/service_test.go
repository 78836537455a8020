// internal/predictions/service_test.go
package predictions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northbound-api/internal/common/config"
	apperrors "northbound-api/internal/common/errors"
	"northbound-api/internal/common/logger"
	"northbound-api/internal/models"
)

type stubObjects struct {
	objects map[string][]byte
	err     error
}

func (s *stubObjects) GetObject(_ context.Context, _ string, key string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	body, ok := s.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey: " + key)
	}
	return body, nil
}

func testConfig() config.PredictionsConfig {
	return config.PredictionsConfig{
		S3Bucket:     "northbound-artifacts",
		S3Prefix:     "predictions/",
		CacheTTL:     60,
		DefaultPairs: []string{"USD_CAD", "EUR_CAD"},
	}
}

func validManifest(t *testing.T, pairs ...string) []byte {
	t.Helper()
	doc := map[string]interface{}{
		"horizon":   "h7",
		"as_of_utc": "2026-08-29T21:00:00Z",
		"run_date":  "2026-08-29",
		"timezone":  "America/Toronto",
	}
	if len(pairs) > 0 {
		doc["pairs"] = pairs
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func validArtifact(t *testing.T, pair string, pUp float64) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"pair":     pair,
		"p_up":     pUp,
		"obs_date": "2026-08-29",
		"model":    "gbm_v3",
	})
	require.NoError(t, err)
	return raw
}

func TestLatestAssemblesFromArtifacts(t *testing.T) {
	cfg := testConfig()
	objects := &stubObjects{objects: map[string][]byte{
		"predictions/manifest.json":       validManifest(t, "USD_CAD", "EUR_CAD"),
		"predictions/latest_USD_CAD_h7.json": validArtifact(t, "USD_CAD", 0.62),
		"predictions/latest_EUR_CAD_h7.json": validArtifact(t, "EUR_CAD", 0.31),
	}}
	svc, err := NewService(objects, nil, cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	snap, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "h7", snap.Metadata.Horizon)
	require.Len(t, snap.Predictions, 2)

	usd := snap.Predictions[0]
	assert.Equal(t, "USD_CAD", usd.Pair)
	assert.Equal(t, "USD/CAD", usd.PairLabel)
	assert.Equal(t, models.DirectionUp, usd.Direction)
	assert.InDelta(t, 0.62, usd.Confidence, 1e-9)
	assert.True(t, usd.Available)

	eur := snap.Predictions[1]
	assert.Equal(t, models.DirectionDown, eur.Direction)
	assert.InDelta(t, 0.69, eur.Confidence, 1e-9)
}

func TestLatestMissingArtifactDegradesToAbstain(t *testing.T) {
	cfg := testConfig()
	objects := &stubObjects{objects: map[string][]byte{
		"predictions/manifest.json":       validManifest(t, "USD_CAD", "EUR_CAD"),
		"predictions/latest_USD_CAD_h7.json": validArtifact(t, "USD_CAD", 0.55),
	}}
	svc, err := NewService(objects, nil, cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	snap, err := svc.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Predictions, 2)

	eur := snap.Predictions[1]
	assert.Equal(t, models.DirectionAbstain, eur.Direction)
	assert.Zero(t, eur.Confidence)
	assert.False(t, eur.Available)
}

func TestLatestInvalidArtifactDegradesToAbstain(t *testing.T) {
	cfg := testConfig()
	objects := &stubObjects{objects: map[string][]byte{
		"predictions/manifest.json":       validManifest(t, "USD_CAD"),
		"predictions/latest_USD_CAD_h7.json": []byte(`{"pair": "USD_CAD", "p_up": 1.7}`),
	}}
	svc, err := NewService(objects, nil, cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	snap, err := svc.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Predictions, 1)
	assert.Equal(t, models.DirectionAbstain, snap.Predictions[0].Direction)
}

func TestLatestMissingManifestFails(t *testing.T) {
	cfg := testConfig()
	svc, err := NewService(&stubObjects{objects: map[string][]byte{}}, nil, cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = svc.Latest(context.Background())
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodePredictionsError, stdErr.Code)
}

func TestLatestManifestWithoutPairsUsesDefaults(t *testing.T) {
	cfg := testConfig()
	objects := &stubObjects{objects: map[string][]byte{
		"predictions/manifest.json": validManifest(t),
	}}
	svc, err := NewService(objects, nil, cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	snap, err := svc.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Predictions, 2)
	assert.Equal(t, "USD_CAD", snap.Predictions[0].Pair)
	assert.Equal(t, "EUR_CAD", snap.Predictions[1].Pair)
}

func TestFilterSnapshot(t *testing.T) {
	snap := &models.PredictionsSnapshot{
		Metadata: models.ManifestMetadata{Horizon: "h7"},
		Predictions: []models.PredictionItem{
			{Pair: "USD_CAD", Direction: models.DirectionUp, Available: true},
			{Pair: "EUR_CAD", Direction: models.DirectionDown, Available: true},
		},
	}

	got := FilterSnapshot(snap, []string{"EUR_CAD", "GBP_CAD"}, 0)
	require.Len(t, got.Predictions, 2)
	assert.Equal(t, "EUR_CAD", got.Predictions[0].Pair)
	assert.Equal(t, models.DirectionDown, got.Predictions[0].Direction)
	// Requested but unpublished pairs come back as placeholders.
	assert.Equal(t, "GBP_CAD", got.Predictions[1].Pair)
	assert.Equal(t, models.DirectionAbstain, got.Predictions[1].Direction)
	assert.False(t, got.Predictions[1].Available)

	limited := FilterSnapshot(snap, nil, 1)
	require.Len(t, limited.Predictions, 1)
	assert.Equal(t, "USD_CAD", limited.Predictions[0].Pair)

	// The source snapshot is never mutated.
	assert.Len(t, snap.Predictions, 2)
}

func TestLatestServesFromCache(t *testing.T) {
	cfg := testConfig()
	cached := models.PredictionsSnapshot{
		Metadata: models.ManifestMetadata{Horizon: "h7", RunDate: "2026-08-29"},
		Predictions: []models.PredictionItem{
			{Pair: "USD_CAD", Direction: models.DirectionUp, Confidence: 0.7, Available: true},
		},
	}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)

	client, mock := redismock.NewClientMock()
	mock.ExpectGet(cacheKey).SetVal(string(payload))

	// Object getter that always errors proves the cache short-circuits.
	svc, err := NewService(&stubObjects{err: errors.New("should not be called")}, client, cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	snap, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-08-29", snap.Metadata.RunDate)
	require.Len(t, snap.Predictions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestCacheMissWritesBack(t *testing.T) {
	cfg := testConfig()
	objects := &stubObjects{objects: map[string][]byte{
		"predictions/manifest.json":       validManifest(t, "USD_CAD"),
		"predictions/latest_USD_CAD_h7.json": validArtifact(t, "USD_CAD", 0.6),
	}}

	client, mock := redismock.NewClientMock()
	mock.ExpectGet(cacheKey).RedisNil()
	mock.Regexp().ExpectSet(cacheKey, `.+`, time.Duration(cfg.CacheTTL)*time.Second).SetVal("OK")

	svc, err := NewService(objects, client, cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	snap, err := svc.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Predictions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestCacheErrorFallsThrough(t *testing.T) {
	cfg := testConfig()
	objects := &stubObjects{objects: map[string][]byte{
		"predictions/manifest.json":       validManifest(t, "USD_CAD"),
		"predictions/latest_USD_CAD_h7.json": validArtifact(t, "USD_CAD", 0.6),
	}}

	client, mock := redismock.NewClientMock()
	mock.ExpectGet(cacheKey).SetErr(errors.New("redis down"))
	mock.Regexp().ExpectSet(cacheKey, `.+`, time.Duration(cfg.CacheTTL)*time.Second).SetErr(errors.New("redis down"))

	svc, err := NewService(objects, client, cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	snap, err := svc.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Predictions, 1)
}
