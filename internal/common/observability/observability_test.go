package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northbound-api/internal/common/logger"
)

func TestNewAndRecord(t *testing.T) {
	obs := New("northbound-api-test", logger.NewTestLogger(t))
	require.NotNil(t, obs)
	t.Cleanup(obs.Shutdown)

	ctx := context.Background()
	obs.RecordRequest(ctx, "/v1/subscriptions", "POST", 201)
	obs.RecordDuration(ctx, "/v1/subscriptions", 12*time.Millisecond)
}

func TestZeroValueIsInert(t *testing.T) {
	var obs Observability

	// An exporter failure leaves the struct empty; recording must be a no-op.
	obs.RecordRequest(context.Background(), "/v1/health", "GET", 200)
	obs.RecordDuration(context.Background(), "/v1/health", time.Millisecond)
	obs.Shutdown()
	assert.Nil(t, obs.requestCounter)
}
