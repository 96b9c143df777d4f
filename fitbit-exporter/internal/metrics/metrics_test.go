package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_CountAttemptsAndRefreshes(t *testing.T) {
	var waits []time.Duration
	h := Hooks(func(d time.Duration) { waits = append(waits, d) })

	before200 := testutil.ToFloat64(FitbitRequestsTotal.WithLabelValues("200"))
	beforeOK := testutil.ToFloat64(TokenRefreshTotal.WithLabelValues("ok"))
	beforeErr := testutil.ToFloat64(TokenRefreshTotal.WithLabelValues("error"))
	beforeWait := testutil.ToFloat64(RateLimitWaitSeconds)

	h.OnAttempt(200, 150*time.Millisecond)
	h.OnReauth(nil)
	h.OnReauth(errors.New("invalid_grant"))
	h.OnRateLimitWait(2 * time.Second)
	h.OnRateLimitWait(500 * time.Millisecond)

	assert.Equal(t, before200+1, testutil.ToFloat64(FitbitRequestsTotal.WithLabelValues("200")))
	assert.Equal(t, beforeOK+1, testutil.ToFloat64(TokenRefreshTotal.WithLabelValues("ok")))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(TokenRefreshTotal.WithLabelValues("error")))
	assert.InDelta(t, beforeWait+1.5, testutil.ToFloat64(RateLimitWaitSeconds), 1e-9)
	assert.Equal(t, []time.Duration{2 * time.Second, 500 * time.Millisecond}, waits)
}

func TestWriteTextfile(t *testing.T) {
	IncDay("written")
	path := filepath.Join(t.TempDir(), "fitbit.prom")

	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fitbit_export_days_total")
}
