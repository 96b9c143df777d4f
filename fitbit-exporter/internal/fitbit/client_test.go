package fitbit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gitbit/gitbit/internal/httpclient"
)

type staticTokens struct{}

func (staticTokens) AccessToken() string                  { return "A1" }
func (staticTokens) Reauthenticate(context.Context) error { return nil }

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	engine := httpclient.New(zap.NewNop(), staticTokens{}, srv.Client(), httpclient.WithVenueTag("fitbit"))
	return NewClient(srv.URL, engine)
}

func TestHeartRate_BuildsURLAndReturnsBody(t *testing.T) {
	var path, auth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"activities-heart":[]}`))
	}))

	payload, err := c.HeartRate(context.Background(), "2021-03-01", Resolution1Sec)
	require.NoError(t, err)
	assert.Equal(t, "/1/user/-/activities/heart/date/2021-03-01/1d/1sec.json", path)
	assert.Equal(t, "Bearer A1", auth)
	assert.Equal(t, `{"activities-heart":[]}`, string(payload))
}

func TestHeartRate_RejectsResolutionBeforeRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))

	_, err := c.HeartRate(context.Background(), "2021-03-01", "5min")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidResolution)
	assert.Contains(t, err.Error(), "5min")
	assert.EqualValues(t, 0, calls.Load())
}

func TestHeartRate_Idempotent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"activities-heart":[{"dateTime":"2021-03-01"}]}`))
	}))

	first, err := c.HeartRate(context.Background(), "2021-03-01", Resolution1Min)
	require.NoError(t, err)
	second, err := c.HeartRate(context.Background(), "2021-03-01", Resolution1Min)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHeartRateURL_DefaultBase(t *testing.T) {
	c := NewClient("", nil)
	assert.Equal(t,
		"https://api.fitbit.com/1/user/-/activities/heart/date/2021-03-01/1d/1min.json",
		c.HeartRateURL("2021-03-01", Resolution1Min))
}
