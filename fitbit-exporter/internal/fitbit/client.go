package fitbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultBaseURL is the Fitbit Web API host.
const DefaultBaseURL = "https://api.fitbit.com"

// Intraday detail levels supported for heart rate.
const (
	Resolution1Min = "1min"
	Resolution1Sec = "1sec"
)

// ErrInvalidResolution is returned before any request for an unsupported detail level.
var ErrInvalidResolution = errors.New("invalid resolution")

// Fetcher performs one authenticated, retried JSON GET.
type Fetcher interface {
	GetJSON(ctx context.Context, url string) (json.RawMessage, error)
}

// Client formats Fitbit resource URLs in front of a Fetcher.
type Client struct {
	baseURL string
	fetcher Fetcher
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, fetcher Fetcher) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}
}

// ValidateResolution accepts only 1min and 1sec.
func ValidateResolution(resolution string) error {
	switch resolution {
	case Resolution1Min, Resolution1Sec:
		return nil
	default:
		return fmt.Errorf("%w %q: want %s or %s", ErrInvalidResolution, resolution, Resolution1Min, Resolution1Sec)
	}
}

// HeartRateURL builds the one-day intraday heart-rate URL for date (YYYY-MM-DD).
func (c *Client) HeartRateURL(date, resolution string) string {
	return fmt.Sprintf("%s/1/user/-/activities/heart/date/%s/1d/%s.json", c.baseURL, date, resolution)
}

// HeartRate fetches one day of intraday heart rate. The date is passed through
// unvalidated; a malformed date yields whatever the API answers.
func (c *Client) HeartRate(ctx context.Context, date, resolution string) (json.RawMessage, error) {
	if err := ValidateResolution(resolution); err != nil {
		return nil, err
	}
	return c.fetcher.GetJSON(ctx, c.HeartRateURL(date, resolution))
}
