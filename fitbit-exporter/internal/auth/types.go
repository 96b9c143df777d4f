package auth

import (
	"context"
	"errors"
	"fmt"
)

// DefaultTokenURL is Fitbit's OAuth2 token endpoint.
const DefaultTokenURL = "https://api.fitbit.com/oauth2/token"

// Persisted configuration keys.
const (
	KeyAccessToken     = "ACCESS_TOKEN"
	KeyLegacyToken     = "TOKEN"
	KeyRefreshToken    = "REFRESH_TOKEN"
	KeyClientID        = "CLIENT_ID"
	KeyClientSecret    = "CLIENT_SECRET"
	KeyCallbackURL     = "CALLBACK_URL"
	KeyRefreshTokenURL = "REFRESH_TOKEN_URL"
)

var (
	ErrAuthFailure        = errors.New("token refresh rejected")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrNotImplemented     = errors.New("not implemented")
)

// Credentials is the OAuth2 state of the exporter. AccessToken and
// RefreshToken are always issued, replaced and persisted together.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	TokenURL     string
	CallbackURL  string
}

// Validate checks the fields needed to refresh tokens.
func (c Credentials) Validate() error {
	var missing []string
	if c.RefreshToken == "" {
		missing = append(missing, KeyRefreshToken)
	}
	if c.ClientID == "" {
		missing = append(missing, KeyClientID)
	}
	if c.ClientSecret == "" {
		missing = append(missing, KeyClientSecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingCredentials, missing)
	}
	return nil
}

// Storage persists credentials. Save must write the access and refresh
// tokens together so a crash cannot leave a torn pair behind.
type Storage interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, c Credentials) error
}

// AppCredentials are the registered application's client id and secret.
type AppCredentials struct {
	ClientID     string
	ClientSecret string
}

// ParseAppSecret extracts AppCredentials from a secrets-manager map.
func ParseAppSecret(m map[string]string) (AppCredentials, error) {
	app := AppCredentials{
		ClientID:     m["client_id"],
		ClientSecret: m["client_secret"],
	}
	if app.ClientID == "" {
		return AppCredentials{}, fmt.Errorf("missing client_id")
	}
	if app.ClientSecret == "" {
		return AppCredentials{}, fmt.Errorf("missing client_secret")
	}
	return app, nil
}

// WithApp returns c with the application credentials replaced by app.
func (c Credentials) WithApp(app AppCredentials) Credentials {
	c.ClientID = app.ClientID
	c.ClientSecret = app.ClientSecret
	return c
}
