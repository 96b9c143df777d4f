package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gitbit/gitbit/pkg/utils"
)

// tokenResponse is the subset of the OAuth2 token response we use.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// Store owns the current token pair and exchanges the refresh token for a
// new pair. Reads and refreshes are serialized by a mutex.
type Store struct {
	logger  *zap.Logger
	storage Storage
	client  *http.Client

	mu    sync.RWMutex
	creds Credentials
}

// NewStore validates creds and returns a Store persisting through storage.
func NewStore(logger *zap.Logger, creds Credentials, storage Storage, client *http.Client) (*Store, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if creds.TokenURL == "" {
		creds.TokenURL = DefaultTokenURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Store{
		logger:  logger,
		storage: storage,
		client:  client,
		creds:   creds,
	}, nil
}

// AccessToken returns the current bearer token.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AccessToken
}

// Snapshot returns a copy of the current credentials.
func (s *Store) Snapshot() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Refresh exchanges the refresh token for a new token pair, replaces both in
// memory and persists them before returning. On a rejected or malformed
// exchange the current pair is left untouched and ErrAuthFailure is returned.
//
// If the exchange succeeds but persisting fails, the new pair is still kept in
// memory (the old refresh token is already spent) and the persist error is returned.
func (s *Store) Refresh(ctx context.Context) (Credentials, error) {
	// The write lock spans the token exchange so a spent refresh token is never
	// reused; AccessToken readers block for up to the client timeout meanwhile.
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, err := s.exchange(ctx, s.creds)
	if err != nil {
		s.logger.Warn("auth.refresh_failed", zap.Error(err))
		return s.creds, err
	}

	next := s.creds
	next.AccessToken = tr.AccessToken
	next.RefreshToken = tr.RefreshToken
	s.creds = next

	if err := s.storage.Save(ctx, next); err != nil {
		s.logger.Error("auth.persist_failed", zap.Error(err))
		return next, fmt.Errorf("persist refreshed tokens: %w", err)
	}

	s.logger.Info("auth.refresh_success",
		zap.String("access_token", utils.MaskToken(next.AccessToken)),
		zap.String("user_id", tr.UserID),
		zap.Int64("expires_in_sec", tr.ExpiresIn))
	return next, nil
}

// Reauthenticate refreshes the token pair, discarding the returned credentials.
func (s *Store) Reauthenticate(ctx context.Context) error {
	_, err := s.Refresh(ctx)
	return err
}

// Authorize would run the initial authorization-code grant. Only the refresh
// grant is supported; seed REFRESH_TOKEN from the Fitbit developer console.
func (s *Store) Authorize(context.Context) error {
	return fmt.Errorf("authorization code grant: %w", ErrNotImplemented)
}

func (s *Store) exchange(ctx context.Context, creds Credentials) (tokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {creds.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("%w: build request: %v", ErrAuthFailure, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return tokenResponse{}, fmt.Errorf("%w: token endpoint returned %d: %s", ErrAuthFailure, resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return tokenResponse{}, fmt.Errorf("%w: decode token response: %v", ErrAuthFailure, err)
	}
	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return tokenResponse{}, fmt.Errorf("%w: token response missing access_token or refresh_token", ErrAuthFailure)
	}
	return tr, nil
}
