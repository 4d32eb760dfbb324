package keyring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/streaktoot/internal/constants"
	"github.com/julianstephens/streaktoot/internal/models"
)

var (
	// ErrNotFound is returned when no token is stored in the keyring
	ErrNotFound = errors.New("access token not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// TokenStore keeps the access token, together with the instance that issued
// it, as one JSON secret in the OS keyring.
type TokenStore struct {
	Service string
	User    string
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		Service: constants.AppName,
		User:    constants.DefaultKeyringUser,
	}
}

// Load retrieves the stored token. Returns ErrNotFound if none is stored.
func (s *TokenStore) Load(_ context.Context) (models.AccessToken, error) {
	secret, err := keyring.Get(s.Service, s.User)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return models.AccessToken{}, ErrNotFound
		}
		return models.AccessToken{}, fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}

	var token models.AccessToken
	if err := json.Unmarshal([]byte(secret), &token); err != nil {
		return models.AccessToken{}, fmt.Errorf("failed to decode keyring entry: %w", err)
	}
	if token.Token == "" {
		return models.AccessToken{}, ErrNotFound
	}
	return token, nil
}

// Save stores the token, replacing any previous one.
func (s *TokenStore) Save(_ context.Context, token models.AccessToken) error {
	if token.Token == "" {
		return errors.New("access token cannot be empty")
	}
	secret, err := json.Marshal(token)
	if err != nil {
		return err
	}
	if err := keyring.Set(s.Service, s.User, string(secret)); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}

// Clear removes the token. Clearing an empty keyring is not an error.
func (s *TokenStore) Clear(_ context.Context) error {
	err := keyring.Delete(s.Service, s.User)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	// ErrNotFound means the keyring answered but is empty
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
