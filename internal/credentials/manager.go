// Package credentials owns the per-instance OAuth application registrations
// and the single access token of the system.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/julianstephens/streaktoot/internal/constants"
	apperrors "github.com/julianstephens/streaktoot/internal/errors"
	"github.com/julianstephens/streaktoot/internal/keyring"
	"github.com/julianstephens/streaktoot/internal/logger"
	"github.com/julianstephens/streaktoot/internal/mastodon"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/storage"
	"github.com/julianstephens/streaktoot/internal/validation"
)

// ErrNoToken is returned when no token has been issued for the instance.
var ErrNoToken = errors.New("not logged in (run `streaktoot auth login`)")

// State is the credential lifecycle of one instance.
type State int

const (
	Unregistered State = iota
	Registered
	Authorizing
	Authorized
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Registered:
		return "registered"
	case Authorizing:
		return "authorizing"
	case Authorized:
		return "authorized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// API is the part of the Mastodon client the manager needs.
type API interface {
	RegisterApp(ctx context.Context, instance string, app mastodon.AppRegistration) (models.ClientCredential, error)
	ExchangeCode(ctx context.Context, instance string, conf *oauth2.Config, code string) (models.AccessToken, error)
}

// ClientStore caches application registrations keyed by instance origin.
type ClientStore interface {
	GetClient(ctx context.Context, instance string) (models.ClientCredential, bool, error)
	SaveClient(ctx context.Context, instance string, cred models.ClientCredential) error
}

// TokenStore persists the single access token.
type TokenStore interface {
	Load(ctx context.Context) (models.AccessToken, error)
	Save(ctx context.Context, token models.AccessToken) error
	Clear(ctx context.Context) error
}

// Authorizer presents the authorization URL to the user and returns either
// the redirect target the instance sent them to or the bare code it displayed.
type Authorizer interface {
	Authorize(ctx context.Context, authURL string) (string, error)
}

type Options struct {
	ClientName  string
	Website     string
	RedirectURI string
	Scopes      string
}

type Manager struct {
	api     API
	clients ClientStore
	tokens  TokenStore
	opts    Options

	mu          sync.Mutex
	authorizing map[string]bool
}

func NewManager(api API, clients ClientStore, tokens TokenStore, opts Options) *Manager {
	if opts.ClientName == "" {
		opts.ClientName = constants.DefaultClientName
	}
	if opts.RedirectURI == "" {
		opts.RedirectURI = constants.OOBRedirectURI
	}
	if opts.Scopes == "" {
		opts.Scopes = constants.DefaultScopes
	}
	return &Manager{
		api:         api,
		clients:     clients,
		tokens:      tokens,
		opts:        opts,
		authorizing: make(map[string]bool),
	}
}

// GetOrRegisterClient returns the cached registration for instance, registering
// the application first when there is none. A failed registration caches
// nothing.
func (m *Manager) GetOrRegisterClient(ctx context.Context, instance string) (models.ClientCredential, error) {
	instance, err := validation.NormalizeInstance(instance)
	if err != nil {
		return models.ClientCredential{}, err
	}

	cred, found, err := m.clients.GetClient(ctx, instance)
	if err != nil {
		return models.ClientCredential{}, fmt.Errorf("failed to read client registration: %w", err)
	}
	if found {
		return cred, nil
	}

	cred, err = m.api.RegisterApp(ctx, instance, mastodon.AppRegistration{
		ClientName:  m.opts.ClientName,
		RedirectURI: m.opts.RedirectURI,
		Scopes:      m.opts.Scopes,
		Website:     m.opts.Website,
	})
	if err != nil {
		logger.Warn("app registration failed", "instance", instance, "err", err)
		return models.ClientCredential{}, err
	}
	if err := m.clients.SaveClient(ctx, instance, cred); err != nil {
		return models.ClientCredential{}, fmt.Errorf("failed to save client registration: %w", err)
	}
	logger.Info("credential state changed", "instance", instance, "state", Registered)
	return cred, nil
}

// AuthorizationURL is the page the user visits to grant access.
func (m *Manager) AuthorizationURL(instance string, cred models.ClientCredential) string {
	return m.oauthConfig(instance, cred).AuthCodeURL("")
}

func (m *Manager) oauthConfig(instance string, cred models.ClientCredential) *oauth2.Config {
	return mastodon.OAuthConfig(instance, cred, m.opts.RedirectURI, m.opts.Scopes)
}

// ObtainAccessToken runs the authorization code flow against instance and
// persists the resulting token.
func (m *Manager) ObtainAccessToken(ctx context.Context, instance string, auth Authorizer) (models.AccessToken, error) {
	instance, err := validation.NormalizeInstance(instance)
	if err != nil {
		return models.AccessToken{}, err
	}
	cred, err := m.GetOrRegisterClient(ctx, instance)
	if err != nil {
		return models.AccessToken{}, err
	}

	m.setAuthorizing(instance, true)
	defer m.setAuthorizing(instance, false)
	logger.Info("credential state changed", "instance", instance, "state", Authorizing)

	redirect, err := auth.Authorize(ctx, m.AuthorizationURL(instance, cred))
	if err != nil {
		return models.AccessToken{}, &apperrors.AuthorizationError{Reason: "authorization was cancelled", Err: err}
	}
	code, err := ExtractCode(redirect)
	if err != nil {
		return models.AccessToken{}, err
	}

	token, err := m.api.ExchangeCode(ctx, instance, m.oauthConfig(instance, cred), code)
	if err != nil {
		logger.Warn("token exchange failed", "instance", instance, "err", err)
		return models.AccessToken{}, err
	}
	token.Instance = instance
	if err := m.tokens.Save(ctx, token); err != nil {
		return models.AccessToken{}, fmt.Errorf("failed to save access token: %w", err)
	}
	logger.Info("credential state changed", "instance", instance, "state", Authorized)
	return token, nil
}

// ExtractCode pulls the one-time code out of a redirect target. Input that is
// not a URL is taken as the code itself, which is what the out-of-band flow
// displays.
func ExtractCode(redirect string) (string, error) {
	redirect = strings.TrimSpace(redirect)
	if redirect == "" {
		return "", &apperrors.AuthorizationError{Reason: "no authorization code was provided"}
	}
	if !strings.Contains(redirect, "://") && !strings.Contains(redirect, "?") {
		return redirect, nil
	}

	u, err := url.Parse(redirect)
	if err != nil {
		return "", &apperrors.AuthorizationError{Reason: "redirect target could not be parsed", Err: err}
	}
	q := u.Query()
	if msg := q.Get("error"); msg != "" {
		return "", &apperrors.AuthorizationError{Reason: fmt.Sprintf("instance returned %q", msg)}
	}
	code := q.Get("code")
	if code == "" {
		return "", &apperrors.AuthorizationError{Reason: "redirect target carried no code"}
	}
	return code, nil
}

// AccessToken returns the stored token if it was issued by instance.
func (m *Manager) AccessToken(ctx context.Context, instance string) (models.AccessToken, error) {
	instance, err := validation.NormalizeInstance(instance)
	if err != nil {
		return models.AccessToken{}, err
	}
	token, err := m.tokens.Load(ctx)
	if err != nil {
		if isNotFound(err) {
			return models.AccessToken{}, ErrNoToken
		}
		return models.AccessToken{}, err
	}
	if token.Instance != instance {
		logger.Debug("ignoring token issued by another instance", "token_instance", token.Instance, "instance", instance)
		return models.AccessToken{}, ErrNoToken
	}
	return token, nil
}

// SwitchInstance clears the token when the configured instance changes. It
// reports whether a token was cleared.
func (m *Manager) SwitchInstance(ctx context.Context, from, to string) (bool, error) {
	fromNorm, _ := validation.NormalizeInstance(from)
	toNorm, err := validation.NormalizeInstance(to)
	if err != nil {
		return false, err
	}
	if fromNorm == toNorm {
		return false, nil
	}
	if err := m.tokens.Clear(ctx); err != nil {
		return false, err
	}
	logger.Info("instance changed, access token cleared", "from", fromNorm, "to", toNorm)
	return true, nil
}

func (m *Manager) Logout(ctx context.Context) error {
	if err := m.tokens.Clear(ctx); err != nil {
		return err
	}
	logger.Info("access token cleared")
	return nil
}

// State reports where instance is in the credential lifecycle.
func (m *Manager) State(ctx context.Context, instance string) (State, error) {
	instance, err := validation.NormalizeInstance(instance)
	if err != nil {
		return Unregistered, err
	}
	if _, err := m.AccessToken(ctx, instance); err == nil {
		return Authorized, nil
	} else if !errors.Is(err, ErrNoToken) {
		return Unregistered, err
	}

	m.mu.Lock()
	authorizing := m.authorizing[instance]
	m.mu.Unlock()
	if authorizing {
		return Authorizing, nil
	}

	_, found, err := m.clients.GetClient(ctx, instance)
	if err != nil {
		return Unregistered, err
	}
	if found {
		return Registered, nil
	}
	return Unregistered, nil
}

func (m *Manager) setAuthorizing(instance string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on {
		m.authorizing[instance] = true
	} else {
		delete(m.authorizing, instance)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNoToken) ||
		errors.Is(err, keyring.ErrNotFound) ||
		errors.Is(err, storage.ErrTokenNotFound)
}

// StoreTokens keeps the token in the key-value store, for systems where the
// OS keyring is unavailable or disabled.
func StoreTokens(p storage.Provider) TokenStore {
	return &providerTokens{p: p}
}

type providerTokens struct {
	p storage.Provider
}

func (t *providerTokens) Load(ctx context.Context) (models.AccessToken, error) {
	return t.p.GetAccessToken(ctx)
}

func (t *providerTokens) Save(ctx context.Context, token models.AccessToken) error {
	if token.Token == "" {
		return errors.New("access token cannot be empty")
	}
	return t.p.SaveAccessToken(ctx, token)
}

func (t *providerTokens) Clear(ctx context.Context) error {
	return t.p.DeleteAccessToken(ctx)
}
