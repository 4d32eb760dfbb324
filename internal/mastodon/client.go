// Package mastodon is a small client for the parts of the Mastodon REST API
// used to register the app, obtain a token and publish check-ins.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/julianstephens/streaktoot/internal/constants"
	apperrors "github.com/julianstephens/streaktoot/internal/errors"
	"github.com/julianstephens/streaktoot/internal/logger"
	"github.com/julianstephens/streaktoot/internal/models"
)

type Config struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
	UserAgent string
}

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// AppRegistration is the payload of POST /api/v1/apps.
type AppRegistration struct {
	ClientName  string `json:"client_name"`
	RedirectURI string `json:"redirect_uris"`
	Scopes      string `json:"scopes"`
	Website     string `json:"website,omitempty"`
}

// Media is a single attachment ready for upload.
type Media struct {
	Filename    string
	ContentType string
	Data        []byte
	Description string
}

// StatusRequest is the payload of POST /api/v1/statuses.
type StatusRequest struct {
	Status      string            `json:"status"`
	Visibility  models.Visibility `json:"visibility"`
	InReplyToID string            `json:"in_reply_to_id,omitempty"`
	MediaIDs    []string          `json:"media_ids,omitempty"`
}

type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
	URL      string `json:"url"`
}

// APIError is returned by calls that have no dedicated error type.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mastodon API error: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("mastodon API error: %d %s", e.Status, http.StatusText(e.Status))
}

// NewClient builds a client. Zero values in cfg fall back to the defaults in
// constants.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHTTPTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = constants.DefaultRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = constants.DefaultBurst
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = constants.AppName + "/" + constants.Version
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		userAgent:  cfg.UserAgent,
	}
}

// RegisterApp registers an OAuth application on instance.
func (c *Client) RegisterApp(ctx context.Context, instance string, app AppRegistration) (models.ClientCredential, error) {
	body, err := json.Marshal(app)
	if err != nil {
		return models.ClientCredential{}, fmt.Errorf("failed to encode app registration: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, instance+"/api/v1/apps", "", "application/json", bytes.NewReader(body))
	if err != nil {
		return models.ClientCredential{}, &apperrors.RegistrationError{Instance: instance, Err: err}
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return models.ClientCredential{}, &apperrors.RegistrationError{Instance: instance, Status: resp.StatusCode}
	}

	var cred models.ClientCredential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return models.ClientCredential{}, &apperrors.RegistrationError{Instance: instance, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if cred.ClientID == "" || cred.ClientSecret == "" {
		return models.ClientCredential{}, &apperrors.RegistrationError{Instance: instance, Err: errors.New("response carried no client credentials")}
	}
	logger.Debug("registered app", "instance", instance, "client_name", app.ClientName)
	return cred, nil
}

// OAuthConfig describes the authorization code flow of instance for cred.
func OAuthConfig(instance string, cred models.ClientCredential, redirectURI, scopes string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Fields(scopes),
		Endpoint: oauth2.Endpoint{
			AuthURL:   instance + "/oauth/authorize",
			TokenURL:  instance + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// ExchangeCode trades a one-time authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, instance string, conf *oauth2.Config, code string) (models.AccessToken, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.AccessToken{}, &apperrors.TokenExchangeError{Instance: instance, Err: err}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil {
			return models.AccessToken{}, &apperrors.TokenExchangeError{Instance: instance, Status: rErr.Response.StatusCode, Err: err}
		}
		return models.AccessToken{}, &apperrors.TokenExchangeError{Instance: instance, Err: err}
	}

	token := models.AccessToken{
		Instance:  instance,
		Token:     tok.AccessToken,
		CreatedAt: time.Now().UTC(),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		token.Scope = scope
	}
	return token, nil
}

// UploadMedia uploads one attachment and returns its media id.
func (c *Client) UploadMedia(ctx context.Context, instance, token string, media Media) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, media.Filename))
	contentType := media.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", &apperrors.MediaUploadError{Err: err}
	}
	if _, err := part.Write(media.Data); err != nil {
		return "", &apperrors.MediaUploadError{Err: err}
	}
	if media.Description != "" {
		if err := mw.WriteField("description", media.Description); err != nil {
			return "", &apperrors.MediaUploadError{Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return "", &apperrors.MediaUploadError{Err: err}
	}

	resp, err := c.do(ctx, http.MethodPost, instance+"/api/v1/media", token, mw.FormDataContentType(), &buf)
	if err != nil {
		return "", &apperrors.MediaUploadError{Err: err}
	}
	defer resp.Body.Close()

	var result struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)
	if !ok(resp) {
		return "", &apperrors.MediaUploadError{Status: resp.StatusCode, Message: result.Error}
	}
	if decodeErr != nil {
		return "", &apperrors.MediaUploadError{Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", decodeErr)}
	}
	if result.ID == "" {
		return "", &apperrors.MediaUploadError{Status: resp.StatusCode, Message: "response carried no media id"}
	}
	logger.Debug("uploaded media", "media_id", result.ID, "bytes", len(media.Data))
	return result.ID, nil
}

// CreateStatus publishes a status. Each call carries a fresh Idempotency-Key.
func (c *Client) CreateStatus(ctx context.Context, instance, token string, status StatusRequest) (models.PublishedStatus, error) {
	body, err := json.Marshal(status)
	if err != nil {
		return models.PublishedStatus{}, &apperrors.PublishError{Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, instance+"/api/v1/statuses", token, "application/json", bytes.NewReader(body))
	if err != nil {
		return models.PublishedStatus{}, &apperrors.PublishError{Err: err}
	}
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.send(ctx, req)
	if err != nil {
		return models.PublishedStatus{}, &apperrors.PublishError{Err: err}
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return models.PublishedStatus{}, &apperrors.PublishError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	var published models.PublishedStatus
	if err := json.NewDecoder(resp.Body).Decode(&published); err != nil {
		return models.PublishedStatus{}, &apperrors.PublishError{Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if published.ID == "" {
		return models.PublishedStatus{}, &apperrors.PublishError{Status: resp.StatusCode, Message: "response carried no status id"}
	}
	return published, nil
}

// StatusVisibility looks up the visibility of an existing status.
func (c *Client) StatusVisibility(ctx context.Context, instance, token, id string) (models.Visibility, error) {
	resp, err := c.do(ctx, http.MethodGet, instance+"/api/v1/statuses/"+url.PathEscape(id), token, "", nil)
	if err != nil {
		return "", &apperrors.VisibilityLookupError{StatusID: id, Err: err}
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return "", &apperrors.VisibilityLookupError{StatusID: id, Status: resp.StatusCode}
	}

	var status models.PublishedStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", &apperrors.VisibilityLookupError{StatusID: id, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if !status.Visibility.Valid() {
		return "", &apperrors.VisibilityLookupError{StatusID: id, Err: fmt.Errorf("unknown visibility %q", status.Visibility)}
	}
	return status.Visibility, nil
}

// VerifyCredentials returns the account the token belongs to.
func (c *Client) VerifyCredentials(ctx context.Context, instance, token string) (Account, error) {
	resp, err := c.do(ctx, http.MethodGet, instance+"/api/v1/accounts/verify_credentials", token, "", nil)
	if err != nil {
		return Account{}, fmt.Errorf("failed to verify credentials: %w", err)
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return Account{}, &APIError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	var account Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return Account{}, fmt.Errorf("failed to decode account: %w", err)
	}
	return account, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint, token, contentType string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	logger.Debug("mastodon request", "method", req.Method, "url", req.URL.Redacted())
	return c.httpClient.Do(req)
}

func (c *Client) do(ctx context.Context, method, endpoint, token, contentType string, body io.Reader) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, endpoint, token, contentType, body)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, req)
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// errorMessage extracts the "error" field of a Mastodon error body.
func errorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return ""
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
