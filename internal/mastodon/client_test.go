package mastodon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/julianstephens/streaktoot/internal/errors"
	"github.com/julianstephens/streaktoot/internal/models"
)

func newTestClient() *Client {
	return NewClient(Config{RateLimit: 1000, Burst: 100})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRegisterApp(t *testing.T) {
	var got AppRegistration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/apps" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"client_id": "cid", "client_secret": "secret", "name": "streaktoot"})
	}))
	defer srv.Close()

	app := AppRegistration{ClientName: "streaktoot", RedirectURI: "urn:ietf:wg:oauth:2.0:oob", Scopes: "read:statuses write:statuses write:media"}
	cred, err := newTestClient().RegisterApp(context.Background(), srv.URL, app)
	if err != nil {
		t.Fatalf("RegisterApp() error = %v", err)
	}
	if diff := cmp.Diff(app, got); diff != "" {
		t.Errorf("registration payload mismatch (-want +got):\n%s", diff)
	}
	if cred.ClientID != "cid" || cred.ClientSecret != "secret" {
		t.Errorf("RegisterApp() = %+v", cred)
	}
}

func TestRegisterAppFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Validation failed"})
	}))
	defer srv.Close()

	_, err := newTestClient().RegisterApp(context.Background(), srv.URL, AppRegistration{ClientName: "x"})
	var regErr *apperrors.RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistrationError, got %v", err)
	}
	if regErr.Status != http.StatusUnprocessableEntity {
		t.Errorf("Status = %d, want 422", regErr.Status)
	}
}

func TestOAuthConfigAuthCodeURL(t *testing.T) {
	conf := OAuthConfig("https://a.social", models.ClientCredential{ClientID: "cid", ClientSecret: "s"},
		"urn:ietf:wg:oauth:2.0:oob", "read:statuses write:statuses")

	u, err := url.Parse(conf.AuthCodeURL(""))
	if err != nil {
		t.Fatalf("parse auth URL: %v", err)
	}
	if u.Host != "a.social" || u.Path != "/oauth/authorize" {
		t.Errorf("auth URL = %s", u)
	}
	q := u.Query()
	want := map[string]string{
		"client_id":     "cid",
		"response_type": "code",
		"scope":         "read:statuses write:statuses",
		"redirect_uri":  "urn:ietf:wg:oauth:2.0:oob",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("query %s = %q, want %q", k, q.Get(k), v)
		}
	}
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
			return
		}
		want := map[string]string{
			"client_id":     "cid",
			"client_secret": "secret",
			"grant_type":    "authorization_code",
			"code":          "the-code",
			"redirect_uri":  "urn:ietf:wg:oauth:2.0:oob",
		}
		for k, v := range want {
			if got := r.PostForm.Get(k); got != v {
				t.Errorf("form %s = %q, want %q", k, got, v)
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": "tok",
			"token_type":   "Bearer",
			"scope":        "read:statuses write:statuses",
			"created_at":   1573979017,
		})
	}))
	defer srv.Close()

	conf := OAuthConfig(srv.URL, models.ClientCredential{ClientID: "cid", ClientSecret: "secret"},
		"urn:ietf:wg:oauth:2.0:oob", "read:statuses write:statuses")
	token, err := newTestClient().ExchangeCode(context.Background(), srv.URL, conf, "the-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if token.Token != "tok" || token.Instance != srv.URL {
		t.Errorf("ExchangeCode() = %+v", token)
	}
	if token.Scope != "read:statuses write:statuses" {
		t.Errorf("Scope = %q", token.Scope)
	}
}

func TestExchangeCodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
	}))
	defer srv.Close()

	conf := OAuthConfig(srv.URL, models.ClientCredential{ClientID: "cid", ClientSecret: "secret"}, "urn:ietf:wg:oauth:2.0:oob", "read")
	_, err := newTestClient().ExchangeCode(context.Background(), srv.URL, conf, "bad")
	var exErr *apperrors.TokenExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected TokenExchangeError, got %v", err)
	}
	if exErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", exErr.Status)
	}
}

func TestUploadMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/media" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "PNGDATA" {
			t.Errorf("file content = %q", data)
		}
		if header.Filename != "day.png" {
			t.Errorf("filename = %q", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("part Content-Type = %q", ct)
		}
		if d := r.FormValue("description"); d != "a heatmap" {
			t.Errorf("description = %q", d)
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "m1", "type": "image"})
	}))
	defer srv.Close()

	id, err := newTestClient().UploadMedia(context.Background(), srv.URL, "tok", Media{
		Filename: "day.png", ContentType: "image/png", Data: []byte("PNGDATA"), Description: "a heatmap",
	})
	if err != nil {
		t.Fatalf("UploadMedia() error = %v", err)
	}
	if id != "m1" {
		t.Errorf("UploadMedia() = %q, want m1", id)
	}
}

func TestUploadMediaFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       map[string]string
		wantStatus int
		wantMsg    string
	}{
		{"error status", http.StatusUnprocessableEntity, map[string]string{"error": "File type not supported"}, 422, "File type not supported"},
		{"missing id", http.StatusOK, map[string]string{"type": "image"}, 200, "response carried no media id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient().UploadMedia(context.Background(), srv.URL, "tok", Media{Filename: "x.png", Data: []byte("x")})
			var mErr *apperrors.MediaUploadError
			if !errors.As(err, &mErr) {
				t.Fatalf("expected MediaUploadError, got %v", err)
			}
			if mErr.Status != tt.wantStatus || mErr.Message != tt.wantMsg {
				t.Errorf("got status %d message %q, want %d %q", mErr.Status, mErr.Message, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}

func TestCreateStatus(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/statuses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Idempotency-Key") == "" {
			t.Error("missing Idempotency-Key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "111", "url": "https://a.social/@me/111", "visibility": "unlisted"})
	}))
	defer srv.Close()

	status, err := newTestClient().CreateStatus(context.Background(), srv.URL, "tok", StatusRequest{
		Status:      "hello",
		Visibility:  models.VisibilityUnlisted,
		InReplyToID: "100",
		MediaIDs:    []string{"m1"},
	})
	if err != nil {
		t.Fatalf("CreateStatus() error = %v", err)
	}
	want := models.PublishedStatus{ID: "111", URL: "https://a.social/@me/111", Visibility: models.VisibilityUnlisted}
	if diff := cmp.Diff(want, status); diff != "" {
		t.Errorf("CreateStatus() mismatch (-want +got):\n%s", diff)
	}

	wantBody := map[string]interface{}{
		"status":         "hello",
		"visibility":     "unlisted",
		"in_reply_to_id": "100",
		"media_ids":      []interface{}{"m1"},
	}
	if diff := cmp.Diff(wantBody, got); diff != "" {
		t.Errorf("status payload mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateStatusOmitsEmptyOptionalFields(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, map[string]string{"id": "1"})
	}))
	defer srv.Close()

	if _, err := newTestClient().CreateStatus(context.Background(), srv.URL, "tok", StatusRequest{Status: "hi", Visibility: models.VisibilityPublic}); err != nil {
		t.Fatalf("CreateStatus() error = %v", err)
	}
	for _, key := range []string{"in_reply_to_id", "media_ids"} {
		if _, ok := got[key]; ok {
			t.Errorf("payload should omit %s: %v", key, got)
		}
	}
}

func TestCreateStatusUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "The access token is invalid"})
	}))
	defer srv.Close()

	_, err := newTestClient().CreateStatus(context.Background(), srv.URL, "tok", StatusRequest{Status: "hi", Visibility: models.VisibilityPublic})
	var pErr *apperrors.PublishError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if !pErr.Unauthorized() {
		t.Errorf("Unauthorized() = false for status %d", pErr.Status)
	}
	if pErr.Message != "The access token is invalid" {
		t.Errorf("Message = %q", pErr.Message)
	}
}

func TestStatusVisibility(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/statuses/111":
			writeJSON(w, http.StatusOK, map[string]string{"id": "111", "visibility": "private"})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Record not found"})
		}
	}))
	defer srv.Close()

	client := newTestClient()
	vis, err := client.StatusVisibility(context.Background(), srv.URL, "tok", "111")
	if err != nil {
		t.Fatalf("StatusVisibility() error = %v", err)
	}
	if vis != models.VisibilityPrivate {
		t.Errorf("StatusVisibility() = %q, want private", vis)
	}

	_, err = client.StatusVisibility(context.Background(), srv.URL, "tok", "999")
	var lErr *apperrors.VisibilityLookupError
	if !errors.As(err, &lErr) {
		t.Fatalf("expected VisibilityLookupError, got %v", err)
	}
	if lErr.StatusID != "999" || lErr.Status != http.StatusNotFound {
		t.Errorf("got %+v", lErr)
	}
}

func TestVerifyCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "The access token is invalid"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "1", "username": "me", "acct": "me", "url": "https://a.social/@me"})
	}))
	defer srv.Close()

	client := newTestClient()
	account, err := client.VerifyCredentials(context.Background(), srv.URL, "good")
	if err != nil {
		t.Fatalf("VerifyCredentials() error = %v", err)
	}
	if account.Username != "me" {
		t.Errorf("Username = %q", account.Username)
	}

	_, err = client.VerifyCredentials(context.Background(), srv.URL, "bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if !strings.Contains(apiErr.Error(), "access token is invalid") {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient().CreateStatus(ctx, "http://127.0.0.1:1", "tok", StatusRequest{Status: "hi"})
	var pErr *apperrors.PublishError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if pErr.Status != 0 {
		t.Errorf("Status = %d, want 0", pErr.Status)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{})
	if c.httpClient.Timeout <= 0 {
		t.Error("expected default timeout")
	}
	if c.limiter.Burst() <= 0 {
		t.Error("expected default burst")
	}
	if !strings.HasPrefix(c.userAgent, "streaktoot/") {
		t.Errorf("userAgent = %q", c.userAgent)
	}
}
