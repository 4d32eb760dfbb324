package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julianstephens/streaktoot/internal/cli"
	"github.com/julianstephens/streaktoot/internal/config"
	"github.com/julianstephens/streaktoot/internal/credentials"
	"github.com/julianstephens/streaktoot/internal/kvstore"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/storage"
)

type authorizerFunc func(ctx context.Context, authURL string) (string, error)

func (f authorizerFunc) Authorize(ctx context.Context, authURL string) (string, error) {
	return f(ctx, authURL)
}

// fakeInstance answers app registration, token exchange and credential
// verification.
func fakeInstance(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/apps":
			_ = json.NewEncoder(w).Encode(map[string]string{"client_id": "cid", "client_secret": "secret"})
		case "/oauth/token":
			_ = r.ParseForm()
			if r.PostForm.Get("code") != "the-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "tok-123456789",
				"token_type":   "Bearer",
				"scope":        "read:statuses write:statuses write:media",
			})
		case "/api/v1/accounts/verify_credentials":
			if r.Header.Get("Authorization") != "Bearer tok-123456789" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"The access token is invalid"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"1","username":"me","acct":"me"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupTestDB(t *testing.T) *cli.Context {
	t.Helper()
	store := storage.New(kvstore.NewMemoryStore())
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	cfg := &config.Config{HTTP: config.HTTPConfig{Timeout: 5 * time.Second, RateLimit: 100, Burst: 10}}
	ctx := cli.NewContext(store, cfg, credentials.StoreTokens(store))
	ctx.Authorizer = authorizerFunc(func(context.Context, string) (string, error) {
		return "the-code", nil
	})
	return ctx
}

func TestLoginCmd(t *testing.T) {
	srv := fakeInstance(t)
	ctx := setupTestDB(t)
	bg := context.Background()

	if err := (&LoginCmd{Instance: srv.URL + "/"}).Run(ctx); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	settings, _ := ctx.Store.GetSettings(bg)
	if settings.Instance != srv.URL {
		t.Errorf("Instance = %q, want %q", settings.Instance, srv.URL)
	}
	if !settings.EnableThreading {
		t.Error("login should enable threading")
	}
	token, err := ctx.Credentials.AccessToken(bg, srv.URL)
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if token.Token != "tok-123456789" {
		t.Errorf("Token = %q", token.Token)
	}

	if err := (&StatusCmd{}).Run(ctx); err != nil {
		t.Errorf("status failed: %v", err)
	}
}

func TestLoginCmd_NoInstance(t *testing.T) {
	ctx := setupTestDB(t)
	if err := (&LoginCmd{}).Run(ctx); err == nil {
		t.Error("login without an instance should fail")
	}
}

func TestLoginCmd_Cancelled(t *testing.T) {
	srv := fakeInstance(t)
	ctx := setupTestDB(t)
	ctx.Authorizer = authorizerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("user aborted")
	})

	if err := (&LoginCmd{Instance: srv.URL}).Run(ctx); err == nil {
		t.Fatal("cancelled login should fail")
	}
	settings, _ := ctx.Store.GetSettings(context.Background())
	if settings.EnableThreading {
		t.Error("threading must stay disabled when login fails")
	}
}

func TestLoginCmd_SwitchInstance(t *testing.T) {
	srv := fakeInstance(t)
	ctx := setupTestDB(t)
	bg := context.Background()

	settings, _ := ctx.Store.GetSettings(bg)
	settings.Instance = "https://old.example"
	_ = ctx.Store.SaveSettings(bg, settings)
	_ = ctx.Tokens.Save(bg, models.AccessToken{Instance: "https://old.example", Token: "old"})

	if err := (&LoginCmd{Instance: srv.URL}).Run(ctx); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := ctx.Credentials.AccessToken(bg, "https://old.example"); !errors.Is(err, credentials.ErrNoToken) {
		t.Errorf("old instance token should be gone, got %v", err)
	}
}

func TestLoginCmd_FailedSwitchKeepsToken(t *testing.T) {
	srv := fakeInstance(t)
	ctx := setupTestDB(t)
	bg := context.Background()

	if err := (&LoginCmd{Instance: srv.URL}).Run(ctx); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	if err := (&LoginCmd{Instance: broken.URL}).Run(ctx); err == nil {
		t.Fatal("login to an instance that refuses registration should fail")
	}

	settings, _ := ctx.Store.GetSettings(bg)
	if settings.Instance != srv.URL || !settings.EnableThreading {
		t.Errorf("settings changed by failed login: instance=%q threading=%v", settings.Instance, settings.EnableThreading)
	}
	token, err := ctx.Credentials.AccessToken(bg, srv.URL)
	if err != nil {
		t.Fatalf("token for the configured instance lost: %v", err)
	}
	if token.Token != "tok-123456789" {
		t.Errorf("Token = %q", token.Token)
	}
}

func TestStatusCmd_RejectedToken(t *testing.T) {
	srv := fakeInstance(t)
	ctx := setupTestDB(t)
	bg := context.Background()

	settings, _ := ctx.Store.GetSettings(bg)
	settings.Instance = srv.URL
	_ = ctx.Store.SaveSettings(bg, settings)
	_ = ctx.Tokens.Save(bg, models.AccessToken{Instance: srv.URL, Token: "revoked"})

	if err := (&StatusCmd{}).Run(ctx); err == nil {
		t.Error("status should fail when the instance rejects the token")
	}
}

func TestStatusCmd_NoInstance(t *testing.T) {
	ctx := setupTestDB(t)
	if err := (&StatusCmd{}).Run(ctx); err != nil {
		t.Errorf("status failed: %v", err)
	}
}

func TestLogoutCmd(t *testing.T) {
	ctx := setupTestDB(t)
	bg := context.Background()

	settings, _ := ctx.Store.GetSettings(bg)
	settings.Instance = "https://a.social"
	settings.EnableThreading = true
	_ = ctx.Store.SaveSettings(bg, settings)
	_ = ctx.Tokens.Save(bg, models.AccessToken{Instance: "https://a.social", Token: "tok"})

	if err := (&LogoutCmd{}).Run(ctx); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := ctx.Credentials.AccessToken(bg, "https://a.social"); !errors.Is(err, credentials.ErrNoToken) {
		t.Errorf("AccessToken() after logout error = %v", err)
	}
	settings, _ = ctx.Store.GetSettings(bg)
	if settings.EnableThreading {
		t.Error("logout should disable threading")
	}
}

func TestMaskToken(t *testing.T) {
	tests := map[string]string{
		"short":         "****",
		"tok-123456789": "tok-****6789",
	}
	for in, want := range tests {
		if got := maskToken(models.AccessToken{Token: in}); got != want {
			t.Errorf("maskToken(%q) = %q, want %q", in, got, want)
		}
	}
}
