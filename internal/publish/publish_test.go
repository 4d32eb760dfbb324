package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/julianstephens/streaktoot/internal/errors"
	"github.com/julianstephens/streaktoot/internal/mastodon"
	"github.com/julianstephens/streaktoot/internal/models"
)

type fakeAPI struct {
	calls     []string
	uploadErr error
	statusErr error
	lastReq   mastodon.StatusRequest
}

func (f *fakeAPI) UploadMedia(_ context.Context, _, _ string, media mastodon.Media) (string, error) {
	f.calls = append(f.calls, "media")
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "m1", nil
}

func (f *fakeAPI) CreateStatus(_ context.Context, _, _ string, status mastodon.StatusRequest) (models.PublishedStatus, error) {
	f.calls = append(f.calls, "status")
	f.lastReq = status
	if f.statusErr != nil {
		return models.PublishedStatus{}, f.statusErr
	}
	return models.PublishedStatus{ID: "111", Visibility: status.Visibility}, nil
}

func TestStripMentions(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello @alice@example.social how are you", "hello alice how are you"},
		{"@bob", "bob"},
		{"cc @a_b and @c@d.e", "cc a_b and c"},
		{"no mentions here", "no mentions here"},
		{"Day 3 🔥", "Day 3 🔥"},
	}
	for _, tt := range tests {
		if got := StripMentions(tt.input); got != tt.want {
			t.Errorf("StripMentions(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPublishTextOnly(t *testing.T) {
	api := &fakeAPI{}
	p := NewPipeline(api)

	status, err := p.Publish(context.Background(), Request{
		Instance:   "https://a.social",
		Token:      "tok",
		Text:       "Day 2 with @alice@example.social",
		Visibility: models.VisibilityUnlisted,
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if status.ID != "111" {
		t.Errorf("Publish() id = %q", status.ID)
	}
	if diff := cmp.Diff([]string{"status"}, api.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	want := mastodon.StatusRequest{Status: "Day 2 with alice", Visibility: models.VisibilityUnlisted}
	if diff := cmp.Diff(want, api.lastReq); diff != "" {
		t.Errorf("status request mismatch (-want +got):\n%s", diff)
	}
}

func TestPublishMediaBeforeStatus(t *testing.T) {
	api := &fakeAPI{}
	p := NewPipeline(api)

	_, err := p.Publish(context.Background(), Request{
		Instance:    "https://a.social",
		Token:       "tok",
		Text:        "with picture",
		Media:       &mastodon.Media{Filename: "a.png", Data: []byte("x")},
		Visibility:  models.VisibilityPrivate,
		InReplyToID: "100",
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if diff := cmp.Diff([]string{"media", "status"}, api.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"m1"}, api.lastReq.MediaIDs); diff != "" {
		t.Errorf("media ids mismatch (-want +got):\n%s", diff)
	}
	if api.lastReq.InReplyToID != "100" {
		t.Errorf("InReplyToID = %q", api.lastReq.InReplyToID)
	}
}

func TestPublishMediaFailureSkipsStatus(t *testing.T) {
	api := &fakeAPI{uploadErr: &apperrors.MediaUploadError{Status: 422}}
	p := NewPipeline(api)

	_, err := p.Publish(context.Background(), Request{
		Instance: "https://a.social", Token: "tok", Text: "x",
		Media: &mastodon.Media{Filename: "a.png", Data: []byte("x")},
	})
	var mErr *apperrors.MediaUploadError
	if !errors.As(err, &mErr) {
		t.Fatalf("expected MediaUploadError, got %v", err)
	}
	if diff := cmp.Diff([]string{"media"}, api.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPublishValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"empty text", Request{Token: "tok", Text: "   "}},
		{"no token", Request{Text: "hi"}},
		{"bad visibility", Request{Token: "tok", Text: "hi", Visibility: "friends"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			_, err := NewPipeline(api).Publish(context.Background(), tt.req)
			var vErr *apperrors.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(api.calls) != 0 {
				t.Errorf("no request expected, got %v", api.calls)
			}
		})
	}
}

func TestPublishDefaultsToPublic(t *testing.T) {
	api := &fakeAPI{}
	if _, err := NewPipeline(api).Publish(context.Background(), Request{Token: "tok", Text: "hi"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if api.lastReq.Visibility != models.VisibilityPublic {
		t.Errorf("Visibility = %q, want public", api.lastReq.Visibility)
	}
}

func TestPublishAgainstServer(t *testing.T) {
	var order []string
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/media":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "m9"})
		case "/api/v1/statuses":
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "222", "visibility": "private"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := mastodon.NewClient(mastodon.Config{RateLimit: 1000, Burst: 10})
	status, err := NewPipeline(client).Publish(context.Background(), Request{
		Instance:    srv.URL,
		Token:       "tok",
		Text:        "hello @alice@example.social",
		Media:       &mastodon.Media{Filename: "a.png", ContentType: "image/png", Data: []byte("png")},
		Visibility:  models.VisibilityPrivate,
		InReplyToID: "111",
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if status.ID != "222" {
		t.Errorf("status id = %q, want 222", status.ID)
	}
	if diff := cmp.Diff([]string{"/api/v1/media", "/api/v1/statuses"}, order); diff != "" {
		t.Errorf("request order mismatch (-want +got):\n%s", diff)
	}
	if body["status"] != "hello alice" || body["in_reply_to_id"] != "111" {
		t.Errorf("status body = %v", body)
	}
}

func TestLoadMedia(t *testing.T) {
	dir := t.TempDir()
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	imgPath := filepath.Join(dir, "heatmap.png")
	if err := os.WriteFile(imgPath, png, 0o644); err != nil {
		t.Fatal(err)
	}
	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("just text"), 0o644); err != nil {
		t.Fatal(err)
	}

	media, err := LoadMedia(imgPath, "  two weeks of runs ")
	if err != nil {
		t.Fatalf("LoadMedia() error = %v", err)
	}
	if media.ContentType != "image/png" || media.Filename != "heatmap.png" {
		t.Errorf("LoadMedia() = %s %s", media.Filename, media.ContentType)
	}
	if media.Description != "two weeks of runs" {
		t.Errorf("Description = %q", media.Description)
	}

	var vErr *apperrors.ValidationError
	if _, err := LoadMedia(txtPath, ""); !errors.As(err, &vErr) {
		t.Errorf("LoadMedia(text) error = %v, want ValidationError", err)
	}
	if _, err := LoadMedia(dir, ""); !errors.As(err, &vErr) {
		t.Errorf("LoadMedia(dir) error = %v, want ValidationError", err)
	}
	if _, err := LoadMedia(filepath.Join(dir, "missing.png"), ""); err == nil {
		t.Error("LoadMedia(missing) should fail")
	}
}
