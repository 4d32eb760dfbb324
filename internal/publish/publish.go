// Package publish turns a draft into a status on the instance: mentions are
// stripped, the optional attachment is uploaded, then the status is created.
package publish

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "github.com/julianstephens/streaktoot/internal/errors"
	"github.com/julianstephens/streaktoot/internal/logger"
	"github.com/julianstephens/streaktoot/internal/mastodon"
	"github.com/julianstephens/streaktoot/internal/models"
)

// MaxMediaBytes bounds attachments read from disk.
const MaxMediaBytes = 16 << 20

var mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9_]+)(@[a-zA-Z0-9.-]+)?`)

// API is the part of the Mastodon client the pipeline needs.
type API interface {
	UploadMedia(ctx context.Context, instance, token string, media mastodon.Media) (string, error)
	CreateStatus(ctx context.Context, instance, token string, status mastodon.StatusRequest) (models.PublishedStatus, error)
}

type Request struct {
	Instance    string
	Token       string
	Text        string
	Media       *mastodon.Media
	Visibility  models.Visibility
	InReplyToID string
}

type Pipeline struct {
	api API
}

func NewPipeline(api API) *Pipeline {
	return &Pipeline{api: api}
}

// StripMentions turns @handle and @handle@domain into handle so check-ins
// never notify other accounts.
func StripMentions(text string) string {
	return mentionPattern.ReplaceAllString(text, "$1")
}

// Publish creates the status described by req. The attachment, if any, is
// uploaded before the status is created; nothing is retried.
func (p *Pipeline) Publish(ctx context.Context, req Request) (models.PublishedStatus, error) {
	text := StripMentions(req.Text)
	if strings.TrimSpace(text) == "" && req.Media == nil {
		return models.PublishedStatus{}, apperrors.Validation("status", "post text cannot be empty")
	}
	if req.Token == "" {
		return models.PublishedStatus{}, apperrors.Validation("token", "no access token")
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if !visibility.Valid() {
		return models.PublishedStatus{}, apperrors.Validation("visibility", "unknown visibility %q", visibility)
	}

	status := mastodon.StatusRequest{
		Status:      text,
		Visibility:  visibility,
		InReplyToID: req.InReplyToID,
	}

	if req.Media != nil {
		mediaID, err := p.api.UploadMedia(ctx, req.Instance, req.Token, *req.Media)
		if err != nil {
			return models.PublishedStatus{}, err
		}
		status.MediaIDs = []string{mediaID}
	}

	published, err := p.api.CreateStatus(ctx, req.Instance, req.Token, status)
	if err != nil {
		logger.Warn("publish failed", "instance", req.Instance, "err", err)
		return models.PublishedStatus{}, err
	}
	logger.Info("published status",
		"instance", req.Instance,
		"status_id", published.ID,
		"visibility", visibility,
		"reply", req.InReplyToID != "",
		"media", len(status.MediaIDs))
	return published, nil
}

// LoadMedia reads an image from disk for upload.
func LoadMedia(path, description string) (*mastodon.Media, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	if info.IsDir() {
		return nil, apperrors.Validation("media", "%s is a directory", path)
	}
	if info.Size() > MaxMediaBytes {
		return nil, apperrors.Validation("media", "%s is larger than %d MB", path, MaxMediaBytes>>20)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperrors.Validation("media", "%s is not an image (%s)", path, contentType)
	}

	return &mastodon.Media{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Data:        data,
		Description: strings.TrimSpace(description),
	}, nil
}
