package errors

import (
	"fmt"
	"net/http"
)

// ValidationError reports bad caller input: an unusable instance URL, an empty
// post, a missing reply id or a visibility below the thread floor.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validation is shorthand for constructing a *ValidationError.
func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RegistrationError is returned when the instance rejects the application
// registration request.
type RegistrationError struct {
	Instance string
	Status   int
	Err      error
}

func (e *RegistrationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to register app with %s: %d %s", e.Instance, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("failed to register app with %s: %v", e.Instance, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// AuthorizationError covers a cancelled authorization surface or a redirect
// that carried no usable code.
type AuthorizationError struct {
	Reason string
	Err    error
}

func (e *AuthorizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authorization failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authorization failed: %s", e.Reason)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// TokenExchangeError is returned when the token endpoint does not answer with
// a success status.
type TokenExchangeError struct {
	Instance string
	Status   int
	Err      error
}

func (e *TokenExchangeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token request to %s failed: %d %s", e.Instance, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("token request to %s failed: %v", e.Instance, e.Err)
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// MediaUploadError is returned when the media endpoint fails or answers
// without a media id.
type MediaUploadError struct {
	Status  int
	Message string
	Err     error
}

func (e *MediaUploadError) Error() string {
	msg := "media upload failed"
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: %d", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *MediaUploadError) Unwrap() error { return e.Err }

// PublishError is returned when status creation fails. Status is the HTTP
// status code, or 0 when the request never got a response.
type PublishError struct {
	Status  int
	Message string
	Err     error
}

func (e *PublishError) Error() string {
	msg := "failed to publish"
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: %d", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PublishError) Unwrap() error { return e.Err }

// Unauthorized reports whether the instance rejected the bearer token.
func (e *PublishError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// VisibilityLookupError is non-fatal: callers degrade the visibility floor to
// public and surface it as a warning.
type VisibilityLookupError struct {
	StatusID string
	Status   int
	Err      error
}

func (e *VisibilityLookupError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to get visibility of status %s: %d", e.StatusID, e.Status)
	}
	return fmt.Sprintf("failed to get visibility of status %s: %v", e.StatusID, e.Err)
}

func (e *VisibilityLookupError) Unwrap() error { return e.Err }
