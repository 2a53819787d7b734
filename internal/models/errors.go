package models

import (
	"errors"
	"fmt"
)

var (
	ErrPostNotFound        = errors.New("post not found")
	ErrAssetNotFound       = errors.New("media asset not found")
	ErrCredentialsNotFound = errors.New("platform credentials not found")
	ErrStatusConflict      = errors.New("post status changed concurrently")
	ErrInvalidTransition   = errors.New("invalid post status transition")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UpstreamError is a non-success answer from a platform API.
type UpstreamError struct {
	Platform   Platform
	Step       string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Platform, e.Step, e.Err)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Platform, e.Step, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PublishError is returned when a publish attempt ended with the post marked failed.
type PublishError struct {
	PostID   string
	Platform Platform
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish post %s to %s: %v", e.PostID, e.Platform, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

const (
	ErrorCodeValidation   = "validation"
	ErrorCodeNotFound     = "not_found"
	ErrorCodeCredentials  = "credentials_not_found"
	ErrorCodeUpstream     = "upstream"
	ErrorCodeConflict     = "conflict"
	ErrorCodeStore        = "store"
	ErrorCodeInternal     = "internal"
	ErrorCodeUnauthorized = "unauthorized"
)

// ErrorCode classifies err into a stable code that can be shown to clients.
func ErrorCode(err error) string {
	var (
		ve *ValidationError
		ue *UpstreamError
		se *StoreError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ErrorCodeValidation
	case errors.Is(err, ErrPostNotFound), errors.Is(err, ErrAssetNotFound):
		return ErrorCodeNotFound
	case errors.Is(err, ErrCredentialsNotFound):
		return ErrorCodeCredentials
	case errors.Is(err, ErrStatusConflict), errors.Is(err, ErrInvalidTransition):
		return ErrorCodeConflict
	case errors.As(err, &ue):
		return ErrorCodeUpstream
	case errors.As(err, &se):
		return ErrorCodeStore
	}
	return ErrorCodeInternal
}

var userMessages = map[string]string{
	ErrorCodeValidation:   "The post content is not valid for this platform.",
	ErrorCodeNotFound:     "The requested item could not be found.",
	ErrorCodeCredentials:  "This platform is not connected. Add your account credentials in settings and try again.",
	ErrorCodeUpstream:     "The platform rejected the post. Check your account connection and try again later.",
	ErrorCodeConflict:     "The post is already being published or can no longer be changed.",
	ErrorCodeStore:        "We could not save your changes. Please try again.",
	ErrorCodeInternal:     "Something went wrong. Please try again.",
	ErrorCodeUnauthorized: "Your session has expired. Please sign in again.",
}

func UserMessage(code string) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return userMessages[ErrorCodeInternal]
}
