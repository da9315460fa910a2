package storage

import (
	"context"
	"errors"
	"time"
)

// ContentTypePDF is the MIME type used for rendered report cards.
const ContentTypePDF = "application/pdf"

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidToken is returned for malformed or tampered download tokens.
	ErrInvalidToken = errors.New("storage: invalid token")
	// ErrTokenExpired is returned when a download token is past its expiry.
	ErrTokenExpired = errors.New("storage: token expired")
)

// ObjectStore persists generated documents and hands out URLs to them.
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Remove(ctx context.Context, paths []string) error
	PublicURL(path string) string
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, time.Time, error)
	Public() bool
}
