package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore persists objects on disk under a base directory and serves them
// through signed download tokens.
type LocalStore struct {
	scope   string
	baseDir string
	baseURL string
	public  bool
	signer  *Signer
	now     func() time.Time
}

// LocalOptions configures a LocalStore.
type LocalOptions struct {
	// Scope namespaces the tokens issued by this store, e.g. "report-cards".
	Scope   string
	BaseDir string
	// BaseURL is the externally visible prefix of the download route, e.g. "/api/v1/files".
	BaseURL string
	Public  bool
	Signer  *Signer
}

// NewLocalStore ensures the base directory exists and returns a handle.
func NewLocalStore(opts LocalOptions) (*LocalStore, error) {
	if opts.Scope == "" {
		return nil, fmt.Errorf("local store scope required")
	}
	if opts.BaseDir == "" {
		opts.BaseDir = "./storage"
	}
	if opts.Signer == nil {
		return nil, fmt.Errorf("local store signer required")
	}
	if err := os.MkdirAll(opts.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStore{
		scope:   opts.Scope,
		baseDir: opts.BaseDir,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		public:  opts.Public,
		signer:  opts.Signer,
		now:     time.Now,
	}, nil
}

// Scope returns the token namespace of the store.
func (s *LocalStore) Scope() string { return s.scope }

// Upload writes data to the relative path under the base dir.
func (s *LocalStore) Upload(_ context.Context, relPath string, data []byte, _ string) error {
	path, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare storage directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

// Remove deletes the given objects. Missing objects are ignored.
func (s *LocalStore) Remove(_ context.Context, paths []string) error {
	for _, relPath := range paths {
		path, err := s.resolve(relPath)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete object %s: %w", relPath, err)
		}
	}
	return nil
}

// Read returns the content of a stored object.
func (s *LocalStore) Read(_ context.Context, relPath string) ([]byte, error) {
	path, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// PublicURL returns a long-lived download URL. Local files are only reachable
// through signed tokens, so public stores sign with a one year expiry.
func (s *LocalStore) PublicURL(relPath string) string {
	token, err := s.signer.Sign(s.scope, relPath, s.now().AddDate(1, 0, 0))
	if err != nil {
		return ""
	}
	return s.baseURL + "/" + token
}

// SignedURL returns a download URL valid for ttl.
func (s *LocalStore) SignedURL(_ context.Context, relPath string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	expiresAt := s.now().Add(ttl)
	token, err := s.signer.Sign(s.scope, relPath, expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.baseURL + "/" + token, expiresAt, nil
}

// Public reports whether URLs should be handed out without expiry.
func (s *LocalStore) Public() bool { return s.public }

// CleanupOlderThan removes files older than the provided TTL and returns deleted names.
func (s *LocalStore) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := s.now().Add(-ttl)
	deleted := make([]string, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			rel = path
		}
		deleted = append(deleted, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup storage: %w", err)
	}
	return deleted, nil
}

func (s *LocalStore) resolve(relPath string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(relPath))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid object path %q", relPath)
	}
	return filepath.Join(s.baseDir, clean), nil
}
