package service

import (
	"context"
	"errors"
	"mime"
	"path"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/gradeflow-api/pkg/errors"
	"github.com/noah-isme/gradeflow-api/pkg/storage"
)

type tokenVerifier interface {
	Verify(token string, now time.Time) (scope, relPath string, expiresAt time.Time, err error)
}

type scopedReader interface {
	Scope() string
	Read(ctx context.Context, relPath string) ([]byte, error)
}

// DownloadedFile is the payload served for a signed download token.
type DownloadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FileService resolves signed download tokens against the local stores.
type FileService struct {
	verifier tokenVerifier
	stores   map[string]scopedReader
	logger   *zap.Logger
	now      func() time.Time
}

// NewFileService registers every store by its token scope.
func NewFileService(verifier tokenVerifier, logger *zap.Logger, stores ...scopedReader) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	byScope := make(map[string]scopedReader, len(stores))
	for _, st := range stores {
		if st != nil {
			byScope[st.Scope()] = st
		}
	}
	return &FileService{verifier: verifier, stores: byScope, logger: logger, now: time.Now}
}

// Download verifies token and returns the referenced file.
func (s *FileService) Download(ctx context.Context, token string) (*DownloadedFile, error) {
	scope, relPath, _, err := s.verifier.Verify(token, s.now())
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	case err != nil:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}

	store, ok := s.stores[scope]
	if !ok {
		s.logger.Warn("download token for unknown scope", zap.String("scope", scope))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	data, err := store.Read(ctx, relPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read file")
	}

	name := path.Base(relPath)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &DownloadedFile{Filename: name, ContentType: contentType, Data: data}, nil
}
