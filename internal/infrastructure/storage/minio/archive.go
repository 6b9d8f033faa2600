package minio

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/errors"
)

// maxTextBytes caps one archived document at 16MB of UTF-8 text.
const maxTextBytes = 16 << 20

const textContentType = "text/plain; charset=utf-8"

// ObjectKey renders the archive key for a document's raw text.
func ObjectKey(caseID, documentID string) string {
	return fmt.Sprintf("cases/%s/%s.txt", caseID, documentID)
}

// DocumentArchive stores and retrieves raw document text. Keys follow
// ObjectKey so a case's documents group under one prefix.
type DocumentArchive struct {
	store  ObjectStoreAPI
	bucket string
	logger logging.Logger
}

// NewDocumentArchive builds an archive over the client's bucket.
func NewDocumentArchive(client *Client, log logging.Logger) *DocumentArchive {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DocumentArchive{
		store:  client.store,
		bucket: client.bucket,
		logger: log,
	}
}

// PutText archives text under key, overwriting any previous version.
func (a *DocumentArchive) PutText(ctx context.Context, key, text string) error {
	if key == "" {
		return errors.New(errors.ErrCodeValidation, "archive key required")
	}
	if text == "" {
		return errors.New(errors.ErrCodeValidation, "archive text required")
	}
	if len(text) > maxTextBytes {
		return errors.Newf(errors.ErrCodeValidation, "document text exceeds %d bytes", maxTextBytes)
	}

	_, err := a.store.PutObject(ctx, a.bucket, key, strings.NewReader(text), int64(len(text)), textContentType)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageUploadFailed, "failed to archive document text")
	}

	a.logger.Debug("Document text archived",
		logging.String("key", key),
		logging.Int("bytes", len(text)),
	)
	return nil
}

// GetText loads the archived text under key. A missing key returns
// ErrObjectNotFound.
func (a *DocumentArchive) GetText(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New(errors.ErrCodeValidation, "archive key required")
	}

	obj, err := a.store.GetObject(ctx, a.bucket, key)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeStorageObjectNotFound) {
			return "", err
		}
		return "", errors.Wrap(err, errors.ErrCodeStorageDownloadFailed, "failed to open archived text")
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxTextBytes+1))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageDownloadFailed, "failed to read archived text")
	}
	if len(data) > maxTextBytes {
		return "", errors.Newf(errors.ErrCodeStorageDownloadFailed, "archived object exceeds %d bytes", maxTextBytes)
	}
	return string(data), nil
}

// Exists reports whether key has archived text behind it.
func (a *DocumentArchive) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New(errors.ErrCodeValidation, "archive key required")
	}
	_, err := a.store.StatObject(ctx, a.bucket, key)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeStorageObjectNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageUnavailable, "failed to stat archived text")
	}
	return true, nil
}

// Remove deletes the archived text under key. Removing a missing key is
// not an error.
func (a *DocumentArchive) Remove(ctx context.Context, key string) error {
	if key == "" {
		return errors.New(errors.ErrCodeValidation, "archive key required")
	}
	if err := a.store.RemoveObject(ctx, a.bucket, key); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageUnavailable, "failed to remove archived text")
	}
	a.logger.Debug("Archived text removed", logging.String("key", key))
	return nil
}
