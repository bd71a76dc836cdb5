// Package storage is the boundary to the attachment object store. The
// messaging core only ever sees opaque keys and coarse type tags.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Coarse attachment type tags stored alongside message attachments.
const (
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeAudio    = "audio"
	TypeDocument = "document"
)

// ObjectStore accepts raw attachment bytes and returns an opaque key plus the
// inferred coarse type.
type ObjectStore interface {
	Put(ctx context.Context, filename string, r io.Reader) (key, coarseType string, err error)
}

// DiskStore is an ObjectStore writing attachments under a root directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed and returns a DiskStore.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", root, err)
	}
	return &DiskStore{root: root}, nil
}

// Put stores the attachment under a fresh uuid key, keeping the original
// extension, and sniffs the coarse type from the content.
func (s *DiskStore) Put(ctx context.Context, filename string, r io.Reader) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("storage: read attachment: %w", err)
	}
	key := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	if err := os.WriteFile(filepath.Join(s.root, key), data, 0o644); err != nil {
		return "", "", fmt.Errorf("storage: write %s: %w", key, err)
	}
	return key, CoarseType(mimetype.Detect(data).String()), nil
}

// Open returns a reader for a previously stored attachment.
func (s *DiskStore) Open(key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.Base(key)))
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", key, err)
	}
	return f, nil
}

// CoarseType collapses a MIME type into one of the four stored tags.
func CoarseType(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return TypeImage
	case strings.HasPrefix(mime, "video/"):
		return TypeVideo
	case strings.HasPrefix(mime, "audio/"):
		return TypeAudio
	default:
		return TypeDocument
	}
}
