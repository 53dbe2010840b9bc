package images

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/framelab/dailyframe/internal/ids"
)

// maxImageBytes caps accepted upload payloads.
const maxImageBytes = 5 << 20

var (
	// ErrUnsupportedType indicates the upload's MIME type is not accepted.
	ErrUnsupportedType = errors.New("images: unsupported content type")
	// ErrEmptyImage indicates an upload with no payload bytes.
	ErrEmptyImage = errors.New("images: empty payload")
	// ErrImageTooLarge indicates the payload exceeds the size cap.
	ErrImageTooLarge = errors.New("images: payload too large")
)

var extensionByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var typeByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// StoredImage describes a persisted upload: the storage key is
// location-independent, the URL is what clients render.
type StoredImage struct {
	Key string
	URL string
}

// Store persists post images. Storage mechanics beyond this seam are out of
// the core's scope.
type Store interface {
	Save(ctx context.Context, userID, fileName, contentType string, data []byte) (StoredImage, error)
}

// FSStoreConfig configures the filesystem-backed image store.
type FSStoreConfig struct {
	Directory  string
	BaseURL    string
	IDProvider ids.Provider
}

// FSStore writes images beneath a local directory, keyed user/<uuid><ext>.
type FSStore struct {
	directory  string
	baseURL    string
	idProvider ids.Provider
}

// NewFSStore constructs a filesystem image store.
func NewFSStore(cfg FSStoreConfig) (*FSStore, error) {
	directory := strings.TrimSpace(cfg.Directory)
	if directory == "" {
		return nil, errors.New("images: directory required")
	}
	if cfg.IDProvider == nil {
		return nil, errors.New("images: id provider required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "/uploads"
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("images: create directory: %w", err)
	}
	return &FSStore{directory: directory, baseURL: baseURL, idProvider: cfg.IDProvider}, nil
}

// Save validates and writes the payload, returning its key and public URL.
// The upload's original name never reaches disk; its extension must agree
// with the declared content type.
func (s *FSStore) Save(_ context.Context, userID, fileName, contentType string, data []byte) (StoredImage, error) {
	declaredType := strings.ToLower(strings.TrimSpace(contentType))
	extension, ok := extensionByType[declaredType]
	if !ok {
		return StoredImage{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if nameExt := strings.ToLower(filepath.Ext(fileName)); nameExt != "" {
		if typeByExtension[nameExt] != declaredType {
			return StoredImage{}, fmt.Errorf("%w: %s named %s", ErrUnsupportedType, contentType, fileName)
		}
	}
	if len(data) == 0 {
		return StoredImage{}, ErrEmptyImage
	}
	if len(data) > maxImageBytes {
		return StoredImage{}, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}

	imageID, err := s.idProvider.NewID()
	if err != nil {
		return StoredImage{}, err
	}
	key := path.Join(userID, imageID+extension)

	target := filepath.Join(s.directory, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return StoredImage{}, fmt.Errorf("images: create user directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return StoredImage{}, fmt.Errorf("images: write payload: %w", err)
	}

	return StoredImage{Key: key, URL: s.baseURL + "/" + key}, nil
}
