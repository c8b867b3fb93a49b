package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

// MaxImageSize : 5 MB
const MaxImageSize = 5 << 20

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// FileStore écrit les images sur disque ; le serveur HTTP les expose sous baseURL.
type FileStore struct {
	dir     string
	baseURL string
}

func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("asset dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FileStore) Put(ctx context.Context, ownerID string, data []byte) (*ports.Asset, error) {
	if len(data) == 0 {
		return nil, &domain.ValidationError{Field: "image", Reason: "is required"}
	}
	if len(data) > MaxImageSize {
		return nil, &domain.ValidationError{Field: "image", Reason: "must be at most 5 MB"}
	}

	// Le type vient du contenu, jamais du nom de fichier
	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return nil, &domain.ValidationError{Field: "image", Reason: "unsupported type " + contentType}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := path.Join(safeSegment(ownerID), uuid.NewString()+ext)
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("asset put: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, fmt.Errorf("asset put: %w", err)
	}

	return &ports.Asset{
		Key:         key,
		URL:         s.baseURL + "/" + key,
		ContentType: contentType,
	}, nil
}

// Delete est idempotent : une clé absente n'est pas une erreur.
func (s *FileStore) Delete(_ context.Context, key string) error {
	full := filepath.Join(s.dir, filepath.FromSlash(path.Clean("/"+key)))
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("asset delete: %w", err)
	}
	return nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

// safeSegment empêche un ownerID de sortir du répertoire racine
func safeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "_"
	}
	return s
}
