package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"PriceCast/internal/domain/models"
)

// FileArtifactStore keeps each artifact as <dir>/<key>.json.
type FileArtifactStore struct {
	dir string
}

func NewFileArtifactStore(dir string) (*FileArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	return &FileArtifactStore{dir: dir}, nil
}

func (s *FileArtifactStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key)+".json")
}

func (s *FileArtifactStore) Load(_ context.Context, key string) (*models.Artifact, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, models.ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return decodeArtifact(b)
}

// Save writes to a temp file and renames it so readers never see a partial artifact.
func (s *FileArtifactStore) Save(_ context.Context, key string, a *models.Artifact) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, filepath.Base(key)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

func decodeArtifact(b []byte) (*models.Artifact, error) {
	var a models.Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Variant == "" || len(a.State) == 0 {
		return nil, &models.ArtifactMismatchError{Reason: "artifact has no predictor state"}
	}
	return &a, nil
}
