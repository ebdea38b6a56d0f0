package repository

import (
	"context"
	"errors"
	"fmt"

	"PriceCast/internal/domain/models"
	"PriceCast/pkg/cache"
)

// CacheArtifactStore keeps artifacts in a cache.Service (Redis in production)
// without expiry so every replica loads the same model.
type CacheArtifactStore struct {
	c cache.Service
}

func NewCacheArtifactStore(c cache.Service) *CacheArtifactStore {
	return &CacheArtifactStore{c: c}
}

func artifactKey(key string) string { return "artifact:" + key }

func (s *CacheArtifactStore) Load(ctx context.Context, key string) (*models.Artifact, error) {
	var raw []byte
	if err := s.c.Get(ctx, artifactKey(key), &raw); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("%s: %w", key, models.ErrArtifactNotFound)
		}
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	return decodeArtifact(raw)
}

func (s *CacheArtifactStore) Save(ctx context.Context, key string, a *models.Artifact) error {
	if err := s.c.Set(ctx, artifactKey(key), a, 0); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return nil
}
