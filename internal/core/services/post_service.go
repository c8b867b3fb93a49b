package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

type PostService struct {
	repo      ports.PostRepository
	assets    ports.AssetStore
	publisher ports.EventPublisher
}

func NewPostService(repo ports.PostRepository, assets ports.AssetStore, pub ports.EventPublisher) *PostService {
	return &PostService{repo: repo, assets: assets, publisher: pub}
}

func (s *PostService) CreatePost(ctx context.Context, viewer *domain.Viewer, image ports.Upload, caption *string) (*domain.Post, error) {
	if viewer == nil {
		return nil, domain.ErrUnauthorized
	}
	if len(image.Data) == 0 {
		return nil, &domain.ValidationError{Field: "image", Reason: "is required"}
	}
	// Légende validée avant l'upload pour ne pas créer d'asset orphelin
	if _, err := domain.NormalizeCaption(caption); err != nil {
		return nil, err
	}

	// 1. Upload de l'image
	asset, err := s.assets.Put(ctx, viewer.ID, image.Data)
	if err != nil {
		return nil, err
	}

	post, err := domain.NewPost(*viewer, asset.URL, caption)
	if err != nil {
		s.discardAsset(ctx, asset)
		return nil, err
	}

	// 2. Sauvegarde DB (Source of Truth). En cas d'échec, on supprime l'asset.
	if err := s.repo.SavePost(ctx, post); err != nil {
		s.discardAsset(ctx, asset)
		return nil, fmt.Errorf("save post: %w", err)
	}

	// 3. Publication Événement (Fan-out Trigger)
	if err := s.publisher.PublishPostCreated(ctx, post); err != nil {
		slog.Warn("Failed to publish post.created", "post_id", post.ID, "error", err)
	}

	return post, nil
}

func (s *PostService) discardAsset(ctx context.Context, asset *ports.Asset) {
	if err := s.assets.Delete(context.WithoutCancel(ctx), asset.Key); err != nil {
		slog.Error("Failed to delete orphaned asset", "key", asset.Key, "error", err)
	}
}
