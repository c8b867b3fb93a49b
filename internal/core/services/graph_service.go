package services

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

type GraphService struct {
	repo ports.GraphRepository
}

func NewGraphService(repo ports.GraphRepository) *GraphService {
	return &GraphService{repo: repo}
}

func (s *GraphService) FollowUser(ctx context.Context, viewer *domain.Viewer, targetID string) error {
	if viewer == nil {
		return domain.ErrUnauthorized
	}
	if targetID == "" {
		return &domain.ValidationError{Field: "user_id", Reason: "is required"}
	}
	if viewer.ID == targetID {
		return domain.ErrSelfFollow
	}
	return s.repo.CreateRelation(ctx, viewer.ID, targetID)
}

func (s *GraphService) UnfollowUser(ctx context.Context, viewer *domain.Viewer, targetID string) error {
	if viewer == nil {
		return domain.ErrUnauthorized
	}
	return s.repo.DeleteRelation(ctx, viewer.ID, targetID)
}
