package eventbroker

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

// InProcessPublisher remplace NATS en mode mémoire : post.created est
// distribué directement dans les timelines, le reste est ignoré.
type InProcessPublisher struct {
	NopPublisher
	timelines ports.TimelineService
}

func NewInProcessPublisher(timelines ports.TimelineService) *InProcessPublisher {
	return &InProcessPublisher{timelines: timelines}
}

func (p *InProcessPublisher) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	return p.timelines.DistributePost(context.WithoutCancel(ctx), &domain.TimelineEntry{
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		CreatedAt: post.CreatedAt,
	})
}
