package services

import (
	"context"
	"log/slog"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

const BatchSize = 1000 // Taille des paquets pour Redis

type TimelineService struct {
	repo  ports.TimelineRepository
	graph ports.GraphRepository
}

func NewTimelineService(repo ports.TimelineRepository, graph ports.GraphRepository) *TimelineService {
	return &TimelineService{repo: repo, graph: graph}
}

// DistributePost pousse le post dans la timeline de l'auteur puis de ses followers.
func (s *TimelineService) DistributePost(ctx context.Context, entry *domain.TimelineEntry) error {
	slog.Info("📢 Fan-out starting", "post_id", entry.PostID, "author_id", entry.AuthorID)

	// L'auteur voit ses propres posts dans son feed "following"
	if err := s.repo.AddToTimelines(ctx, []string{entry.AuthorID}, entry); err != nil {
		return err
	}

	count := 0
	err := s.graph.StreamFollowersIDs(ctx, entry.AuthorID, BatchSize, func(batch []string) error {
		if err := s.repo.AddToTimelines(ctx, batch, entry); err != nil {
			// En prod : Dead Letter Queue ou retry. On continue avec le paquet suivant.
			slog.Error("❌ Failed to push batch to redis", "error", err, "batch_start", count)
		}
		count += len(batch)
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("✅ Fan-out complete", "count", count)
	return nil
}
