package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

// InteractionService est le coordinateur de mutations : une écriture sur une
// seule relation par appel, aucun compteur maintenu.
type InteractionService struct {
	posts     ports.PostRepository
	likes     ports.LikeRepository
	comments  ports.CommentRepository
	publisher ports.EventPublisher
}

func NewInteractionService(posts ports.PostRepository, likes ports.LikeRepository, comments ports.CommentRepository, pub ports.EventPublisher) *InteractionService {
	return &InteractionService{
		posts:     posts,
		likes:     likes,
		comments:  comments,
		publisher: pub,
	}
}

// --- LIKES ---

func (s *InteractionService) AddLike(ctx context.Context, postID string, viewer *domain.Viewer) (*domain.Like, error) {
	if viewer == nil {
		return nil, domain.ErrUnauthorized
	}
	if postID == "" {
		return nil, &domain.ValidationError{Field: "post_id", Reason: "is required"}
	}

	like := domain.NewLike(postID, viewer.ID)

	// La contrainte UNIQUE (post_id, user_id) est la seule garantie inter-sessions :
	// pas de "check then insert", on laisse la base trancher.
	if err := s.likes.SaveLike(ctx, like); err != nil {
		if errors.Is(err, domain.ErrAlreadyLiked) {
			return nil, err
		}
		return nil, fmt.Errorf("save like: %w", err)
	}

	if err := s.publisher.PublishLikeAdded(ctx, like); err != nil {
		// Best effort : la donnée est sauvée
		slog.Warn("Failed to publish like event", "post_id", postID, "error", err)
	}
	return like, nil
}

func (s *InteractionService) RemoveLike(ctx context.Context, postID string, viewer *domain.Viewer) error {
	if viewer == nil {
		return domain.ErrUnauthorized
	}

	like, err := s.likes.FindLike(ctx, postID, viewer.ID)
	if err != nil {
		return err
	}
	// La requête est déjà filtrée par user_id, mais on revérifie la propriété.
	if like.UserID != viewer.ID {
		return domain.ErrForbidden
	}

	if err := s.likes.DeleteLike(ctx, like.ID); err != nil {
		return err
	}

	if err := s.publisher.PublishLikeRemoved(ctx, like); err != nil {
		slog.Warn("Failed to publish unlike event", "post_id", postID, "error", err)
	}
	return nil
}

// --- COMMENTAIRES ---

func (s *InteractionService) AddComment(ctx context.Context, postID string, viewer *domain.Viewer, content string) (*domain.Comment, error) {
	if viewer == nil {
		return nil, domain.ErrUnauthorized
	}

	// 1. Validation du contenu (avant toute lecture)
	comment, err := domain.NewComment(postID, *viewer, content)
	if err != nil {
		return nil, err
	}

	// 2. Le post cible doit exister
	if _, err := s.posts.FindPost(ctx, postID); err != nil {
		return nil, err
	}

	// 3. Persistance (la FK couvre une suppression concurrente du post)
	if err := s.comments.SaveComment(ctx, comment); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishCommentAdded(ctx, comment); err != nil {
		slog.Warn("Failed to publish comment event", "comment_id", comment.ID, "error", err)
	}
	return comment, nil
}

func (s *InteractionService) RemoveComment(ctx context.Context, commentID string, viewer *domain.Viewer) error {
	if viewer == nil {
		return domain.ErrUnauthorized
	}

	comment, err := s.comments.FindComment(ctx, commentID)
	if err != nil {
		return err
	}
	// Seul l'auteur peut supprimer son commentaire
	if comment.AuthorID != viewer.ID {
		return domain.ErrForbidden
	}

	if err := s.comments.DeleteComment(ctx, commentID); err != nil {
		return err
	}

	if err := s.publisher.PublishCommentRemoved(ctx, comment); err != nil {
		slog.Warn("Failed to publish comment removal", "comment_id", commentID, "error", err)
	}
	return nil
}
