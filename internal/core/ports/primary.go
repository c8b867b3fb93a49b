package ports

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// --- DRIVING (Ce que le service expose) ---

// FeedReader est le lecteur d'agrégation : posts + compteurs dérivés + aperçu.
type FeedReader interface {
	GetPage(ctx context.Context, req domain.FeedRequest) (*domain.FeedPage, error)
	GetPost(ctx context.Context, postID string, viewer *domain.Viewer) (*domain.AggregatedPost, error)
	ListComments(ctx context.Context, postID string, offset, limit int) ([]domain.Comment, error)
}

// InteractionService applique une mutation unique (like ou commentaire).
type InteractionService interface {
	// AddLike renvoie domain.ErrAlreadyLiked si le like existe déjà (succès idempotent).
	AddLike(ctx context.Context, postID string, viewer *domain.Viewer) (*domain.Like, error)
	RemoveLike(ctx context.Context, postID string, viewer *domain.Viewer) error
	AddComment(ctx context.Context, postID string, viewer *domain.Viewer, content string) (*domain.Comment, error)
	RemoveComment(ctx context.Context, commentID string, viewer *domain.Viewer) error
}

// Upload est l'image brute reçue en multipart.
type Upload struct {
	Data     []byte
	Filename string
}

type PostService interface {
	CreatePost(ctx context.Context, viewer *domain.Viewer, image Upload, caption *string) (*domain.Post, error)
}

type GraphService interface {
	FollowUser(ctx context.Context, viewer *domain.Viewer, targetID string) error
	UnfollowUser(ctx context.Context, viewer *domain.Viewer, targetID string) error
}

type TimelineService interface {
	// DistributePost est appelé quand un event "post.created" arrive
	DistributePost(ctx context.Context, entry *domain.TimelineEntry) error
}
