package ports

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// --- DRIVEN (Ce dont le service a besoin) ---

type PostRepository interface {
	SavePost(ctx context.Context, post *domain.Post) error
	FindPost(ctx context.Context, postID string) (*domain.Post, error)

	// GetPosts hydrate un lot d'ids (ordre non garanti)
	GetPosts(ctx context.Context, postIDs []string) ([]*domain.Post, error)

	// ListPosts respecte l'ordre du feed (created_at DESC, id DESC) sous l'ancre.
	ListPosts(ctx context.Context, offset, limit int, anchor *domain.Anchor) ([]*domain.Post, error)
	CountPosts(ctx context.Context, anchor *domain.Anchor) (int, error)
}

// LikeRepository : la contrainte d'unicité (post, user) vit ici.
type LikeRepository interface {
	// SaveLike renvoie domain.ErrAlreadyLiked sur violation d'unicité,
	// domain.ErrPostNotFound si le post n'existe pas.
	SaveLike(ctx context.Context, like *domain.Like) error
	FindLike(ctx context.Context, postID, userID string) (*domain.Like, error)
	DeleteLike(ctx context.Context, likeID string) error

	// Lectures batch, restreintes au lot de posts
	CountLikes(ctx context.Context, postIDs []string) (map[string]int, error)
	LikedBy(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
}

type CommentRepository interface {
	SaveComment(ctx context.Context, comment *domain.Comment) error
	FindComment(ctx context.Context, commentID string) (*domain.Comment, error)
	DeleteComment(ctx context.Context, commentID string) error

	CountComments(ctx context.Context, postIDs []string) (map[string]int, error)
	// RecentComments renvoie les perPost commentaires les plus récents de chaque post
	RecentComments(ctx context.Context, postIDs []string, perPost int) (map[string][]domain.Comment, error)
	ListComments(ctx context.Context, postID string, offset, limit int) ([]domain.Comment, error)
}

// GraphRepository est la relation "follows"
type GraphRepository interface {
	CreateRelation(ctx context.Context, actorID, targetID string) error
	DeleteRelation(ctx context.Context, actorID, targetID string) error
	// StreamFollowersIDs renvoie les followers par paquets via le callback 'yield'.
	StreamFollowersIDs(ctx context.Context, userID string, batchSize int, yield func([]string) error) error
}

type TimelineRepository interface {
	// AddToTimelines ajoute un post dans les feeds de PLUSIEURS utilisateurs (Batch)
	AddToTimelines(ctx context.Context, userIDs []string, entry *domain.TimelineEntry) error
	// GetTimeline renvoie les ids de posts, plus récent d'abord, sous l'ancre
	GetTimeline(ctx context.Context, userID string, offset, limit int, anchor *domain.Anchor) ([]string, error)
	CountTimeline(ctx context.Context, userID string, anchor *domain.Anchor) (int, error)
}

type EventPublisher interface {
	PublishPostCreated(ctx context.Context, post *domain.Post) error
	PublishLikeAdded(ctx context.Context, like *domain.Like) error
	PublishLikeRemoved(ctx context.Context, like *domain.Like) error
	PublishCommentAdded(ctx context.Context, comment *domain.Comment) error
	PublishCommentRemoved(ctx context.Context, comment *domain.Comment) error
}

// Asset est une image stockée et publiquement résolvable.
type Asset struct {
	Key         string
	URL         string
	ContentType string
}

// AssetStore est le collaborateur de stockage binaire.
type AssetStore interface {
	// Put rejette les payloads > 5 MB ou hors {jpeg, png, gif, webp}.
	Put(ctx context.Context, ownerID string, data []byte) (*Asset, error)
	Delete(ctx context.Context, key string) error
}

// TokenValidator résout un bearer token en identité.
type TokenValidator interface {
	Validate(token string) (*domain.Viewer, error)
}
