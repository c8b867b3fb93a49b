package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

var tracer = otel.Tracer("interaction-service")

// FeedService est le lecteur d'agrégation. Les compteurs sont toujours
// recalculés depuis les lignes (jamais stockés), donc pas de dérive possible
// entre un compteur et la table sous-jacente.
type FeedService struct {
	posts       ports.PostRepository
	likes       ports.LikeRepository
	comments    ports.CommentRepository
	timelines   ports.TimelineRepository
	pageDefault int
	pageMax     int
}

type FeedOption func(*FeedService)

// WithPageLimits surcharge les bornes de pagination (config FEED_PAGE_*).
func WithPageLimits(def, max int) FeedOption {
	return func(s *FeedService) {
		if max > 0 {
			s.pageMax = max
		}
		if def > 0 && def <= s.pageMax {
			s.pageDefault = def
		}
	}
}

// WithTimelines active le scope "following". Sans timelines, ce scope répond ErrUnavailable.
func WithTimelines(t ports.TimelineRepository) FeedOption {
	return func(s *FeedService) { s.timelines = t }
}

func NewFeedService(posts ports.PostRepository, likes ports.LikeRepository, comments ports.CommentRepository, opts ...FeedOption) *FeedService {
	s := &FeedService{
		posts:       posts,
		likes:       likes,
		comments:    comments,
		pageDefault: DefaultPageSize,
		pageMax:     MaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FeedService) normalize(req domain.FeedRequest) domain.FeedRequest {
	if req.Limit <= 0 {
		req.Limit = s.pageDefault
	}
	if req.Limit > s.pageMax {
		req.Limit = s.pageMax // Protection
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	if req.Scope == "" {
		req.Scope = domain.ScopeGlobal
	}
	return req
}

func (s *FeedService) GetPage(ctx context.Context, req domain.FeedRequest) (*domain.FeedPage, error) {
	req = s.normalize(req)

	ctx, span := tracer.Start(ctx, "feed.get_page", trace.WithAttributes(
		attribute.Int("feed.offset", req.Offset),
		attribute.Int("feed.limit", req.Limit),
		attribute.String("feed.scope", string(req.Scope)),
	))
	defer span.End()

	var (
		posts   []*domain.Post
		fetched int // lignes lues dans l'index, avant hydratation
		total   int
		err     error
	)
	switch req.Scope {
	case domain.ScopeFollowing:
		posts, fetched, total, err = s.followingPosts(ctx, req)
	case domain.ScopeGlobal:
		posts, total, err = s.globalPosts(ctx, req)
		fetched = len(posts)
	default:
		return nil, &domain.ValidationError{Field: "scope", Reason: "must be global or following"}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	items, err := s.aggregate(ctx, posts, req.Viewer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("feed.result_count", len(items)), attribute.Int("feed.total", total))

	// Première page sans ancre : on fige le haut du feed sur le post le plus récent.
	anchor := req.Anchor
	if anchor == nil && req.Offset == 0 && len(posts) > 0 {
		anchor = &domain.Anchor{CreatedAt: posts[0].CreatedAt, PostID: posts[0].ID}
	}

	return &domain.FeedPage{
		Posts:      items,
		NextOffset: req.Offset + fetched,
		HasMore:    fetched == req.Limit,
		Total:      total,
		Anchor:     anchor,
	}, nil
}

func (s *FeedService) globalPosts(ctx context.Context, req domain.FeedRequest) ([]*domain.Post, int, error) {
	var (
		posts []*domain.Post
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posts, err = s.posts.ListPosts(gctx, req.Offset, req.Limit, req.Anchor)
		if err != nil {
			return fmt.Errorf("list posts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = s.posts.CountPosts(gctx, req.Anchor)
		if err != nil {
			return fmt.Errorf("count posts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (s *FeedService) followingPosts(ctx context.Context, req domain.FeedRequest) ([]*domain.Post, int, int, error) {
	if req.Viewer == nil {
		return nil, 0, 0, domain.ErrUnauthorized
	}
	if s.timelines == nil {
		return nil, 0, 0, fmt.Errorf("following feed: %w", domain.ErrUnavailable)
	}

	ids, err := s.timelines.GetTimeline(ctx, req.Viewer.ID, req.Offset, req.Limit, req.Anchor)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("get timeline: %w", err)
	}
	total, err := s.timelines.CountTimeline(ctx, req.Viewer.ID, req.Anchor)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("count timeline: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Post{}, 0, total, nil
	}

	found, err := s.posts.GetPosts(ctx, ids)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("hydrate timeline: %w", err)
	}
	byID := make(map[string]*domain.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	// On garde l'ordre de la timeline ; un post supprimé entre-temps est sauté.
	posts := make([]*domain.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	// hasMore et le curseur se basent sur la page brute de la timeline.
	return posts, len(ids), total, nil
}

// aggregate enrichit les posts en batch : un COUNT par relation pour tout le
// lot, un check d'appartenance pour le viewer, une requête fenêtrée pour les aperçus.
func (s *FeedService) aggregate(ctx context.Context, posts []*domain.Post, viewer *domain.Viewer) ([]domain.AggregatedPost, error) {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return []domain.AggregatedPost{}, nil
	}

	var (
		likeCounts    map[string]int
		commentCounts map[string]int
		liked         map[string]bool
		previews      map[string][]domain.Comment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if likeCounts, err = s.likes.CountLikes(gctx, ids); err != nil {
			return fmt.Errorf("count likes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if commentCounts, err = s.comments.CountComments(gctx, ids); err != nil {
			return fmt.Errorf("count comments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if previews, err = s.comments.RecentComments(gctx, ids, domain.PreviewSize); err != nil {
			return fmt.Errorf("recent comments: %w", err)
		}
		return nil
	})
	if viewer != nil {
		g.Go(func() error {
			var err error
			if liked, err = s.likes.LikedBy(gctx, viewer.ID, ids); err != nil {
				return fmt.Errorf("liked by viewer: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.AggregatedPost, 0, len(ids))
	for _, p := range posts {
		preview := previews[p.ID]
		if len(preview) > domain.PreviewSize {
			preview = preview[:domain.PreviewSize]
		}
		if preview == nil {
			preview = []domain.Comment{}
		}
		out = append(out, domain.AggregatedPost{
			Post:           *p,
			LikeCount:      likeCounts[p.ID],
			CommentCount:   commentCounts[p.ID],
			ViewerHasLiked: liked[p.ID], // map nil => false pour un anonyme
			CommentPreview: preview,
		})
	}
	return out, nil
}

func (s *FeedService) GetPost(ctx context.Context, postID string, viewer *domain.Viewer) (*domain.AggregatedPost, error) {
	post, err := s.posts.FindPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	items, err := s.aggregate(ctx, []*domain.Post{post}, viewer)
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ListComments renvoie la liste complète paginée, plus récent d'abord.
func (s *FeedService) ListComments(ctx context.Context, postID string, offset, limit int) ([]domain.Comment, error) {
	if limit <= 0 {
		limit = s.pageDefault
	}
	if limit > s.pageMax {
		limit = s.pageMax
	}
	if offset < 0 {
		offset = 0
	}
	if _, err := s.posts.FindPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.comments.ListComments(ctx, postID, offset, limit)
}
