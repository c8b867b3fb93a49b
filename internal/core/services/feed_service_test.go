package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

func newFeed(store *repository.MemoryStore, opts ...FeedOption) *FeedService {
	return NewFeedService(store, store, store, opts...)
}

func ids(posts []domain.AggregatedPost) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestGetPage_ConcatenationEqualsFullFeed(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPosts(t, store, 7)
	svc := newFeed(store)
	ctx := context.Background()

	var (
		all    []string
		anchor *domain.Anchor
		offset int
		pages  int
	)
	for {
		page, err := svc.GetPage(ctx, domain.FeedRequest{Offset: offset, Limit: 3, Anchor: anchor})
		require.NoError(t, err)
		pages++
		all = append(all, ids(page.Posts)...)
		assert.Equal(t, 7, page.Total)
		offset, anchor = page.NextOffset, page.Anchor
		if !page.HasMore {
			break
		}
	}

	assert.Equal(t, []string{"pg", "pf", "pe", "pd", "pc", "pb", "pa"}, all)
	assert.Equal(t, 3, pages)
}

func TestGetPage_ExactMultipleCostsOneEmptyFetch(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPosts(t, store, 4)
	svc := newFeed(store)
	ctx := context.Background()

	page, err := svc.GetPage(ctx, domain.FeedRequest{Limit: 2})
	require.NoError(t, err)
	page, err = svc.GetPage(ctx, domain.FeedRequest{Offset: page.NextOffset, Limit: 2, Anchor: page.Anchor})
	require.NoError(t, err)
	assert.True(t, page.HasMore, "full page reports more")

	page, err = svc.GetPage(ctx, domain.FeedRequest{Offset: page.NextOffset, Limit: 2, Anchor: page.Anchor})
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.False(t, page.HasMore)
	assert.Equal(t, 4, page.NextOffset)
}

func TestGetPage_AnchorHidesNewerPosts(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPosts(t, store, 4)
	svc := newFeed(store)
	ctx := context.Background()

	first, err := svc.GetPage(ctx, domain.FeedRequest{Limit: 2})
	require.NoError(t, err)
	require.NotNil(t, first.Anchor)
	assert.Equal(t, "pd", first.Anchor.PostID)

	// Un post publié entre deux pages ne décale pas les offsets
	at := t0.Add(time.Hour)
	require.NoError(t, store.SavePost(ctx, &domain.Post{ID: "pz", AuthorID: "carol", ImageURL: "x", CreatedAt: at, UpdatedAt: at}))

	second, err := svc.GetPage(ctx, domain.FeedRequest{Offset: first.NextOffset, Limit: 2, Anchor: first.Anchor})
	require.NoError(t, err)
	assert.Equal(t, []string{"pb", "pa"}, ids(second.Posts))
	assert.Equal(t, 4, second.Total)

	fresh, err := svc.GetPage(ctx, domain.FeedRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "pz", fresh.Posts[0].ID)
}

func TestGetPage_LimitClamping(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPosts(t, store, 26)
	ctx := context.Background()

	page, err := newFeed(store).GetPage(ctx, domain.FeedRequest{Limit: 0, Offset: -4})
	require.NoError(t, err)
	assert.Len(t, page.Posts, DefaultPageSize)

	page, err = newFeed(store, WithPageLimits(5, 10)).GetPage(ctx, domain.FeedRequest{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 10)
}

func TestGetPage_Aggregation(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPosts(t, store, 2)
	ctx := context.Background()
	likes := NewInteractionService(store, store, store, &recordingPublisher{})
	svc := newFeed(store)

	_, err := likes.AddLike(ctx, "pa", alice)
	require.NoError(t, err)
	_, err = likes.AddLike(ctx, "pa", bob)
	require.NoError(t, err)
	for _, text := range []string{"hello", "world", "!"} {
		_, err := likes.AddComment(ctx, "pa", alice, text)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	page, err := svc.GetPage(ctx, domain.FeedRequest{Viewer: alice})
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	pa := page.Posts[1]
	assert.Equal(t, 2, pa.LikeCount)
	assert.True(t, pa.ViewerHasLiked)
	assert.Equal(t, 3, pa.CommentCount)
	require.Len(t, pa.CommentPreview, domain.PreviewSize)
	assert.Equal(t, "!", pa.CommentPreview[0].Content)
	assert.Equal(t, "world", pa.CommentPreview[1].Content)

	pb := page.Posts[0]
	assert.Zero(t, pb.LikeCount)
	assert.NotNil(t, pb.CommentPreview)
	assert.Empty(t, pb.CommentPreview)

	anon, err := svc.GetPage(ctx, domain.FeedRequest{})
	require.NoError(t, err)
	assert.False(t, anon.Posts[1].ViewerHasLiked, "anonymous never liked")
	assert.Equal(t, 2, anon.Posts[1].LikeCount)
}

func TestGetPage_ReadYourWrites(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPosts(t, store, 1)
	ctx := context.Background()
	interactions := NewInteractionService(store, store, store, &recordingPublisher{})
	svc := newFeed(store)

	_, err := interactions.AddLike(ctx, "pa", alice)
	require.NoError(t, err)
	post, err := svc.GetPost(ctx, "pa", alice)
	require.NoError(t, err)
	assert.Equal(t, 1, post.LikeCount)
	assert.True(t, post.ViewerHasLiked)

	require.NoError(t, interactions.RemoveLike(ctx, "pa", alice))
	post, err = svc.GetPost(ctx, "pa", alice)
	require.NoError(t, err)
	assert.Zero(t, post.LikeCount)
	assert.False(t, post.ViewerHasLiked)
}

func TestGetPage_StorageUnavailable(t *testing.T) {
	store := repository.NewMemoryStore()
	down := fmt.Errorf("db: list: %w: %w", domain.ErrUnavailable, errDown)
	svc := NewFeedService(&failingPosts{MemoryStore: store, listErr: down}, store, store)

	_, err := svc.GetPage(context.Background(), domain.FeedRequest{})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestGetPage_UnknownScope(t *testing.T) {
	svc := newFeed(repository.NewMemoryStore())
	_, err := svc.GetPage(context.Background(), domain.FeedRequest{Scope: "trending"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetPage_Following(t *testing.T) {
	store := repository.NewMemoryStore()
	posts := seedPosts(t, store, 3)
	ctx := context.Background()
	timelines := repository.NewMemoryTimeline()
	svc := newFeed(store, WithTimelines(timelines))

	_, err := svc.GetPage(ctx, domain.FeedRequest{Scope: domain.ScopeFollowing})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = newFeed(store).GetPage(ctx, domain.FeedRequest{Scope: domain.ScopeFollowing, Viewer: alice})
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	for _, p := range []*domain.Post{posts[0], posts[2]} {
		require.NoError(t, timelines.AddToTimelines(ctx, []string{"alice"}, &domain.TimelineEntry{
			PostID: p.ID, AuthorID: p.AuthorID, CreatedAt: p.CreatedAt,
		}))
	}
	// Une entrée dont le post a disparu est sautée sans casser le curseur
	require.NoError(t, timelines.AddToTimelines(ctx, []string{"alice"}, &domain.TimelineEntry{
		PostID: "ghost", AuthorID: "carol", CreatedAt: t0.Add(time.Second),
	}))

	page, err := svc.GetPage(ctx, domain.FeedRequest{Scope: domain.ScopeFollowing, Viewer: alice, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"pc"}, ids(page.Posts))
	assert.Equal(t, 2, page.NextOffset)
	assert.True(t, page.HasMore)
	assert.Equal(t, 3, page.Total)

	page, err = svc.GetPage(ctx, domain.FeedRequest{Scope: domain.ScopeFollowing, Viewer: alice, Limit: 2, Offset: 2, Anchor: page.Anchor})
	require.NoError(t, err)
	assert.Equal(t, []string{"pa"}, ids(page.Posts))
	assert.False(t, page.HasMore)
}

func TestListComments(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPosts(t, store, 1)
	ctx := context.Background()
	interactions := NewInteractionService(store, store, store, &recordingPublisher{})
	for i := 0; i < 5; i++ {
		_, err := interactions.AddComment(ctx, "pa", bob, fmt.Sprintf("c%d", i))
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	svc := newFeed(store)

	comments, err := svc.ListComments(ctx, "pa", 1, 2)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "c3", comments[0].Content)
	assert.Equal(t, "c2", comments[1].Content)

	_, err = svc.ListComments(ctx, "missing", 0, 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
