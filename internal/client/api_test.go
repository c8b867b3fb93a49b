package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/primary/rest"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/secondary/assets"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/services"
)

// startServer monte l'API complète en mémoire, avec des tokens de dev.
func startServer(t *testing.T) (*httptest.Server, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	files, err := assets.NewFileStore(t.TempDir(), "http://test.local/assets")
	require.NoError(t, err)
	graph := repository.NewMemoryGraph()
	timelines := repository.NewMemoryTimeline()

	srv := rest.NewServer(
		services.NewFeedService(store, store, store, services.WithTimelines(timelines)),
		services.NewInteractionService(store, store, store, eventbroker.NopPublisher{}),
		services.NewPostService(store, files, eventbroker.NopPublisher{}),
		services.NewGraphService(graph),
	)
	ts := httptest.NewServer(rest.AuthMiddleware(security.DevValidator{})(srv.Routes()))
	t.Cleanup(ts.Close)
	return ts, store
}

func seed(t *testing.T, store *repository.MemoryStore, n int) {
	t.Helper()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.SavePost(context.Background(), &domain.Post{
			ID: "p" + string(rune('a'+i)), AuthorID: "carol", AuthorName: "Carol",
			ImageURL: "http://img", CreatedAt: at, UpdatedAt: at,
		}))
	}
}

func TestAPIClient_StatusMapping(t *testing.T) {
	ts, store := startServer(t)
	seed(t, store, 1)
	ctx := context.Background()

	alice := NewAPIClient(ts.URL, "alice:Alice")
	bob := NewAPIClient(ts.URL, "bob")
	anon := NewAPIClient(ts.URL, "")

	_, err := alice.AddLike(ctx, "pa")
	require.NoError(t, err)
	_, err = alice.AddLike(ctx, "pa")
	assert.ErrorIs(t, err, domain.ErrAlreadyLiked)

	assert.ErrorIs(t, bob.RemoveLike(ctx, "pa"), domain.ErrNotFound)
	_, err = anon.AddLike(ctx, "pa")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	c, err := alice.AddComment(ctx, "pa", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Alice", c.AuthorName)
	assert.ErrorIs(t, bob.RemoveComment(ctx, c.ID), domain.ErrForbidden)

	_, err = alice.AddComment(ctx, "pa", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	post, err := alice.GetPost(ctx, "pa")
	require.NoError(t, err)
	assert.Equal(t, 1, post.LikeCount)
	assert.Equal(t, 1, post.CommentCount)
	assert.True(t, post.ViewerHasLiked)

	comments, err := anon.ListComments(ctx, "pa", 0, 10)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func TestAPIClient_Unreachable(t *testing.T) {
	ts, _ := startServer(t)
	ts.Close()

	_, err := NewAPIClient(ts.URL, "alice").FetchPage(context.Background(), 0, 10, nil)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestEndToEnd_PagerAndEngine(t *testing.T) {
	ts, store := startServer(t)
	seed(t, store, 5)
	ctx := context.Background()

	api := NewAPIClient(ts.URL, "alice")
	state := NewFeedState()
	pager := NewPager(api, state, 2)
	engine := NewEngine(state, api, StaticIdentity{&domain.Viewer{ID: "alice", Username: "alice"}})

	_, err := pager.LoadInitial(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, pager.Total())

	// Un post publié entre deux pages ne décale pas la pagination
	require.NoError(t, store.SavePost(ctx, &domain.Post{
		ID: "pz", AuthorID: "carol", ImageURL: "http://img",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	for pager.OnVisible(ctx) {
	}
	ids := []string{}
	for _, p := range state.Posts() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"pe", "pd", "pc", "pb", "pa"}, ids)

	out := engine.ToggleLike(ctx, "pc")
	require.Equal(t, StatusCommitted, out.Status)

	// Le serveur confirme l'état local
	fresh, err := api.GetPost(ctx, "pc")
	require.NoError(t, err)
	local, _ := state.Post("pc")
	assert.Equal(t, fresh.LikeCount, local.LikeCount)
	assert.Equal(t, fresh.ViewerHasLiked, local.ViewerHasLiked)

	out = engine.AddComment(ctx, "pc", "  nice  ")
	require.Equal(t, StatusCommitted, out.Status)
	local, _ = state.Post("pc")
	require.Len(t, local.CommentPreview, 1)
	assert.Equal(t, out.Comment.ID, local.CommentPreview[0].ID)
	assert.Equal(t, "nice", local.CommentPreview[0].Content)
}
