package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

// store regroupe les trois repositories, comme dans cmd/server.
type store interface {
	ports.PostRepository
	ports.LikeRepository
	ports.CommentRepository
}

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func post(id string, at time.Time) *domain.Post {
	return &domain.Post{ID: id, AuthorID: "carol", AuthorName: "Carol", ImageURL: "http://img/" + id, CreatedAt: at, UpdatedAt: at}
}

func comment(id, postID, author string, at time.Time) *domain.Comment {
	return &domain.Comment{ID: id, PostID: postID, AuthorID: author, AuthorName: author, Content: "c " + id, CreatedAt: at, UpdatedAt: at}
}

func postIDs(posts []*domain.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

// runStoreContract vérifie les garanties communes à tous les stockages.
func runStoreContract(t *testing.T, s store) {
	ctx := context.Background()

	// pa et pb partagent le même created_at : départage par id DESC
	require.NoError(t, s.SavePost(ctx, post("pa", base)))
	require.NoError(t, s.SavePost(ctx, post("pb", base)))
	require.NoError(t, s.SavePost(ctx, post("pc", base.Add(time.Second))))
	require.NoError(t, s.SavePost(ctx, post("pd", base.Add(2*time.Second))))

	t.Run("feed order", func(t *testing.T) {
		got, err := s.ListPosts(ctx, 0, 10, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"pd", "pc", "pb", "pa"}, postIDs(got))

		got, err = s.ListPosts(ctx, 1, 2, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"pc", "pb"}, postIDs(got))

		got, err = s.ListPosts(ctx, 10, 2, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("anchor", func(t *testing.T) {
		anchor := &domain.Anchor{CreatedAt: base, PostID: "pb"}
		got, err := s.ListPosts(ctx, 0, 10, anchor)
		require.NoError(t, err)
		assert.Equal(t, []string{"pb", "pa"}, postIDs(got))

		n, err := s.CountPosts(ctx, anchor)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.CountPosts(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("find", func(t *testing.T) {
		p, err := s.FindPost(ctx, "pc")
		require.NoError(t, err)
		assert.True(t, base.Add(time.Second).Equal(p.CreatedAt))
		assert.Nil(t, p.Caption)

		_, err = s.FindPost(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		got, err := s.GetPosts(ctx, []string{"pa", "missing", "pd"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"pa", "pd"}, postIDs(got))
	})

	t.Run("likes", func(t *testing.T) {
		like := &domain.Like{ID: "l1", PostID: "pa", UserID: "alice", CreatedAt: base}
		require.NoError(t, s.SaveLike(ctx, like))
		err := s.SaveLike(ctx, &domain.Like{ID: "l2", PostID: "pa", UserID: "alice", CreatedAt: base})
		assert.ErrorIs(t, err, domain.ErrAlreadyLiked)
		err = s.SaveLike(ctx, &domain.Like{ID: "l3", PostID: "missing", UserID: "alice", CreatedAt: base})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		require.NoError(t, s.SaveLike(ctx, &domain.Like{ID: "l4", PostID: "pa", UserID: "bob", CreatedAt: base}))

		counts, err := s.CountLikes(ctx, []string{"pa", "pb"})
		require.NoError(t, err)
		assert.Equal(t, 2, counts["pa"])
		assert.Zero(t, counts["pb"])

		liked, err := s.LikedBy(ctx, "alice", []string{"pa", "pb"})
		require.NoError(t, err)
		assert.True(t, liked["pa"])
		assert.False(t, liked["pb"])

		found, err := s.FindLike(ctx, "pa", "alice")
		require.NoError(t, err)
		assert.Equal(t, "l1", found.ID)

		require.NoError(t, s.DeleteLike(ctx, "l1"))
		assert.ErrorIs(t, s.DeleteLike(ctx, "l1"), domain.ErrNotFound)
		_, err = s.FindLike(ctx, "pa", "alice")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("comments", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			require.NoError(t, s.SaveComment(ctx, comment(fmt.Sprintf("c%d", i), "pc", "bob", base.Add(time.Duration(i)*time.Minute))))
		}
		require.NoError(t, s.SaveComment(ctx, comment("x0", "pd", "alice", base)))
		assert.ErrorIs(t, s.SaveComment(ctx, comment("x1", "missing", "alice", base)), domain.ErrNotFound)

		counts, err := s.CountComments(ctx, []string{"pc", "pd", "pa"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"pc": 4, "pd": 1}, counts)

		recent, err := s.RecentComments(ctx, []string{"pc", "pd", "pa"}, 2)
		require.NoError(t, err)
		require.Len(t, recent["pc"], 2)
		assert.Equal(t, "c3", recent["pc"][0].ID)
		assert.Equal(t, "c2", recent["pc"][1].ID)
		assert.Len(t, recent["pd"], 1)
		assert.Empty(t, recent["pa"])

		page, err := s.ListComments(ctx, "pc", 1, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "c2", page[0].ID)
		assert.Equal(t, "c1", page[1].ID)

		c, err := s.FindComment(ctx, "c0")
		require.NoError(t, err)
		assert.Equal(t, "bob", c.AuthorID)

		require.NoError(t, s.DeleteComment(ctx, "c0"))
		assert.ErrorIs(t, s.DeleteComment(ctx, "c0"), domain.ErrNotFound)
		_, err = s.FindComment(ctx, "c0")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_DeletePostCascades(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SavePost(ctx, post("pa", base)))
	require.NoError(t, s.SaveLike(ctx, &domain.Like{ID: "l1", PostID: "pa", UserID: "alice"}))
	require.NoError(t, s.SaveComment(ctx, comment("c1", "pa", "bob", base)))

	require.NoError(t, s.DeletePost(ctx, "pa"))
	assert.ErrorIs(t, s.DeletePost(ctx, "pa"), domain.ErrNotFound)

	_, err := s.FindLike(ctx, "pa", "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.FindComment(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TEST_DB_URL pointe vers une base jetable : les tables sont vidées.
func TestPostgresRepo(t *testing.T) {
	dsn := os.Getenv("TEST_DB_URL")
	if dsn == "" {
		t.Skip("TEST_DB_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewPostgresRepo(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	_, err = pool.Exec(ctx, "TRUNCATE posts CASCADE")
	require.NoError(t, err)

	runStoreContract(t, repo)

	t.Run("cascade", func(t *testing.T) {
		_, err := pool.Exec(ctx, "DELETE FROM posts WHERE id = $1", "pc")
		require.NoError(t, err)
		counts, err := repo.CountComments(ctx, []string{"pc"})
		require.NoError(t, err)
		assert.Zero(t, counts["pc"])
	})
}

func TestPostgresRepo_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, "postgres://nobody:x@127.0.0.1:1/none?connect_timeout=1")
	require.NoError(t, err)
	defer pool.Close()

	_, err = NewPostgresRepo(pool).FindPost(ctx, "pa")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

// --- TIMELINES ---

func runTimelineContract(t *testing.T, tl ports.TimelineRepository, user string) {
	ctx := context.Background()
	entries := []domain.TimelineEntry{
		{PostID: "pa", AuthorID: "carol", CreatedAt: base},
		{PostID: "pb", AuthorID: "carol", CreatedAt: base},
		{PostID: "pc", AuthorID: "carol", CreatedAt: base.Add(time.Second)},
		{PostID: "pd", AuthorID: "carol", CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range entries {
		require.NoError(t, tl.AddToTimelines(ctx, []string{user}, &entries[i]))
	}
	// Réinsérer une entrée ne la duplique pas
	require.NoError(t, tl.AddToTimelines(ctx, []string{user}, &entries[0]))

	got, err := tl.GetTimeline(ctx, user, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pd", "pc", "pb", "pa"}, got)

	got, err = tl.GetTimeline(ctx, user, 1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pc", "pb"}, got)

	anchor := &domain.Anchor{CreatedAt: base, PostID: "pa"}
	got, err = tl.GetTimeline(ctx, user, 0, 10, anchor)
	require.NoError(t, err)
	assert.Equal(t, []string{"pa"}, got, "pb shares the anchor score but sorts above it")

	n, err := tl.CountTimeline(ctx, user, anchor)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = tl.CountTimeline(ctx, user, &domain.Anchor{CreatedAt: base.Add(time.Second), PostID: "pc"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = tl.CountTimeline(ctx, user, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	t.Run("capped to the most recent entries", func(t *testing.T) {
		capUser := user + "-cap"
		for i := 0; i < TimelineCap+5; i++ {
			e := domain.TimelineEntry{PostID: fmt.Sprintf("p%04d", i), AuthorID: "carol", CreatedAt: base.Add(time.Duration(i) * time.Second)}
			require.NoError(t, tl.AddToTimelines(ctx, []string{capUser}, &e))
		}

		n, err := tl.CountTimeline(ctx, capUser, nil)
		require.NoError(t, err)
		assert.Equal(t, TimelineCap, n)

		got, err := tl.GetTimeline(ctx, capUser, TimelineCap-1, 10, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"p0005"}, got, "the five oldest entries are dropped")
	})
}

func TestMemoryTimeline(t *testing.T) {
	runTimelineContract(t, NewMemoryTimeline(), "alice")
}

func TestRedisTimeline(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	user := fmt.Sprintf("test-%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), timelineKey(user), timelineKey(user+"-cap")) })

	runTimelineContract(t, NewRedisTimeline(client), user)
}
