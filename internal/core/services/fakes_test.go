package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

var (
	alice = &domain.Viewer{ID: "alice", Username: "Alice"}
	bob   = &domain.Viewer{ID: "bob", Username: "Bob"}

	t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

// recordingPublisher garde les événements publiés.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	fail   error
}

func (p *recordingPublisher) record(kind string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, kind)
	return p.fail
}

func (p *recordingPublisher) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	return p.record("post.created:" + post.ID)
}
func (p *recordingPublisher) PublishLikeAdded(ctx context.Context, like *domain.Like) error {
	return p.record("like.added:" + like.PostID)
}
func (p *recordingPublisher) PublishLikeRemoved(ctx context.Context, like *domain.Like) error {
	return p.record("like.removed:" + like.PostID)
}
func (p *recordingPublisher) PublishCommentAdded(ctx context.Context, c *domain.Comment) error {
	return p.record("comment.added:" + c.PostID)
}
func (p *recordingPublisher) PublishCommentRemoved(ctx context.Context, c *domain.Comment) error {
	return p.record("comment.removed:" + c.PostID)
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// seedPosts crée n posts espacés d'une seconde : pa est le plus ancien.
func seedPosts(t *testing.T, store *repository.MemoryStore, n int) []*domain.Post {
	t.Helper()
	posts := make([]*domain.Post, n)
	for i := 0; i < n; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		posts[i] = &domain.Post{
			ID: "p" + string(rune('a'+i)), AuthorID: "carol", AuthorName: "Carol",
			ImageURL: "http://img/" + string(rune('a'+i)), CreatedAt: at, UpdatedAt: at,
		}
		require.NoError(t, store.SavePost(context.Background(), posts[i]))
	}
	return posts
}

// memoryAssets compte les Put/Delete.
type memoryAssets struct {
	mu      sync.Mutex
	stored  map[string]bool
	putErr  error
	deleted []string
}

func newMemoryAssets() *memoryAssets {
	return &memoryAssets{stored: make(map[string]bool)}
}

func (a *memoryAssets) Put(ctx context.Context, ownerID string, data []byte) (*ports.Asset, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.putErr != nil {
		return nil, a.putErr
	}
	key := ownerID + "/asset.png"
	a.stored[key] = true
	return &ports.Asset{Key: key, URL: "http://assets/" + key, ContentType: "image/png"}, nil
}

func (a *memoryAssets) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.stored, key)
	a.deleted = append(a.deleted, key)
	return nil
}

// failingPosts fait échouer l'écriture et/ou la lecture des posts.
type failingPosts struct {
	*repository.MemoryStore
	saveErr error
	listErr error
}

func (f *failingPosts) SavePost(ctx context.Context, post *domain.Post) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryStore.SavePost(ctx, post)
}

func (f *failingPosts) ListPosts(ctx context.Context, offset, limit int, anchor *domain.Anchor) ([]*domain.Post, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemoryStore.ListPosts(ctx, offset, limit, anchor)
}

var errDown = errors.New("connection refused")
