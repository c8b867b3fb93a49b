package client

import (
	"context"
	"sync"
	"time"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

var viewer = &domain.Viewer{ID: "alice", Username: "Alice"}

// fakeMutator enregistre les appels. gate, si non nil, bloque chaque appel
// jusqu'à ce qu'une valeur y soit envoyée.
type fakeMutator struct {
	mu    sync.Mutex
	calls []string
	gate  chan struct{}

	likeErr    error
	unlikeErr  error
	commentErr error
	deleteErr  error
}

func (f *fakeMutator) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeMutator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeMutator) AddLike(_ context.Context, postID string) (*domain.Like, error) {
	f.record("like:" + postID)
	if f.likeErr != nil {
		return nil, f.likeErr
	}
	return &domain.Like{ID: "l-" + postID, PostID: postID, UserID: viewer.ID}, nil
}

func (f *fakeMutator) RemoveLike(_ context.Context, postID string) error {
	f.record("unlike:" + postID)
	return f.unlikeErr
}

func (f *fakeMutator) AddComment(_ context.Context, postID, content string) (*domain.Comment, error) {
	f.record("comment:" + postID)
	if f.commentErr != nil {
		return nil, f.commentErr
	}
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Comment{
		ID: "srv-" + content, PostID: postID, AuthorID: viewer.ID, AuthorName: viewer.Username,
		Content: content, CreatedAt: at, UpdatedAt: at,
	}, nil
}

func (f *fakeMutator) RemoveComment(_ context.Context, commentID string) error {
	f.record("uncomment:" + commentID)
	return f.deleteErr
}

func seededState(posts ...domain.AggregatedPost) *FeedState {
	s := NewFeedState()
	s.Reset(posts)
	return s
}

func aggPost(id string, likes int, liked bool, comments ...domain.Comment) domain.AggregatedPost {
	return domain.AggregatedPost{
		Post:           domain.Post{ID: id, AuthorID: "carol"},
		LikeCount:      likes,
		CommentCount:   len(comments),
		ViewerHasLiked: liked,
		CommentPreview: comments,
	}
}
