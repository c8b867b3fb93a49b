package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

type likeKey struct{ postID, userID string }

// MemoryStore implémente Post/Like/Comment repositories en mémoire.
// Mêmes garanties que Postgres : unicité (post, user) sur les likes,
// cascade post -> likes/comments. Sûr pour un usage concurrent (RWMutex).
type MemoryStore struct {
	mu       sync.RWMutex
	posts    map[string]*domain.Post
	likes    map[string]*domain.Like
	likeIdx  map[likeKey]string
	comments map[string]*domain.Comment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:    make(map[string]*domain.Post),
		likes:    make(map[string]*domain.Like),
		likeIdx:  make(map[likeKey]string),
		comments: make(map[string]*domain.Comment),
	}
}

// --- POSTS ---

func (m *MemoryStore) SavePost(ctx context.Context, post *domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *post
	m.posts[post.ID] = &cp
	return nil
}

func (m *MemoryStore) FindPost(ctx context.Context, postID string) (*domain.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[postID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetPosts(ctx context.Context, postIDs []string) ([]*domain.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Post, 0, len(postIDs))
	for _, id := range postIDs {
		if p, ok := m.posts[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) sortedPosts(anchor *domain.Anchor) []*domain.Post {
	all := make([]*domain.Post, 0, len(m.posts))
	for _, p := range m.posts {
		if anchor.Covers(p) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return domain.FeedLess(all[i], all[j]) })
	return all
}

func (m *MemoryStore) ListPosts(ctx context.Context, offset, limit int, anchor *domain.Anchor) ([]*domain.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.sortedPosts(anchor)
	if offset >= len(all) {
		return []*domain.Post{}, nil
	}
	end := min(offset+limit, len(all))
	out := make([]*domain.Post, 0, end-offset)
	for _, p := range all[offset:end] {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) CountPosts(ctx context.Context, anchor *domain.Anchor) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.posts {
		if anchor.Covers(p) {
			n++
		}
	}
	return n, nil
}

// DeletePost simule le chemin de suppression externe (ON DELETE CASCADE).
func (m *MemoryStore) DeletePost(ctx context.Context, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return domain.ErrPostNotFound
	}
	delete(m.posts, postID)
	for id, l := range m.likes {
		if l.PostID == postID {
			delete(m.likes, id)
			delete(m.likeIdx, likeKey{l.PostID, l.UserID})
		}
	}
	for id, c := range m.comments {
		if c.PostID == postID {
			delete(m.comments, id)
		}
	}
	return nil
}

// --- LIKES ---

func (m *MemoryStore) SaveLike(ctx context.Context, like *domain.Like) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[like.PostID]; !ok {
		return domain.ErrPostNotFound
	}
	k := likeKey{like.PostID, like.UserID}
	if _, exists := m.likeIdx[k]; exists {
		return domain.ErrAlreadyLiked
	}
	cp := *like
	m.likes[like.ID] = &cp
	m.likeIdx[k] = like.ID
	return nil
}

func (m *MemoryStore) FindLike(ctx context.Context, postID, userID string) (*domain.Like, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.likeIdx[likeKey{postID, userID}]
	if !ok {
		return nil, domain.ErrLikeNotFound
	}
	cp := *m.likes[id]
	return &cp, nil
}

func (m *MemoryStore) DeleteLike(ctx context.Context, likeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.likes[likeID]
	if !ok {
		return domain.ErrLikeNotFound
	}
	delete(m.likes, likeID)
	delete(m.likeIdx, likeKey{l.PostID, l.UserID})
	return nil
}

func (m *MemoryStore) CountLikes(ctx context.Context, postIDs []string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := toSet(postIDs)
	out := make(map[string]int, len(postIDs))
	for _, l := range m.likes {
		if want[l.PostID] {
			out[l.PostID]++
		}
	}
	return out, nil
}

func (m *MemoryStore) LikedBy(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool)
	for _, id := range postIDs {
		if _, ok := m.likeIdx[likeKey{id, userID}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// --- COMMENTS ---

func (m *MemoryStore) SaveComment(ctx context.Context, comment *domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[comment.PostID]; !ok {
		return domain.ErrPostNotFound
	}
	cp := *comment
	m.comments[comment.ID] = &cp
	return nil
}

func (m *MemoryStore) FindComment(ctx context.Context, commentID string) (*domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[commentID]
	if !ok {
		return nil, domain.ErrCommentNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) DeleteComment(ctx context.Context, commentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[commentID]; !ok {
		return domain.ErrCommentNotFound
	}
	delete(m.comments, commentID)
	return nil
}

func (m *MemoryStore) CountComments(ctx context.Context, postIDs []string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := toSet(postIDs)
	out := make(map[string]int, len(postIDs))
	for _, c := range m.comments {
		if want[c.PostID] {
			out[c.PostID]++
		}
	}
	return out, nil
}

func (m *MemoryStore) commentsOf(postID string) []domain.Comment {
	var out []domain.Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return domain.CommentLess(&out[i], &out[j]) })
	return out
}

func (m *MemoryStore) RecentComments(ctx context.Context, postIDs []string, perPost int) (map[string][]domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]domain.Comment, len(postIDs))
	for _, id := range postIDs {
		cs := m.commentsOf(id)
		if len(cs) > perPost {
			cs = cs[:perPost]
		}
		if len(cs) > 0 {
			out[id] = cs
		}
	}
	return out, nil
}

func (m *MemoryStore) ListComments(ctx context.Context, postID string, offset, limit int) ([]domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs := m.commentsOf(postID)
	if offset >= len(cs) {
		return []domain.Comment{}, nil
	}
	return cs[offset:min(offset+limit, len(cs))], nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
