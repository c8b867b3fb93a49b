// Package client contient la logique côté lecteur : état local du feed,
// mutations optimistes, pagination et double-tap.
package client

import (
	"slices"
	"sync"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// FeedState est la vue locale du feed. Generation change à chaque Reset :
// une réponse arrivée après un reset ne doit plus toucher l'état.
type FeedState struct {
	mu         sync.RWMutex
	posts      []domain.AggregatedPost
	index      map[string]int
	generation uint64
}

func NewFeedState() *FeedState {
	return &FeedState{index: make(map[string]int)}
}

// Reset remplace tout le contenu (chargement initial, refresh).
func (s *FeedState) Reset(posts []domain.AggregatedPost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.posts = s.posts[:0]
	s.index = make(map[string]int, len(posts))
	s.appendLocked(posts)
}

// Append ajoute une page à la suite. Un post déjà présent est ignoré.
func (s *FeedState) Append(posts []domain.AggregatedPost) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(posts)
}

func (s *FeedState) appendLocked(posts []domain.AggregatedPost) int {
	added := 0
	for _, p := range posts {
		if _, ok := s.index[p.ID]; ok {
			continue
		}
		s.index[p.ID] = len(s.posts)
		s.posts = append(s.posts, clonePost(p))
		added++
	}
	return added
}

func (s *FeedState) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *FeedState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// Post renvoie une copie du post.
func (s *FeedState) Post(postID string) (domain.AggregatedPost, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[postID]
	if !ok {
		return domain.AggregatedPost{}, false
	}
	return clonePost(s.posts[i]), true
}

// Posts renvoie une copie ordonnée de tout le feed.
func (s *FeedState) Posts() []domain.AggregatedPost {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AggregatedPost, len(s.posts))
	for i, p := range s.posts {
		out[i] = clonePost(p)
	}
	return out
}

// update applique fn sous verrou si le post existe et si la génération
// attendue est toujours courante.
func (s *FeedState) update(gen uint64, postID string, fn func(*domain.AggregatedPost)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	i, ok := s.index[postID]
	if !ok {
		return false
	}
	fn(&s.posts[i])
	return true
}

func clonePost(p domain.AggregatedPost) domain.AggregatedPost {
	p.CommentPreview = slices.Clone(p.CommentPreview)
	if p.Caption != nil {
		c := *p.Caption
		p.Caption = &c
	}
	return p
}
