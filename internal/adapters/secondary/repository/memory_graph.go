package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// MemoryGraph est la relation "follows" en mémoire (mode STORAGE_DRIVER=memory et tests).
type MemoryGraph struct {
	mu        sync.RWMutex
	followers map[string]map[string]bool // target -> actors
}

func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{followers: make(map[string]map[string]bool)}
}

func (g *MemoryGraph) CreateRelation(ctx context.Context, actorID, targetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.followers[targetID] == nil {
		g.followers[targetID] = make(map[string]bool)
	}
	g.followers[targetID][actorID] = true
	return nil
}

func (g *MemoryGraph) DeleteRelation(ctx context.Context, actorID, targetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.followers[targetID], actorID)
	return nil
}

func (g *MemoryGraph) StreamFollowersIDs(ctx context.Context, userID string, batchSize int, yield func([]string) error) error {
	g.mu.RLock()
	ids := make([]string, 0, len(g.followers[userID]))
	for id := range g.followers[userID] {
		ids = append(ids, id)
	}
	g.mu.RUnlock()
	sort.Strings(ids)

	for i := 0; i < len(ids); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := yield(ids[i:min(i+batchSize, len(ids))]); err != nil {
			return err
		}
	}
	return nil
}

// MemoryTimeline reproduit le sorted set Redis : score = created_at, départage
// par id, TimelineCap entrées max. Pas d'expiration : la durée de vie du process suffit.
type MemoryTimeline struct {
	mu        sync.RWMutex
	timelines map[string]map[string]domain.TimelineEntry
	capped    int
}

func NewMemoryTimeline() *MemoryTimeline {
	return &MemoryTimeline{
		timelines: make(map[string]map[string]domain.TimelineEntry),
		capped:    TimelineCap,
	}
}

func (t *MemoryTimeline) AddToTimelines(ctx context.Context, userIDs []string, entry *domain.TimelineEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, uid := range userIDs {
		if t.timelines[uid] == nil {
			t.timelines[uid] = make(map[string]domain.TimelineEntry)
		}
		t.timelines[uid][entry.PostID] = *entry
		t.trim(uid)
	}
	return nil
}

// trim retire les entrées les plus anciennes au-delà du plafond.
func (t *MemoryTimeline) trim(userID string) {
	if len(t.timelines[userID]) <= t.capped {
		return
	}
	for _, e := range t.entries(userID, nil)[t.capped:] {
		delete(t.timelines[userID], e.PostID)
	}
}

func (t *MemoryTimeline) entries(userID string, anchor *domain.Anchor) []domain.TimelineEntry {
	var out []domain.TimelineEntry
	for _, e := range t.timelines[userID] {
		if anchor.Covers(&domain.Post{ID: e.PostID, CreatedAt: e.CreatedAt}) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return domain.FeedLess(
			&domain.Post{ID: out[i].PostID, CreatedAt: out[i].CreatedAt},
			&domain.Post{ID: out[j].PostID, CreatedAt: out[j].CreatedAt},
		)
	})
	return out
}

func (t *MemoryTimeline) GetTimeline(ctx context.Context, userID string, offset, limit int, anchor *domain.Anchor) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	es := t.entries(userID, anchor)
	if offset >= len(es) {
		return []string{}, nil
	}
	ids := make([]string, 0, limit)
	for _, e := range es[offset:min(offset+limit, len(es))] {
		ids = append(ids, e.PostID)
	}
	return ids, nil
}

func (t *MemoryTimeline) CountTimeline(ctx context.Context, userID string, anchor *domain.Anchor) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries(userID, anchor)), nil
}
