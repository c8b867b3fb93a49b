package client

import (
	"context"
	"sync"
	"time"
)

const (
	DoubleTapWindow = 300 * time.Millisecond
	AckDuration     = 1000 * time.Millisecond
)

// Liker est la partie de l'Engine dont le double-tap a besoin.
type Liker interface {
	IsLiked(postID string) bool
	LikePending(postID string) bool
	LikeAsync(ctx context.Context, postID string) <-chan Outcome
}

type TapResult int

const (
	TapIgnored TapResult = iota
	TapFirst
	TapDouble
)

// Gesture distingue simple et double tap, post par post.
type Gesture struct {
	liker     Liker
	now       func() time.Time
	afterFunc func(time.Duration, func())

	mu      sync.Mutex
	lastTap map[string]time.Time
	acks    map[string]uint64 // post -> jeton de l'acquittement visible
	seq     uint64
}

type GestureOption func(*Gesture)

// WithClock injecte l'horloge et le minuteur (tests).
func WithClock(now func() time.Time, afterFunc func(time.Duration, func())) GestureOption {
	return func(g *Gesture) {
		g.now = now
		g.afterFunc = afterFunc
	}
}

func NewGesture(liker Liker, opts ...GestureOption) *Gesture {
	g := &Gesture{
		liker: liker,
		now:   time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		lastTap: make(map[string]time.Time),
		acks:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Tap traite un tap sur l'image d'un post. Un double tap déclenche au plus
// un like ; un post déjà liké ou en cours de like ignore tous les taps.
func (g *Gesture) Tap(ctx context.Context, postID string) TapResult {
	if g.liker.IsLiked(postID) || g.liker.LikePending(postID) {
		return TapIgnored
	}

	g.mu.Lock()
	now := g.now()
	last, seen := g.lastTap[postID]
	delta := now.Sub(last)
	if !seen || delta <= 0 || delta >= DoubleTapWindow {
		g.lastTap[postID] = now
		g.mu.Unlock()
		return TapFirst
	}

	delete(g.lastTap, postID)
	g.mu.Unlock()

	// LikeAsync répond tout de suite quand rien n'a été appliqué (anonyme,
	// post absent du feed) : pas de coeur dans ce cas.
	select {
	case out := <-g.liker.LikeAsync(ctx, postID):
		if out.Status == StatusIdle {
			return TapIgnored
		}
	default:
	}

	g.mu.Lock()
	g.seq++
	token := g.seq
	g.acks[postID] = token
	g.mu.Unlock()

	g.afterFunc(AckDuration, func() { g.clearAck(postID, token) })
	return TapDouble
}

func (g *Gesture) clearAck(postID string, token uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	// Un acquittement plus récent garde la main
	if g.acks[postID] == token {
		delete(g.acks, postID)
	}
}

// AckVisible : le coeur du double tap est-il affiché ?
func (g *Gesture) AckVisible(postID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.acks[postID]
	return ok
}
