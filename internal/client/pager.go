package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// PageSource est le lecteur d'agrégation distant.
type PageSource interface {
	FetchPage(ctx context.Context, offset, limit int, anchor *domain.Anchor) (*domain.FeedPage, error)
}

var ErrLoadInProgress = errors.New("a page fetch is already in flight")

// Pager pilote la pagination : un seul fetch en vol, curseur et hasMore
// ne bougent que sur succès.
type Pager struct {
	source PageSource
	state  *FeedState
	limit  int

	mu          sync.Mutex
	loading     bool
	initialized bool
	cursor      int
	hasMore     bool
	anchor      *domain.Anchor
	total       int
}

func NewPager(source PageSource, state *FeedState, limit int) *Pager {
	return &Pager{source: source, state: state, limit: limit}
}

func (p *Pager) start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loading {
		return false
	}
	p.loading = true
	return true
}

func (p *Pager) stop() {
	p.mu.Lock()
	p.loading = false
	p.mu.Unlock()
}

// LoadInitial charge la première page et remplace l'état local.
// Une erreur est renvoyée telle quelle : l'appelant propose de réessayer.
func (p *Pager) LoadInitial(ctx context.Context) (*domain.FeedPage, error) {
	if !p.start() {
		return nil, ErrLoadInProgress
	}
	defer p.stop()

	page, err := p.source.FetchPage(ctx, 0, p.limit, nil)
	if err != nil {
		return nil, err
	}

	p.state.Reset(page.Posts)

	p.mu.Lock()
	p.initialized = true
	p.cursor = page.NextOffset
	p.hasMore = page.HasMore
	p.anchor = page.Anchor
	p.total = page.Total
	p.mu.Unlock()
	return page, nil
}

// LoadNext charge la page au curseur courant et l'ajoute à l'état.
func (p *Pager) LoadNext(ctx context.Context) (*domain.FeedPage, error) {
	if !p.start() {
		return nil, ErrLoadInProgress
	}
	defer p.stop()

	p.mu.Lock()
	cursor, anchor := p.cursor, p.anchor
	p.mu.Unlock()
	gen := p.state.Generation()

	page, err := p.source.FetchPage(ctx, cursor, p.limit, anchor)
	if err != nil {
		return nil, err
	}

	// L'état a été réinitialisé pendant le fetch : réponse obsolète
	if p.state.Generation() != gen {
		return page, nil
	}
	p.state.Append(page.Posts)

	p.mu.Lock()
	p.cursor = page.NextOffset
	p.hasMore = page.HasMore
	p.mu.Unlock()
	return page, nil
}

// OnVisible est appelé quand le bas du feed devient visible. Le signal est
// ignoré si un fetch est en vol, avant le chargement initial ou en fin de
// données. Un échec est avalé : le prochain signal retentera la même page.
func (p *Pager) OnVisible(ctx context.Context) bool {
	p.mu.Lock()
	ready := !p.loading && p.initialized && p.hasMore
	p.mu.Unlock()
	if !ready {
		return false
	}

	if _, err := p.LoadNext(ctx); err != nil {
		if !errors.Is(err, ErrLoadInProgress) {
			slog.Debug("next page failed, will retry on next signal", "error", err)
		}
		return false
	}
	return true
}

func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

func (p *Pager) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

func (p *Pager) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Total est informatif (posts sous l'ancre au premier chargement).
func (p *Pager) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}
