package client

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// Mutator est le coordinateur de mutations distant (HTTP en prod).
type Mutator interface {
	AddLike(ctx context.Context, postID string) (*domain.Like, error)
	RemoveLike(ctx context.Context, postID string) error
	AddComment(ctx context.Context, postID, content string) (*domain.Comment, error)
	RemoveComment(ctx context.Context, commentID string) error
}

// Identity fournit le viewer courant, nil si anonyme.
type Identity interface {
	CurrentViewer() *domain.Viewer
}

// StaticIdentity : identité fixe (CLI, tests).
type StaticIdentity struct{ Viewer *domain.Viewer }

func (s StaticIdentity) CurrentViewer() *domain.Viewer { return s.Viewer }

type Status int

const (
	// StatusIdle : rien n'a été appliqué (intent ignoré ou rejeté localement)
	StatusIdle Status = iota
	StatusPending
	StatusCommitted
	StatusRolledBack
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

type Outcome struct {
	Status  Status
	Err     error
	Comment *domain.Comment // commentaire confirmé par le serveur
}

var (
	ErrMutationPending = errors.New("same mutation already pending")
	ErrUnknownPost     = errors.New("post not in local feed")
)

// localPrefix marque les commentaires synthétisés avant la réponse serveur.
const localPrefix = "local-"

type mutationKind int

const (
	kindLike mutationKind = iota
	kindCommentAdd
	kindCommentDelete
)

type pendingKey struct {
	target string // post id, ou comment id pour une suppression
	kind   mutationKind
	body   string // contenu normalisé pour un ajout de commentaire
}

// Engine applique les mutations en optimiste puis réconcilie avec la réponse.
// Une seule mutation identique à la fois par cible.
type Engine struct {
	state    *FeedState
	mutator  Mutator
	identity Identity

	propagateLikeErrors bool

	mu      sync.Mutex
	pending map[pendingKey]struct{}
}

type EngineOption func(*Engine)

// WithLikeErrors fait remonter les échecs de like dans Outcome.Err.
// Par défaut un like raté est annulé en silence (log seulement).
func WithLikeErrors() EngineOption {
	return func(e *Engine) { e.propagateLikeErrors = true }
}

func NewEngine(state *FeedState, mutator Mutator, identity Identity, opts ...EngineOption) *Engine {
	e := &Engine{
		state:    state,
		mutator:  mutator,
		identity: identity,
		pending:  make(map[pendingKey]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) acquire(k pendingKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.pending[k]; busy {
		return false
	}
	e.pending[k] = struct{}{}
	return true
}

func (e *Engine) release(k pendingKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, k)
}

// LikePending indique si un like/unlike est en vol pour ce post.
func (e *Engine) LikePending(postID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, busy := e.pending[pendingKey{target: postID, kind: kindLike}]
	return busy
}

// IsLiked lit l'état local (optimiste compris).
func (e *Engine) IsLiked(postID string) bool {
	p, ok := e.state.Post(postID)
	return ok && p.ViewerHasLiked
}

// --- LIKES ---

type likeOp struct {
	key     pendingKey
	gen     uint64
	adding  bool
	liked   bool // snapshot viewerHasLiked
	count   int  // snapshot likeCount
	applied bool
}

// beginLike passe en Pending et applique le delta attendu.
// want : nil = bascule, sinon l'état visé (un like déjà dans cet état est ignoré).
func (e *Engine) beginLike(postID string, want *bool) (*likeOp, Outcome) {
	if e.identity.CurrentViewer() == nil {
		return nil, Outcome{Status: StatusIdle, Err: domain.ErrUnauthorized}
	}
	key := pendingKey{target: postID, kind: kindLike}
	if !e.acquire(key) {
		return nil, Outcome{Status: StatusIdle, Err: ErrMutationPending}
	}

	op := &likeOp{key: key, gen: e.state.Generation()}
	e.state.update(op.gen, postID, func(p *domain.AggregatedPost) {
		if want != nil && *want == p.ViewerHasLiked {
			return
		}
		op.liked, op.count = p.ViewerHasLiked, p.LikeCount
		op.adding = !p.ViewerHasLiked
		op.applied = true

		p.ViewerHasLiked = op.adding
		if op.adding {
			p.LikeCount++
		} else if p.LikeCount > 0 {
			p.LikeCount--
		}
	})
	if !op.applied {
		e.release(key)
		if _, ok := e.state.Post(postID); !ok {
			return nil, Outcome{Status: StatusIdle, Err: ErrUnknownPost}
		}
		return nil, Outcome{Status: StatusIdle}
	}
	return op, Outcome{Status: StatusPending}
}

func (e *Engine) sendLike(ctx context.Context, postID string, op *likeOp) error {
	if op.adding {
		_, err := e.mutator.AddLike(ctx, postID)
		return err
	}
	return e.mutator.RemoveLike(ctx, postID)
}

func (e *Engine) finishLike(postID string, op *likeOp, err error) Outcome {
	defer e.release(op.key)

	if err == nil || redundantLike(op.adding, err) {
		return Outcome{Status: StatusCommitted}
	}

	// Restauration exacte du snapshot, si la vue est toujours la même
	e.state.update(op.gen, postID, func(p *domain.AggregatedPost) {
		p.ViewerHasLiked = op.liked
		p.LikeCount = op.count
	})
	slog.Warn("like rolled back", "post_id", postID, "adding", op.adding, "error", err)

	out := Outcome{Status: StatusRolledBack}
	if e.propagateLikeErrors {
		out.Err = err
	}
	return out
}

// redundantLike : le serveur est déjà dans l'état visé.
func redundantLike(adding bool, err error) bool {
	if adding {
		return errors.Is(err, domain.ErrAlreadyLiked)
	}
	return errors.Is(err, domain.ErrNotFound)
}

func (e *Engine) runLike(ctx context.Context, postID string, want *bool) Outcome {
	op, out := e.beginLike(postID, want)
	if op == nil {
		return out
	}
	return e.finishLike(postID, op, e.sendLike(ctx, postID, op))
}

// ToggleLike bascule le like du viewer.
func (e *Engine) ToggleLike(ctx context.Context, postID string) Outcome {
	return e.runLike(ctx, postID, nil)
}

// Like ne fait rien si le post est déjà liké localement.
func (e *Engine) Like(ctx context.Context, postID string) Outcome {
	want := true
	return e.runLike(ctx, postID, &want)
}

func (e *Engine) Unlike(ctx context.Context, postID string) Outcome {
	want := false
	return e.runLike(ctx, postID, &want)
}

// LikeAsync applique le delta tout de suite et envoie la mutation en
// arrière-plan. Le canal reçoit exactement un Outcome.
func (e *Engine) LikeAsync(ctx context.Context, postID string) <-chan Outcome {
	done := make(chan Outcome, 1)
	want := true
	op, out := e.beginLike(postID, &want)
	if op == nil {
		done <- out
		return done
	}
	go func() {
		done <- e.finishLike(postID, op, e.sendLike(ctx, postID, op))
	}()
	return done
}

// --- COMMENTS ---

// AddComment ajoute un commentaire local temporaire, puis le remplace par
// celui du serveur. Les erreurs sont toujours remontées.
func (e *Engine) AddComment(ctx context.Context, postID, content string) Outcome {
	viewer := e.identity.CurrentViewer()
	if viewer == nil {
		return Outcome{Status: StatusIdle, Err: domain.ErrUnauthorized}
	}
	// Validation locale : même règle que le serveur, rien n'est appliqué
	local, err := domain.NewComment(postID, *viewer, content)
	if err != nil {
		return Outcome{Status: StatusIdle, Err: err}
	}
	local.ID = localPrefix + uuid.NewString()

	// Deux commentaires différents sur le même post partent en parallèle,
	// seul un renvoi du même texte est refusé.
	key := pendingKey{target: postID, kind: kindCommentAdd, body: local.Content}
	if !e.acquire(key) {
		return Outcome{Status: StatusIdle, Err: ErrMutationPending}
	}
	defer e.release(key)

	gen := e.state.Generation()
	var evicted *domain.Comment
	if !e.state.update(gen, postID, func(p *domain.AggregatedPost) {
		preview := append([]domain.Comment{*local}, p.CommentPreview...)
		if len(preview) > domain.PreviewSize {
			c := preview[domain.PreviewSize]
			evicted = &c
			preview = preview[:domain.PreviewSize]
		}
		p.CommentPreview = preview
		p.CommentCount++
	}) {
		return Outcome{Status: StatusIdle, Err: ErrUnknownPost}
	}

	saved, err := e.mutator.AddComment(ctx, postID, local.Content)
	if err != nil {
		e.state.update(gen, postID, func(p *domain.AggregatedPost) {
			p.CommentPreview = slices.DeleteFunc(p.CommentPreview, func(c domain.Comment) bool { return c.ID == local.ID })
			if evicted != nil && !isLocal(*evicted) && len(p.CommentPreview) < domain.PreviewSize && !hasComment(p.CommentPreview, evicted.ID) {
				p.CommentPreview = append(p.CommentPreview, *evicted)
			}
			if p.CommentCount > 0 {
				p.CommentCount--
			}
		})
		return Outcome{Status: StatusRolledBack, Err: err}
	}

	// Identité et horodatage font foi côté serveur. Si le commentaire local a
	// été poussé hors de l'aperçu par un autre ajout, on le réinsère à son rang.
	e.state.update(gen, postID, func(p *domain.AggregatedPost) {
		for i := range p.CommentPreview {
			if p.CommentPreview[i].ID == local.ID {
				p.CommentPreview[i] = *saved
				return
			}
		}
		if hasComment(p.CommentPreview, saved.ID) {
			return
		}
		at := len(p.CommentPreview)
		for i := range p.CommentPreview {
			if domain.CommentLess(saved, &p.CommentPreview[i]) {
				at = i
				break
			}
		}
		if at < domain.PreviewSize {
			p.CommentPreview = slices.Insert(p.CommentPreview, at, *saved)
			if len(p.CommentPreview) > domain.PreviewSize {
				p.CommentPreview = p.CommentPreview[:domain.PreviewSize]
			}
		}
	})
	return Outcome{Status: StatusCommitted, Comment: saved}
}

// RemoveComment retire le commentaire de l'aperçu tout de suite. En cas
// d'échec il est remis à sa position d'origine.
func (e *Engine) RemoveComment(ctx context.Context, postID, commentID string) Outcome {
	if e.identity.CurrentViewer() == nil {
		return Outcome{Status: StatusIdle, Err: domain.ErrUnauthorized}
	}

	key := pendingKey{target: commentID, kind: kindCommentDelete}
	if !e.acquire(key) {
		return Outcome{Status: StatusIdle, Err: ErrMutationPending}
	}
	defer e.release(key)

	gen := e.state.Generation()
	var (
		removed     domain.Comment
		position    = -1
		decremented bool
	)
	if !e.state.update(gen, postID, func(p *domain.AggregatedPost) {
		for i, c := range p.CommentPreview {
			if c.ID == commentID {
				position, removed = i, c
				p.CommentPreview = slices.Delete(p.CommentPreview, i, i+1)
				break
			}
		}
		if p.CommentCount > 0 {
			p.CommentCount--
			decremented = true
		}
	}) {
		return Outcome{Status: StatusIdle, Err: ErrUnknownPost}
	}

	err := e.mutator.RemoveComment(ctx, commentID)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return Outcome{Status: StatusCommitted}
	}

	e.state.update(gen, postID, func(p *domain.AggregatedPost) {
		if position >= 0 && !hasComment(p.CommentPreview, commentID) {
			at := min(position, len(p.CommentPreview))
			p.CommentPreview = slices.Insert(p.CommentPreview, at, removed)
		}
		if decremented {
			p.CommentCount++
		}
	})
	return Outcome{Status: StatusRolledBack, Err: err}
}

func isLocal(c domain.Comment) bool {
	return strings.HasPrefix(c.ID, localPrefix)
}

func hasComment(cs []domain.Comment, id string) bool {
	return slices.ContainsFunc(cs, func(c domain.Comment) bool { return c.ID == id })
}
