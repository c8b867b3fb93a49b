package domain

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// PreviewSize est le nombre de commentaires affichés sous un post.
const PreviewSize = 2

type FeedScope string

const (
	ScopeGlobal    FeedScope = "global"
	ScopeFollowing FeedScope = "following"
)

// AggregatedPost est une vue calculée à la lecture, jamais persistée.
type AggregatedPost struct {
	Post
	LikeCount      int
	CommentCount   int
	ViewerHasLiked bool
	CommentPreview []Comment // plus récent d'abord, PreviewSize max
}

// Anchor fige le haut du feed au moment de la première page : les pages
// suivantes ignorent tout ce qui est plus récent, donc les offsets ne bougent
// pas quand de nouveaux posts arrivent entre deux fetchs. Exception : un post
// créé plus tard dans la même microseconde que l'ancre, avec un id inférieur,
// reste sous l'ancre et décale les pages suivantes d'un cran.
type Anchor struct {
	CreatedAt time.Time
	PostID    string
}

// FeedRequest encapsule les critères de pagination
type FeedRequest struct {
	Offset int
	Limit  int
	Viewer *Viewer
	Anchor *Anchor
	Scope  FeedScope
}

type FeedPage struct {
	Posts      []AggregatedPost
	NextOffset int
	// HasMore est une heuristique : vrai si la page est pleine. Un feed dont la
	// dernière page contient exactement Limit posts coûte un fetch vide de plus.
	HasMore bool
	// Total est informatif (posts sous l'ancre au moment de la lecture),
	// il ne pilote jamais la pagination.
	Total  int
	Anchor *Anchor
}

var ErrInvalidAnchor = errors.New("invalid anchor token")

// Encode produit un token opaque "RFC3339Nano|id" en base64url.
func (a *Anchor) Encode() string {
	if a == nil {
		return ""
	}
	raw := a.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + a.PostID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseAnchor décode un token. Un token vide donne une ancre nil.
func ParseAnchor(token string) (*Anchor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidAnchor
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidAnchor
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidAnchor
	}
	return &Anchor{CreatedAt: t.UTC(), PostID: id}, nil
}

// Covers indique si le post est au niveau ou sous l'ancre dans l'ordre du feed.
func (a *Anchor) Covers(p *Post) bool {
	if a == nil {
		return true
	}
	if p.CreatedAt.Equal(a.CreatedAt) {
		return p.ID <= a.PostID
	}
	return p.CreatedAt.Before(a.CreatedAt)
}

// FeedLess est l'ordre total du feed : created_at DESC puis id DESC.
func FeedLess(a, b *Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// CommentLess : plus récent d'abord, id DESC pour départager.
func CommentLess(a, b *Comment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// TimelineEntry est ce que le fan-out pousse dans les timelines "following".
type TimelineEntry struct {
	PostID    string
	AuthorID  string
	CreatedAt time.Time
}
