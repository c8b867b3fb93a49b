package domain

import (
	"time"

	"github.com/google/uuid"
)

// Like : au plus un par couple (post, user), garanti par le stockage.
type Like struct {
	ID        string
	PostID    string
	UserID    string
	CreatedAt time.Time
}

func NewLike(postID, userID string) *Like {
	return &Like{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    userID,
		CreatedAt: Now(),
	}
}

type Comment struct {
	ID         string
	PostID     string
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewComment valide le contenu (non vide après trim, 1000 code points max).
func NewComment(postID string, author Viewer, content string) (*Comment, error) {
	c, err := NormalizeComment(content)
	if err != nil {
		return nil, err
	}
	now := Now()
	return &Comment{
		ID:         uuid.NewString(),
		PostID:     postID,
		AuthorID:   author.ID,
		AuthorName: author.Username,
		Content:    c,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Viewer est l'identité courante. Un viewer nil est anonyme.
type Viewer struct {
	ID       string
	Username string
}

// ViewerID renvoie "" pour un viewer anonyme.
func ViewerID(v *Viewer) string {
	if v == nil {
		return ""
	}
	return v.ID
}
