package domain

import (
	"time"

	"github.com/google/uuid"
)

// Post est immuable une fois publié (hors édition de légende, non couverte ici).
type Post struct {
	ID         string
	AuthorID   string
	AuthorName string
	ImageURL   string
	Caption    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewPost crée un post valide. La légende est normalisée et bornée.
func NewPost(author Viewer, imageURL string, caption *string) (*Post, error) {
	if imageURL == "" {
		return nil, invalid("image", "is required")
	}
	c, err := NormalizeCaption(caption)
	if err != nil {
		return nil, err
	}
	now := Now()
	return &Post{
		ID:         uuid.NewString(),
		AuthorID:   author.ID,
		AuthorName: author.Username,
		ImageURL:   imageURL,
		Caption:    c,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Now renvoie l'heure UTC tronquée à la microseconde (précision de timestamptz),
// pour que les ancres de pagination fassent l'aller-retour sans perte.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
