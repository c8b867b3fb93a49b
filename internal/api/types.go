// Package api définit le contrat JSON partagé entre le serveur HTTP et le client.
package api

import (
	"time"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Post struct {
	ID             string    `json:"id"`
	Author         Author    `json:"author"`
	ImageURL       string    `json:"image_url"`
	Caption        *string   `json:"caption"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	LikeCount      int       `json:"like_count"`
	CommentCount   int       `json:"comment_count"`
	ViewerHasLiked bool      `json:"viewer_has_liked"`
	CommentPreview []Comment `json:"comment_preview"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Like struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type FeedPage struct {
	Posts      []Post `json:"posts"`
	Total      int    `json:"total"`
	NextOffset int    `json:"next_offset"`
	HasMore    bool   `json:"has_more"`
	Anchor     string `json:"anchor,omitempty"`
}

type CommentList struct {
	Comments []Comment `json:"comments"`
}

// --- Requêtes ---

type LikeRequest struct {
	PostID string `json:"post_id"`
}

type CommentRequest struct {
	PostID  string `json:"post_id"`
	Content string `json:"content"`
}

type Error struct {
	Error string `json:"error"`
}

// --- MAPPERS ---

func FromPost(p *domain.AggregatedPost) Post {
	preview := make([]Comment, len(p.CommentPreview))
	for i := range p.CommentPreview {
		preview[i] = FromComment(&p.CommentPreview[i])
	}
	return Post{
		ID:             p.ID,
		Author:         Author{ID: p.AuthorID, Username: p.AuthorName},
		ImageURL:       p.ImageURL,
		Caption:        p.Caption,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		LikeCount:      p.LikeCount,
		CommentCount:   p.CommentCount,
		ViewerHasLiked: p.ViewerHasLiked,
		CommentPreview: preview,
	}
}

func (p Post) ToDomain() domain.AggregatedPost {
	preview := make([]domain.Comment, len(p.CommentPreview))
	for i, c := range p.CommentPreview {
		preview[i] = c.ToDomain()
	}
	return domain.AggregatedPost{
		Post: domain.Post{
			ID:         p.ID,
			AuthorID:   p.Author.ID,
			AuthorName: p.Author.Username,
			ImageURL:   p.ImageURL,
			Caption:    p.Caption,
			CreatedAt:  p.CreatedAt,
			UpdatedAt:  p.UpdatedAt,
		},
		LikeCount:      p.LikeCount,
		CommentCount:   p.CommentCount,
		ViewerHasLiked: p.ViewerHasLiked,
		CommentPreview: preview,
	}
}

// FromNewPost : un post fraîchement créé n'a ni like ni commentaire.
func FromNewPost(p *domain.Post) Post {
	return FromPost(&domain.AggregatedPost{Post: *p, CommentPreview: []domain.Comment{}})
}

func FromComment(c *domain.Comment) Comment {
	return Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    Author{ID: c.AuthorID, Username: c.AuthorName},
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (c Comment) ToDomain() domain.Comment {
	return domain.Comment{
		ID:         c.ID,
		PostID:     c.PostID,
		AuthorID:   c.Author.ID,
		AuthorName: c.Author.Username,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func FromLike(l *domain.Like) Like {
	return Like{ID: l.ID, PostID: l.PostID, UserID: l.UserID, CreatedAt: l.CreatedAt}
}

func (l Like) ToDomain() domain.Like {
	return domain.Like{ID: l.ID, PostID: l.PostID, UserID: l.UserID, CreatedAt: l.CreatedAt}
}

func FromFeedPage(page *domain.FeedPage) FeedPage {
	posts := make([]Post, len(page.Posts))
	for i := range page.Posts {
		posts[i] = FromPost(&page.Posts[i])
	}
	return FeedPage{
		Posts:      posts,
		Total:      page.Total,
		NextOffset: page.NextOffset,
		HasMore:    page.HasMore,
		Anchor:     page.Anchor.Encode(),
	}
}

func (p FeedPage) ToDomain() (*domain.FeedPage, error) {
	anchor, err := domain.ParseAnchor(p.Anchor)
	if err != nil {
		return nil, err
	}
	posts := make([]domain.AggregatedPost, len(p.Posts))
	for i, post := range p.Posts {
		posts[i] = post.ToDomain()
	}
	return &domain.FeedPage{
		Posts:      posts,
		NextOffset: p.NextOffset,
		HasMore:    p.HasMore,
		Total:      p.Total,
		Anchor:     anchor,
	}, nil
}
