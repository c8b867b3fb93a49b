package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

//go:embed schema.sql
var schemaSQL string

// Codes SQLSTATE utiles
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// likesUnique : nom de la contrainte (post_id, user_id) dans schema.sql
const likesUnique = "likes_post_user_unique"

// PostgresRepo implémente PostRepository, LikeRepository et CommentRepository.
type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// EnsureSchema crée tables, contraintes et index (Idempotent)
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	// Sans arguments, pgx passe par le simple protocol : plusieurs statements OK
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("db: ensure schema: %w", err)
	}
	return nil
}

// --- POSTS ---

const postColumns = `id, author_id, author_name, image_url, caption, created_at, updated_at`

func (r *PostgresRepo) SavePost(ctx context.Context, post *domain.Post) error {
	q := `
		INSERT INTO posts (id, author_id, author_name, image_url, caption, created_at, updated_at)
		VALUES (@id, @author_id, @author_name, @image_url, @caption, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":          post.ID,
		"author_id":   post.AuthorID,
		"author_name": post.AuthorName,
		"image_url":   post.ImageURL,
		"caption":     post.Caption,
		"created_at":  post.CreatedAt,
		"updated_at":  post.UpdatedAt,
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return r.handleError("save post", err)
	}
	return nil
}

func (r *PostgresRepo) FindPost(ctx context.Context, postID string) (*domain.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	p, err := scanPost(r.db.QueryRow(ctx, q, postID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPostNotFound
		}
		return nil, r.handleError("find post", err)
	}
	return p, nil
}

// GetPosts : BATCH FETCH (Hydratation Feed)
func (r *PostgresRepo) GetPosts(ctx context.Context, postIDs []string) ([]*domain.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, q, postIDs)
	if err != nil {
		return nil, r.handleError("get posts", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ListPosts : OFFSET sous une ancre (created_at, id). L'ancre fige le haut du
// feed, les nouveaux posts ne décalent donc pas les offsets.
func (r *PostgresRepo) ListPosts(ctx context.Context, offset, limit int, anchor *domain.Anchor) ([]*domain.Post, error) {
	q := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE $1::timestamptz IS NULL OR (created_at, id) <= ($1::timestamptz, $2::text)
		ORDER BY created_at DESC, id DESC
		OFFSET $3 LIMIT $4
	`
	at, id := anchorArgs(anchor)
	rows, err := r.db.Query(ctx, q, at, id, offset, limit)
	if err != nil {
		return nil, r.handleError("list posts", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

func (r *PostgresRepo) CountPosts(ctx context.Context, anchor *domain.Anchor) (int, error) {
	q := `
		SELECT COUNT(*) FROM posts
		WHERE $1::timestamptz IS NULL OR (created_at, id) <= ($1::timestamptz, $2::text)
	`
	at, id := anchorArgs(anchor)
	var n int64
	if err := r.db.QueryRow(ctx, q, at, id).Scan(&n); err != nil {
		return 0, r.handleError("count posts", err)
	}
	return int(n), nil
}

// --- LIKES ---

func (r *PostgresRepo) SaveLike(ctx context.Context, like *domain.Like) error {
	q := `
		INSERT INTO likes (id, post_id, user_id, created_at)
		VALUES (@id, @post_id, @user_id, @created_at)
	`
	args := pgx.NamedArgs{
		"id":         like.ID,
		"post_id":    like.PostID,
		"user_id":    like.UserID,
		"created_at": like.CreatedAt,
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return r.handleError("save like", err)
	}
	return nil
}

func (r *PostgresRepo) FindLike(ctx context.Context, postID, userID string) (*domain.Like, error) {
	q := `SELECT id, post_id, user_id, created_at FROM likes WHERE post_id = $1 AND user_id = $2`
	var l domain.Like
	err := r.db.QueryRow(ctx, q, postID, userID).Scan(&l.ID, &l.PostID, &l.UserID, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLikeNotFound
		}
		return nil, r.handleError("find like", err)
	}
	return &l, nil
}

func (r *PostgresRepo) DeleteLike(ctx context.Context, likeID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM likes WHERE id = $1`, likeID)
	if err != nil {
		return r.handleError("delete like", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLikeNotFound
	}
	return nil
}

func (r *PostgresRepo) CountLikes(ctx context.Context, postIDs []string) (map[string]int, error) {
	q := `SELECT post_id, COUNT(*) FROM likes WHERE post_id = ANY($1) GROUP BY post_id`
	return r.countBy(ctx, "count likes", q, postIDs)
}

func (r *PostgresRepo) LikedBy(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	q := `SELECT post_id FROM likes WHERE user_id = $1 AND post_id = ANY($2)`
	rows, err := r.db.Query(ctx, q, userID, postIDs)
	if err != nil {
		return nil, r.handleError("liked by", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// --- COMMENTS ---

const commentColumns = `id, post_id, author_id, author_name, content, created_at, updated_at`

func (r *PostgresRepo) SaveComment(ctx context.Context, c *domain.Comment) error {
	q := `
		INSERT INTO comments (id, post_id, author_id, author_name, content, created_at, updated_at)
		VALUES (@id, @post_id, @author_id, @author_name, @content, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":          c.ID,
		"post_id":     c.PostID,
		"author_id":   c.AuthorID,
		"author_name": c.AuthorName,
		"content":     c.Content,
		"created_at":  c.CreatedAt,
		"updated_at":  c.UpdatedAt,
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return r.handleError("save comment", err)
	}
	return nil
}

func (r *PostgresRepo) FindComment(ctx context.Context, commentID string) (*domain.Comment, error) {
	q := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`
	c, err := scanComment(r.db.QueryRow(ctx, q, commentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCommentNotFound
		}
		return nil, r.handleError("find comment", err)
	}
	return c, nil
}

func (r *PostgresRepo) DeleteComment(ctx context.Context, commentID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return r.handleError("delete comment", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

func (r *PostgresRepo) CountComments(ctx context.Context, postIDs []string) (map[string]int, error) {
	q := `SELECT post_id, COUNT(*) FROM comments WHERE post_id = ANY($1) GROUP BY post_id`
	return r.countBy(ctx, "count comments", q, postIDs)
}

// RecentComments : top-N par post en UNE requête (ROW_NUMBER fenêtré)
// au lieu d'une requête bornée par post.
func (r *PostgresRepo) RecentComments(ctx context.Context, postIDs []string, perPost int) (map[string][]domain.Comment, error) {
	q := `
		SELECT ` + commentColumns + `
		FROM (
			SELECT ` + commentColumns + `,
			       ROW_NUMBER() OVER (PARTITION BY post_id ORDER BY created_at DESC, id DESC) AS rn
			FROM comments
			WHERE post_id = ANY($1)
		) ranked
		WHERE rn <= $2
		ORDER BY post_id, rn
	`
	rows, err := r.db.Query(ctx, q, postIDs, perPost)
	if err != nil {
		return nil, r.handleError("recent comments", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Comment, len(postIDs))
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out[c.PostID] = append(out[c.PostID], *c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListComments(ctx context.Context, postID string, offset, limit int) ([]domain.Comment, error) {
	q := `
		SELECT ` + commentColumns + `
		FROM comments
		WHERE post_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`
	rows, err := r.db.Query(ctx, q, postID, offset, limit)
	if err != nil {
		return nil, r.handleError("list comments", err)
	}
	defer rows.Close()

	out := []domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// --- Helpers pour éviter la duplication de code ---

func (r *PostgresRepo) countBy(ctx context.Context, op, q string, postIDs []string) (map[string]int, error) {
	rows, err := r.db.Query(ctx, q, postIDs)
	if err != nil {
		return nil, r.handleError(op, err)
	}
	defer rows.Close()

	out := make(map[string]int, len(postIDs))
	for rows.Next() {
		var (
			id string
			n  int64
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = int(n)
	}
	return out, rows.Err()
}

func anchorArgs(a *domain.Anchor) (*time.Time, string) {
	if a == nil {
		return nil, ""
	}
	t := a.CreatedAt
	return &t, a.PostID
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	if err := row.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.ImageURL, &p.Caption, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func collectPosts(rows pgx.Rows) ([]*domain.Post, error) {
	posts := []*domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.AuthorName, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// handleError traduit les erreurs PostgreSQL en erreurs du Domaine
func (r *PostgresRepo) handleError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			// Une collision de clé primaire n'est pas un double like
			if pgErr.ConstraintName == likesUnique {
				return domain.ErrAlreadyLiked
			}
		case foreignKeyViolation:
			return domain.ErrPostNotFound
		}
		return fmt.Errorf("db: %s: %w", op, err)
	}

	// Base injoignable : erreur transitoire
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("db: %s: %w: %w", op, domain.ErrUnavailable, err)
	}
	return fmt.Errorf("db: %s: %w", op, err)
}
