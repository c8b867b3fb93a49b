package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/api"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// APIClient parle à l'API HTTP et traduit les statuts en erreurs du domaine.
// Il implémente Mutator et PageSource.
type APIClient struct {
	baseURL string
	token   string
	scope   domain.FeedScope
	http    *http.Client
}

type APIOption func(*APIClient)

func WithHTTPClient(c *http.Client) APIOption {
	return func(a *APIClient) { a.http = c }
}

func WithScope(scope domain.FeedScope) APIOption {
	return func(a *APIClient) { a.scope = scope }
}

func NewAPIClient(baseURL, token string, opts ...APIOption) *APIClient {
	a := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *APIClient) FetchPage(ctx context.Context, offset, limit int, anchor *domain.Anchor) (*domain.FeedPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	if anchor != nil {
		q.Set("anchor", anchor.Encode())
	}
	if a.scope != "" {
		q.Set("scope", string(a.scope))
	}

	var page api.FeedPage
	if err := a.do(ctx, http.MethodGet, "/v1/feed?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return page.ToDomain()
}

func (a *APIClient) GetPost(ctx context.Context, postID string) (*domain.AggregatedPost, error) {
	var post api.Post
	if err := a.do(ctx, http.MethodGet, "/v1/posts/"+url.PathEscape(postID), nil, &post); err != nil {
		return nil, err
	}
	p := post.ToDomain()
	return &p, nil
}

func (a *APIClient) ListComments(ctx context.Context, postID string, offset, limit int) ([]domain.Comment, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var list api.CommentList
	if err := a.do(ctx, http.MethodGet, "/v1/posts/"+url.PathEscape(postID)+"/comments?"+q.Encode(), nil, &list); err != nil {
		return nil, err
	}
	out := make([]domain.Comment, len(list.Comments))
	for i, c := range list.Comments {
		out[i] = c.ToDomain()
	}
	return out, nil
}

func (a *APIClient) AddLike(ctx context.Context, postID string) (*domain.Like, error) {
	var like api.Like
	if err := a.do(ctx, http.MethodPost, "/v1/likes", api.LikeRequest{PostID: postID}, &like); err != nil {
		return nil, err
	}
	l := like.ToDomain()
	return &l, nil
}

func (a *APIClient) RemoveLike(ctx context.Context, postID string) error {
	return a.do(ctx, http.MethodDelete, "/v1/likes/"+url.PathEscape(postID), nil, nil)
}

func (a *APIClient) AddComment(ctx context.Context, postID, content string) (*domain.Comment, error) {
	var comment api.Comment
	if err := a.do(ctx, http.MethodPost, "/v1/comments", api.CommentRequest{PostID: postID, Content: content}, &comment); err != nil {
		return nil, err
	}
	c := comment.ToDomain()
	return &c, nil
}

func (a *APIClient) RemoveComment(ctx context.Context, commentID string) error {
	return a.do(ctx, http.MethodDelete, "/v1/comments/"+url.PathEscape(commentID), nil, nil)
}

func (a *APIClient) Follow(ctx context.Context, userID string) error {
	return a.do(ctx, http.MethodPost, "/v1/follows/"+url.PathEscape(userID), nil, nil)
}

func (a *APIClient) Unfollow(ctx context.Context, userID string) error {
	return a.do(ctx, http.MethodDelete, "/v1/follows/"+url.PathEscape(userID), nil, nil)
}

func (a *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		// Réseau, timeout : transitoire
		return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError fait le chemin inverse de mapDomainError côté serveur.
func statusError(resp *http.Response) error {
	var body api.Error
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return &domain.ValidationError{Field: "request", Reason: msg}
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	case http.StatusConflict:
		return domain.ErrAlreadyLiked
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnavailable, msg)
	}
}
