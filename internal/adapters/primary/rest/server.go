package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/api"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

// maxUploadBytes : image (5 MB) + légende + enveloppe multipart
const maxUploadBytes = 6 << 20

// Server implémente l'API JSON (Adapter primaire)
type Server struct {
	feed         ports.FeedReader
	interactions ports.InteractionService
	posts        ports.PostService
	graph        ports.GraphService
	assetDir     string
}

type Option func(*Server)

// WithAssetDir expose les images stockées sous /assets/
func WithAssetDir(dir string) Option {
	return func(s *Server) { s.assetDir = dir }
}

func NewServer(feed ports.FeedReader, interactions ports.InteractionService, posts ports.PostService, graph ports.GraphService, opts ...Option) *Server {
	s := &Server{feed: feed, interactions: interactions, posts: posts, graph: graph}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes construit le mux. L'auth, le CORS et otelhttp sont posés par l'appelant.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/feed", s.getFeed)
	mux.HandleFunc("GET /v1/posts/{post_id}", s.getPost)
	mux.HandleFunc("GET /v1/posts/{post_id}/comments", s.listComments)
	mux.HandleFunc("POST /v1/posts", s.createPost)

	mux.HandleFunc("POST /v1/likes", s.addLike)
	mux.HandleFunc("DELETE /v1/likes/{post_id}", s.removeLike)
	mux.HandleFunc("POST /v1/comments", s.addComment)
	mux.HandleFunc("DELETE /v1/comments/{comment_id}", s.removeComment)

	mux.HandleFunc("POST /v1/follows/{user_id}", s.follow)
	mux.HandleFunc("DELETE /v1/follows/{user_id}", s.unfollow)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.assetDir != "" {
		mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(s.assetDir))))
	}

	return metricsMiddleware(mux)
}

// --- READS ---

func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	anchor, err := domain.ParseAnchor(q.Get("anchor"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page, err := s.feed.GetPage(r.Context(), domain.FeedRequest{
		Offset: offset,
		Limit:  limit,
		Viewer: ForContext(r.Context()),
		Anchor: anchor,
		Scope:  domain.FeedScope(q.Get("scope")),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromFeedPage(page))
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.feed.GetPost(r.Context(), r.PathValue("post_id"), ForContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromPost(post))
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	comments, err := s.feed.ListComments(r.Context(), r.PathValue("post_id"), offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := api.CommentList{Comments: make([]api.Comment, len(comments))}
	for i := range comments {
		out.Comments[i] = api.FromComment(&comments[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// --- MUTATIONS ---
// Un appel anonyme est rejeté ici, avant tout accès au stockage.

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "image must be at most 5 MB")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image: is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image: unreadable")
		return
	}

	var caption *string
	if values, ok := r.MultipartForm.Value["caption"]; ok && len(values) > 0 {
		caption = &values[0]
	}

	post, err := s.posts.CreatePost(r.Context(), viewer, ports.Upload{Data: data, Filename: header.Filename}, caption)
	recordMutation("post_create", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromNewPost(post))
}

func (s *Server) addLike(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req api.LikeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	like, err := s.interactions.AddLike(r.Context(), req.PostID, viewer)
	recordMutation("like_add", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromLike(like))
}

func (s *Server) removeLike(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	postID := r.PathValue("post_id")
	err := s.interactions.RemoveLike(r.Context(), postID, viewer)
	recordMutation("like_remove", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post_id": postID, "liked": false})
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req api.CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	comment, err := s.interactions.AddComment(r.Context(), req.PostID, viewer, req.Content)
	recordMutation("comment_add", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromComment(comment))
}

func (s *Server) removeComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	commentID := r.PathValue("comment_id")
	err := s.interactions.RemoveComment(r.Context(), commentID, viewer)
	recordMutation("comment_remove", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comment_id": commentID, "deleted": true})
}

func (s *Server) follow(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	target := r.PathValue("user_id")
	if err := s.graph.FollowUser(r.Context(), viewer, target); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": target, "following": true})
}

func (s *Server) unfollow(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	target := r.PathValue("user_id")
	if err := s.graph.UnfollowUser(r.Context(), viewer, target); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": target, "following": false})
}

// --- HELPERS ---

func requireViewer(w http.ResponseWriter, r *http.Request) (*domain.Viewer, bool) {
	v := ForContext(r.Context())
	if v == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return v, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// intParam : vide = valeur par défaut, le service se charge du clamp
func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
