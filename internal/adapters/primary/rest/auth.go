package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var viewerCtxKey = &contextKey{"viewer"}

// AuthMiddleware décode le header Authorization et valide le token.
// Pas de header : requête anonyme (lecture du feed). Header invalide : 401.
func AuthMiddleware(validator ports.TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			viewer, err := validator.Validate(tokenStr)
			if err != nil {
				slog.DebugContext(r.Context(), "token rejected", "error", err)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), viewer)))
		})
	}
}

func WithViewer(ctx context.Context, v *domain.Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey, v)
}

// ForContext renvoie le viewer courant, nil si anonyme
func ForContext(ctx context.Context) *domain.Viewer {
	v, _ := ctx.Value(viewerCtxKey).(*domain.Viewer)
	return v
}
