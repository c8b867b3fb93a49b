package security

import (
	"fmt"
	"strings"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// DevValidator accepte "userID" ou "userID:username" comme token.
// Réservé à APP_ENV=local sans clé publique configurée.
type DevValidator struct{}

func (DevValidator) Validate(token string) (*domain.Viewer, error) {
	id, name, _ := strings.Cut(strings.TrimSpace(token), ":")
	if id == "" {
		return nil, fmt.Errorf("%w: empty dev token", domain.ErrUnauthorized)
	}
	if name == "" {
		name = id
	}
	return &domain.Viewer{ID: id, Username: name}, nil
}
