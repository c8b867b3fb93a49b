package domain

import (
	"errors"
	"fmt"
)

// --- ERREURS DU DOMAINE ---
// Les adapters traduisent les erreurs techniques vers ces sentinelles,
// les adapters primaires les traduisent vers leur protocole (HTTP, CLI).
var (
	ErrValidation   = errors.New("validation failed")
	ErrAlreadyLiked = errors.New("already liked")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("service unavailable")

	ErrPostNotFound    = fmt.Errorf("post %w", ErrNotFound)
	ErrLikeNotFound    = fmt.Errorf("like %w", ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("comment %w", ErrNotFound)
	ErrSelfFollow      = fmt.Errorf("%w: cannot follow yourself", ErrValidation)
)

// ValidationError décrit un champ invalide. errors.Is(err, ErrValidation) est vrai.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
