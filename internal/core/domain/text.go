package domain

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxCaptionLength = 2200
	MaxCommentLength = 1000
)

// normalizeText passe le texte en NFC avant tout comptage : "é" saisi en
// deux code points compte pour un seul.
func normalizeText(s string) string {
	return norm.NFC.String(s)
}

func codePoints(s string) int {
	return utf8.RuneCountInString(s)
}

// NormalizeComment valide et nettoie le contenu d'un commentaire.
func NormalizeComment(content string) (string, error) {
	c := strings.TrimSpace(normalizeText(content))
	if c == "" {
		return "", invalid("content", "must not be empty")
	}
	if codePoints(c) > MaxCommentLength {
		return "", invalid("content", "must be at most 1000 characters")
	}
	return c, nil
}

// NormalizeCaption valide une légende optionnelle. Une légende vide devient nil.
func NormalizeCaption(caption *string) (*string, error) {
	if caption == nil {
		return nil, nil
	}
	c := strings.TrimSpace(normalizeText(*caption))
	if c == "" {
		return nil, nil
	}
	if codePoints(c) > MaxCaptionLength {
		return nil, invalid("caption", "must be at most 2200 characters")
	}
	return &c, nil
}
