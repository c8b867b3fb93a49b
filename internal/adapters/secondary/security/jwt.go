package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// UserClaims : mêmes claims que ceux émis par identity-service
type UserClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// refreshSuffix : jti des refresh tokens émis par identity-service
const refreshSuffix = "-ref"

// JWTValidator ne détient que la clé PUBLIQUE : ce service vérifie, il n'émet pas.
type JWTValidator struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewJWTValidator charge la clé publique RSA depuis du PEM
func NewJWTValidator(publicKeyPEM []byte, issuer string) (*JWTValidator, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return NewJWTValidatorFromKey(pubKey, issuer), nil
}

func NewJWTValidatorFromKey(key *rsa.PublicKey, issuer string) *JWTValidator {
	return &JWTValidator{publicKey: key, issuer: issuer}
}

// Validate vérifie signature, expiration et émetteur puis renvoie le Viewer.
func (j *JWTValidator) Validate(tokenString string) (*domain.Viewer, error) {
	opts := []jwt.ParserOption{
		// Empêche les attaques où l'attaquant force l'algo à "none" ou "HS256"
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (any, error) {
		return j.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthorized)
	}

	// Seuls les access tokens portent user_id : un refresh token (claims
	// enregistrés seuls, jti "<id>-ref") n'authentifie pas une requête.
	if claims.UserID == "" || strings.HasSuffix(claims.ID, refreshSuffix) {
		return nil, errors.Join(domain.ErrUnauthorized, errors.New("not an access token"))
	}
	if claims.Subject != "" && claims.Subject != claims.UserID {
		return nil, errors.Join(domain.ErrUnauthorized, errors.New("subject does not match user_id"))
	}
	return &domain.Viewer{ID: claims.UserID, Username: claims.Username}, nil
}
