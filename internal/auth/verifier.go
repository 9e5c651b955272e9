// Package auth verifies bearer tokens issued by the external identity
// provider and resolves them to a subject. Two key sources are supported: a
// provider JWKS endpoint (keys selected by the token's kid and cached) or a
// static RS256 public key in PEM form.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier checks a bearer token and returns its subject.
type Verifier interface {
	Verify(token string) (subject string, err error)
}

type rs256Verifier struct {
	keyfunc jwt.Keyfunc
}

// NewJWKSVerifier fetches and caches the provider's key set; unknown kids
// trigger a refresh, so provider key rotation needs no restart.
func NewJWKSVerifier(ctx context.Context, jwksURL string) (Verifier, error) {
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("load jwks %s: %w", jwksURL, err)
	}
	return &rs256Verifier{keyfunc: kf.Keyfunc}, nil
}

// NewStaticVerifier reads an RS256 public key from a PEM file.
func NewStaticVerifier(publicKeyPath string) (Verifier, error) {
	b, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return NewKeyVerifier(key), nil
}

// NewKeyVerifier verifies against an in-memory RSA public key.
func NewKeyVerifier(key *rsa.PublicKey) Verifier {
	return &rs256Verifier{keyfunc: func(t *jwt.Token) (any, error) {
		return key, nil
	}}
}

func (v *rs256Verifier) Verify(token string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	tok, err := parser.Parse(token, v.keyfunc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("%w: sub missing", ErrInvalidToken)
	}
	return sub, nil
}
