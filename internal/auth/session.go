// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie carrying a player token.
const CookieName = "auth_token"

var ErrNotInitialized = errors.New("auth: signing keys not initialized")

var (
	keyMu      sync.RWMutex
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	tokenTTL   time.Duration
)

// Init generates a fresh ed25519 key pair. Tokens issued by a previous process stop verifying,
// which is fine since no game outlives the process. ttl of zero issues tokens without exp.
func Init(ttl time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	keyMu.Lock()
	defer keyMu.Unlock()
	publicKey, privateKey, tokenTTL = pub, priv, ttl
	return nil
}

// CreateJWT signs a token with "sub" = playerID.
func CreateJWT(playerID uuid.UUID) (string, error) {
	keyMu.RLock()
	defer keyMu.RUnlock()
	if privateKey == nil {
		return "", ErrNotInitialized
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  playerID.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if tokenTTL != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(tokenTTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(privateKey)
}

// AuthenticateJWT verifies a token and returns the player id in its subject.
func AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	keyMu.RLock()
	pub := publicKey
	keyMu.RUnlock()
	if pub == nil {
		return uuid.Nil, ErrNotInitialized
	}

	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pub, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}

	playerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid player id in token: %w", err)
	}
	return playerID, nil
}
