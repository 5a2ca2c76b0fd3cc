// Package service implements the application services that sit between the
// HTTP layer and the ports.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/user"
	"github.com/atelierhq/atelier/internal/port/database"
)

// keyPrefixLen is the length of the stored lookup prefix: "atl_" plus
// eight hex characters.
const keyPrefixLen = 12

// AuthService issues and validates API keys. Only a bcrypt hash of the key
// persists; the plaintext is shown once at creation.
type AuthService struct {
	db   database.Store
	cost int
}

// NewAuthService creates an AuthService with the given bcrypt cost.
func NewAuthService(db database.Store, bcryptCost int) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{db: db, cost: bcryptCost}
}

// GenerateAPIKey mints a new key for the user and returns the plaintext.
func (s *AuthService) GenerateAPIKey(ctx context.Context, userID string) (string, *user.APIKey, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("generate key material: %w", err)
	}
	plaintext := "atl_" + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", nil, fmt.Errorf("hash api key: %w", err)
	}

	key, err := s.db.CreateAPIKey(ctx, &user.APIKey{
		UserID: userID,
		Prefix: plaintext[:keyPrefixLen],
		Hash:   string(hash),
	})
	if err != nil {
		return "", nil, err
	}
	return plaintext, key, nil
}

// ValidateAPIKey resolves a presented key to its owner. The stored prefix
// narrows the lookup; bcrypt comparison decides.
func (s *AuthService) ValidateAPIKey(ctx context.Context, key string) (*user.User, error) {
	if len(key) < keyPrefixLen {
		return nil, domain.ErrUnauthorized
	}
	stored, err := s.db.GetAPIKeyByPrefix(ctx, key[:keyPrefixLen])
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Hash), []byte(key)) != nil {
		return nil, domain.ErrUnauthorized
	}

	u, err := s.db.GetUser(ctx, stored.UserID)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	_ = s.db.TouchAPIKey(ctx, stored.ID)
	return u, nil
}
