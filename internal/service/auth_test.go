package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/user"
)

func TestAPIKeyRoundtrip(t *testing.T) {
	db := newFakeStore()
	svc := NewAuthService(db, bcrypt.MinCost)
	ctx := context.Background()

	u, err := db.CreateUser(ctx, &user.User{Name: "ada"})
	if err != nil {
		t.Fatal(err)
	}

	plaintext, key, err := svc.GenerateAPIKey(ctx, u.ID)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if !strings.HasPrefix(plaintext, "atl_") {
		t.Errorf("plaintext = %q", plaintext)
	}
	if key.Prefix != plaintext[:keyPrefixLen] {
		t.Errorf("stored prefix = %q", key.Prefix)
	}
	if key.Hash == plaintext {
		t.Error("plaintext stored verbatim")
	}

	got, err := svc.ValidateAPIKey(ctx, plaintext)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("resolved user = %s, want %s", got.ID, u.ID)
	}
}

func TestValidateAPIKeyRejections(t *testing.T) {
	db := newFakeStore()
	svc := NewAuthService(db, bcrypt.MinCost)
	ctx := context.Background()

	u, _ := db.CreateUser(ctx, &user.User{Name: "ada"})
	plaintext, _, err := svc.GenerateAPIKey(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"too short", "atl_ab"},
		{"unknown prefix", "atl_ffffffffffffffffffffffffffffffffffffffff"},
		{"right prefix wrong key", plaintext[:keyPrefixLen] + strings.Repeat("0", len(plaintext)-keyPrefixLen)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateAPIKey(ctx, tt.key); !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("err = %v, want unauthorized", err)
			}
		})
	}
}

func TestValidateAPIKeyTouchesLastUsed(t *testing.T) {
	db := newFakeStore()
	svc := NewAuthService(db, bcrypt.MinCost)
	ctx := context.Background()

	u, _ := db.CreateUser(ctx, &user.User{Name: "ada"})
	plaintext, key, err := svc.GenerateAPIKey(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateAPIKey(ctx, plaintext); err != nil {
		t.Fatal(err)
	}

	stored, err := db.GetAPIKeyByPrefix(ctx, key.Prefix)
	if err != nil {
		t.Fatal(err)
	}
	if stored.LastUsedAt.IsZero() {
		t.Error("last_used_at not touched")
	}
}
