package mongostore

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/pairchat/internal/backend"
)

func TestUsersCreateAndGet(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	users := NewUsersStore(c.UsersCollection())

	acc, err := users.CreateUser(ctx, "  Alice@Example.com ", "hashed-password")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if acc.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %s", acc.Email)
	}
	if acc.ID == "" {
		t.Fatal("expected generated id")
	}

	byEmail, err := users.GetUserByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != acc.ID || byEmail.PasswordHash != "hashed-password" {
		t.Fatalf("GetUserByEmail returned %+v", byEmail)
	}

	byID, err := users.GetUserByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != acc.Email {
		t.Fatalf("GetUserByID returned wrong email: %s", byID.Email)
	}

	if _, err := users.CreateUser(ctx, "alice@example.com", "other"); !errors.Is(err, backend.ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestUsersNotFound(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	users := NewUsersStore(c.UsersCollection())

	if _, err := users.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := users.GetUserByID(ctx, "not-hex"); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
	if _, err := users.GetUserByID(ctx, bson.NewObjectID().Hex()); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
