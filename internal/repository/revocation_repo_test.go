package repository

import (
	"context"
	"testing"
	"time"
)

// PostgresRevocationRepoはRevocationRepositoryインターフェースを満たすことを検証
func TestPostgresRevocationRepo_ImplementsInterface(t *testing.T) {
	var _ RevocationRepository = (*PostgresRevocationRepo)(nil)
}

// NewPostgresRevocationRepoが正しく初期化されることを検証
func TestNewPostgresRevocationRepo_Initializes(t *testing.T) {
	repo := NewPostgresRevocationRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestMemoryRevocationRepo_RevokeAndCheck(t *testing.T) {
	repo := NewMemoryRevocationRepo()
	ctx := context.Background()

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revoked {
		t.Fatal("jti-1 should not be revoked before Revoke")
	}

	if err := repo.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	revoked, err = repo.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !revoked {
		t.Error("jti-1 should be revoked")
	}

	// 別IDには影響しない
	revoked, _ = repo.IsRevoked(ctx, "jti-2")
	if revoked {
		t.Error("jti-2 should not be revoked")
	}
}

func TestMemoryRevocationRepo_Revoke_IsIdempotent(t *testing.T) {
	repo := NewMemoryRevocationRepo()
	ctx := context.Background()
	first := time.Now().Add(time.Hour)

	if err := repo.Revoke(ctx, "jti-1", first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Revoke(ctx, "jti-1", first.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := repo.entries["jti-1"]; !got.Equal(first) {
		t.Errorf("expiresAt = %v, want first value %v", got, first)
	}
}

func TestMemoryRevocationRepo_DeleteExpired(t *testing.T) {
	repo := NewMemoryRevocationRepo()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	_ = repo.Revoke(ctx, "expired", now.Add(-time.Minute))
	_ = repo.Revoke(ctx, "boundary", now)
	_ = repo.Revoke(ctx, "alive", now.Add(time.Minute))

	deleted, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	if revoked, _ := repo.IsRevoked(ctx, "alive"); !revoked {
		t.Error("alive entry should remain")
	}
	if revoked, _ := repo.IsRevoked(ctx, "expired"); revoked {
		t.Error("expired entry should be deleted")
	}
}
