package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocationRepo はプロセス内メモリに失効リストを保持するリポジトリ。
// DATABASE_URL未設定の単一インスタンス構成で使用する。
type MemoryRevocationRepo struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationRepo はMemoryRevocationRepoを生成する。
func NewMemoryRevocationRepo() *MemoryRevocationRepo {
	return &MemoryRevocationRepo{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke はセッションIDを失効リストに追加する。
func (r *MemoryRevocationRepo) Revoke(_ context.Context, sessionID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[sessionID]; !exists {
		r.entries[sessionID] = expiresAt
	}
	return nil
}

// IsRevoked はセッションIDが失効済みかを返す。
func (r *MemoryRevocationRepo) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.entries[sessionID]
	return exists, nil
}

// DeleteExpired は期限切れのエントリを削除する。
func (r *MemoryRevocationRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var deleted int64
	for id, expiresAt := range r.entries {
		if !expiresAt.After(now) {
			delete(r.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

// compile-time interface check
var _ RevocationRepository = (*MemoryRevocationRepo)(nil)
