package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresRevocationRepo はPostgreSQLを使用した失効リストリポジトリ。
// 複数インスタンスで失効状態を共有する場合に使用する。
type PostgresRevocationRepo struct {
	db *sql.DB
}

// NewPostgresRevocationRepo はPostgresRevocationRepoを生成する。
func NewPostgresRevocationRepo(db *sql.DB) *PostgresRevocationRepo {
	return &PostgresRevocationRepo{db: db}
}

// Revoke はセッションIDを失効リストに追加する。
func (r *PostgresRevocationRepo) Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_sessions (jti, expires_at, revoked_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (jti) DO NOTHING`,
		sessionID, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsRevoked はセッションIDが失効済みかを返す。
func (r *PostgresRevocationRepo) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	var revoked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_sessions WHERE jti = $1)`,
		sessionID,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check revoked session: %w", err)
	}
	return revoked, nil
}

// DeleteExpired は期限切れのエントリを削除する。
// 期限切れのトークンは署名検証の段階で拒否されるため、失効リストに残す必要がない。
func (r *PostgresRevocationRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired revocations: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ RevocationRepository = (*PostgresRevocationRepo)(nil)
