// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"
)

// RevocationRepository はサインアウト済みセッションの失効リストの永続化インターフェース。
// セッション自体は署名付きトークンとしてクライアント側に保持されるため、
// サーバー側ではサインアウト済みトークンのIDのみを期限まで記録する。
type RevocationRepository interface {
	// Revoke はセッションIDを失効リストに追加する。既に登録済みの場合は何もしない。
	Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error

	// IsRevoked はセッションIDが失効済みかを返す。
	IsRevoked(ctx context.Context, sessionID string) (bool, error)

	// DeleteExpired はトークン自体の期限を過ぎたエントリを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
