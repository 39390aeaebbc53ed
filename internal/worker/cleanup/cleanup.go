// Package cleanup は期限切れの失効リストエントリを定期削除するジョブを提供する。
// 失効リストはセッションの有効期限までしか意味を持たないため、
// 期限を過ぎたエントリは削除しても認可判定に影響しない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger は期限切れエントリの削除を抽象化するインターフェース。
// repository.RevocationRepository を受け付けることができる。
type Purger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob は失効リストの定期クリーンアップジョブ。
// 冪等な削除処理を保証する。
type CleanupJob struct {
	purger   Purger
	logger   *slog.Logger
	Interval time.Duration // 実行間隔（デフォルト: 1時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(purger Purger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		purger:   purger,
		logger:   logger,
		Interval: time.Hour,
	}
}

// Start はctxがキャンセルされるまでInterval間隔でRunを実行する。
// 起動直後に1回実行する。
func (j *CleanupJob) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("失効リストのクリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	j.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("失効リストのクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}

// Run は期限切れの失効リストエントリを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.purger.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("失効リストのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("失効リストのクリーンアップに失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("失効リストのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
