package event

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

const cleanupBatchSize = 100

// StartCleanupWorker 启动定时清理，每 24 小时执行一次，ctx 结束时退出
// days 参数指定保留的天数，超过该天数的事件将被删除
func (c Core) StartCleanupWorker(ctx context.Context, days int) {
	if days <= 0 {
		slog.Info("event cleanup disabled", "days", days)
		return
	}

	slog.Info("event cleanup worker started", "retain_days", days)

	// 启动时先执行一次清理
	c.CleanupExpired(ctx, time.Now().AddDate(0, 0, -days))

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CleanupExpired(ctx, time.Now().AddDate(0, 0, -days))
		}
	}
}

// CleanupExpired 清理 cutoff 之前的事件，先删除本地截图，再删除数据库记录
// 返回删除的事件数
func (c Core) CleanupExpired(ctx context.Context, cutoff time.Time) int {
	slog.Info("starting event cleanup", "cutoff_time", cutoff.Format(time.DateTime))

	totalDeleted := 0
	totalFilesDeleted := 0

	for {
		// 每轮都取第一页，已删除的记录不会再次出现
		var events []*Event
		pager := web.PagerFilter{Page: 1, Size: cleanupBatchSize}
		_, err := c.store.Event().Find(ctx, &events, &pager,
			orm.Where("started_at < ?", cutoff),
			orm.OrderBy("started_at ASC"),
		)
		if err != nil {
			slog.Error("failed to query expired events", "err", err)
			break
		}
		if len(events) == 0 {
			break
		}

		// 同一帧的多个目标可能共用截图，去重后删除
		imagePaths := make(map[string]struct{})
		eventIDs := make([]int64, 0, len(events))
		for _, e := range events {
			eventIDs = append(eventIDs, e.ID)
			if e.ImagePath != "" {
				imagePaths[e.ImagePath] = struct{}{}
			}
		}

		for imagePath := range imagePaths {
			fullPath := filepath.Join(c.eventsDir, imagePath)
			if err := os.Remove(fullPath); err != nil {
				if !os.IsNotExist(err) {
					slog.Warn("failed to delete event image", "path", fullPath, "err", err)
				}
			} else {
				totalFilesDeleted++
			}
		}

		// 批量删除数据库记录，使用 WHERE IN 一次性删除
		err = c.store.Event().Session(ctx, func(tx *gorm.DB) error {
			return tx.Where("id IN ?", eventIDs).Delete(&Event{}).Error
		})
		if err != nil {
			slog.Warn("failed to batch delete events", "count", len(eventIDs), "err", err)
			break
		}
		totalDeleted += len(eventIDs)
	}

	cleanupEmptyDirs(c.eventsDir)

	slog.Info("event cleanup completed",
		"events_deleted", totalDeleted,
		"files_deleted", totalFilesDeleted,
	)
	return totalDeleted
}

// cleanupEmptyDirs 递归删除空目录
func cleanupEmptyDirs(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		subDir := filepath.Join(dir, entry.Name())
		cleanupEmptyDirs(subDir)

		subEntries, err := os.ReadDir(subDir)
		if err == nil && len(subEntries) == 0 {
			if err := os.Remove(subDir); err == nil {
				slog.Debug("removed empty directory", "path", subDir)
			}
		}
	}
}
