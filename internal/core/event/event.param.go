package event

import (
	"time"

	"github.com/ixugo/goddd/pkg/web"
)

// FindEventInput 事件分页查询
type FindEventInput struct {
	web.PagerFilter
	Label     string `form:"label"`      // 类别名称
	TrackedID *int   `form:"tracked_id"` // 跟踪 id
	SessionID string `form:"session_id"`
	StartMs   int64  `form:"start_ms"` // 毫秒时间戳
	EndMs     int64  `form:"end_ms"`
}

// AddEventInput 新增事件
type AddEventInput struct {
	SessionID string    `json:"session_id"`
	TrackedID int       `json:"tracked_id"`
	ClassID   int       `json:"class_id"`
	Label     string    `json:"label"`
	Score     float32   `json:"score"`
	Zones     string    `json:"zones"`
	ImagePath string    `json:"image_path"`
	Model     string    `json:"model"`
	StartedAt time.Time `json:"started_at"`
}
