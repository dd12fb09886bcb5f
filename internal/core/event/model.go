package event

import "time"

// Event 已确认目标的审计记录，每个确认检测一条
type Event struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"column:session_id;index;notNull;default:''" json:"session_id"` // 进程运行批次
	TrackedID int       `gorm:"column:tracked_id;index;notNull;default:0" json:"tracked_id"`  // 跟踪 id
	ClassID   int       `gorm:"column:class_id;notNull;default:0" json:"class_id"`
	Label     string    `gorm:"column:label;index;notNull;default:''" json:"label"` // 类别名称
	Score     float32   `gorm:"column:score;notNull;default:0" json:"score"`       // 置信度
	Zones     string    `gorm:"column:zones;notNull;default:''" json:"zones"`      // 边界框 JSON
	ImagePath string    `gorm:"column:image_path;notNull;default:''" json:"image_path"`
	Model     string    `gorm:"column:model;notNull;default:''" json:"model"`
	StartedAt time.Time `gorm:"column:started_at;index;notNull" json:"started_at"` // 帧采集时间
	CreatedAt time.Time `gorm:"column:created_at;notNull" json:"created_at"`
}

// TableName ...
func (*Event) TableName() string {
	return "events"
}
