package vision

import (
	"image"
	"time"

	"github.com/gowvp/sentry/internal/core/track"
)

// 输出类型
const (
	TypeObject = "object"
	TypeQR     = "qr"
)

// RawDetection 检测模型对单帧的原始输出
type RawDetection struct {
	ClassID    int       `json:"class_id"`
	Label      string    `json:"label"`      // 类别名称，为空时使用 class_id
	Confidence float64   `json:"confidence"` // 置信度 (0.0 - 1.0)
	Box        track.Box `json:"box"`        // 像素坐标 (x1,y1,x2,y2)
}

// Observation 目标类别过滤后的单帧观测，仅存在于一帧的处理过程中
type Observation struct {
	ClassID    int
	Label      string
	Confidence float64
	Box        track.Box
	Centroid   track.Point
}

// ConfirmedDetection 通过防抖并绑定跟踪 ID 的检测
type ConfirmedDetection struct {
	ClassID    int         `json:"class_id"`
	Label      string      `json:"class"`
	Confidence float64     `json:"confidence"`
	Box        track.Box   `json:"bbox"`
	Centroid   track.Point `json:"centroid"`
	TrackedID  int         `json:"tracked_id"`
}

// QRDetection 二维码解码结果，不经过跟踪与防抖
type QRDetection struct {
	Payload string        `json:"data"`
	Polygon []track.Point `json:"polygon"` // 四个外角：左上、右上、右下、左下
}

// Detection 单帧输出项，Object 与 QR 二选一
type Detection struct {
	Type   string              `json:"type"`
	Object *ConfirmedDetection `json:"object,omitempty"`
	QR     *QRDetection        `json:"qr,omitempty"`
}

// Frame 一帧的处理结果快照，交给下游 sink 只读消费
type Frame struct {
	Seq        uint64
	Image      image.Image // 原始帧，仅供裁剪读取
	CapturedAt time.Time
	FPS        float64
	Detections []Detection
}

// Objects 返回快照中的确认检测
func (f *Frame) Objects() []ConfirmedDetection {
	out := make([]ConfirmedDetection, 0, len(f.Detections))
	for _, d := range f.Detections {
		if d.Type == TypeObject && d.Object != nil {
			out = append(out, *d.Object)
		}
	}
	return out
}
