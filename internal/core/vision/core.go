package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gowvp/sentry/internal/core/track"
)

// 防抖键模式
const (
	// DebounceKeyBox 以原始边界框作为防抖键，静止目标效果好，移动目标框抖动会导致键变化
	DebounceKeyBox = "bbox"
	// DebounceKeyTrack 以跟踪 ID 作为防抖键
	DebounceKeyTrack = "track"
)

// Config 流水线参数
type Config struct {
	TargetClasses  []int
	MaxDistance    float64 // 跟踪匹配的最大距离
	MaxDisappeared int
	DebounceFrames int
	DebounceKey    string
	QREnabled      bool
}

// Core 单帧处理流水线：检测 -> 跟踪 -> 防抖确认 -> 二维码
//
// 跟踪器与防抖器是 Core 私有的跨帧状态，只能由 Process 顺序修改。
type Core struct {
	detector Detector
	qr       QRDecoder
	conf     Config
	targets  map[int]struct{}
	log      *slog.Logger

	mu       sync.Mutex
	tracker  *track.Tracker
	boxKeys  *track.Debouncer[track.Box]
	idKeys   *track.Debouncer[int]
	frameSeq uint64

	// 每帧结束时发布，读取方不等待推理
	frames       atomic.Uint64
	identities   atomic.Int64
	pendingBoxes atomic.Int64
	pendingIDs   atomic.Int64
}

type Option func(*Core)

// WithQRDecoder 注入二维码解码器，未注入时不做二维码检测
func WithQRDecoder(qr QRDecoder) Option {
	return func(c *Core) {
		c.qr = qr
	}
}

// WithLogger 指定日志
func WithLogger(log *slog.Logger) Option {
	return func(c *Core) {
		c.log = log
	}
}

// NewCore 创建流水线，detector 不可为空
func NewCore(detector Detector, conf Config, opts ...Option) (*Core, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	c := Core{
		detector: detector,
		conf:     conf,
		targets:  make(map[int]struct{}, len(conf.TargetClasses)),
		log:      slog.Default(),
		tracker:  track.NewTracker(conf.MaxDisappeared, conf.MaxDistance),
		boxKeys:  track.NewDebouncer[track.Box](conf.DebounceFrames),
		idKeys:   track.NewDebouncer[int](conf.DebounceFrames),
	}
	for _, id := range conf.TargetClasses {
		c.targets[id] = struct{}{}
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &c, nil
}

// Process 处理一帧，返回确认的目标检测（在前）与二维码结果（在后）
//
// 不可并发调用，帧必须严格按顺序送入。
func (c *Core) Process(ctx context.Context, frame image.Image) ([]Detection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameSeq++
	defer c.publish()

	raws, err := c.detector.Infer(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("infer frame %d: %w", c.frameSeq, err)
	}

	observations := c.observe(raws)
	centroids := make([]track.Point, len(observations))
	for i, o := range observations {
		centroids[i] = o.Centroid
	}

	objects := c.tracker.Update(centroids)
	out := c.confirm(observations, objects)

	if c.conf.QREnabled && c.qr != nil {
		if qr, ok := c.qr.Decode(frame); ok {
			out = append(out, Detection{Type: TypeQR, QR: &qr})
		}
	}
	return out, nil
}

// observe 过滤目标类别并计算质心
func (c *Core) observe(raws []RawDetection) []Observation {
	out := make([]Observation, 0, len(raws))
	for _, r := range raws {
		if _, ok := c.targets[r.ClassID]; !ok {
			continue
		}
		label := r.Label
		if label == "" {
			label = strconv.Itoa(r.ClassID)
		}
		out = append(out, Observation{
			ClassID:    r.ClassID,
			Label:      label,
			Confidence: r.Confidence,
			Box:        r.Box,
			Centroid:   r.Box.Center(),
		})
	}
	return out
}

// confirm 逐个观测做防抖，放行的观测绑定最近的跟踪 ID
func (c *Core) confirm(observations []Observation, objects map[int]track.Point) []Detection {
	out := make([]Detection, 0, len(observations)+1)
	for _, o := range observations {
		trackedID, found := track.Nearest(o.Centroid, objects)

		var admitted bool
		if c.conf.DebounceKey == DebounceKeyTrack && found {
			admitted = c.idKeys.Admit(trackedID, o.Box)
		} else {
			admitted = c.boxKeys.Admit(o.Box, o.Box)
		}
		if !admitted || !found {
			continue
		}

		out = append(out, Detection{
			Type: TypeObject,
			Object: &ConfirmedDetection{
				ClassID:    o.ClassID,
				Label:      o.Label,
				Confidence: o.Confidence,
				Box:        o.Box,
				Centroid:   o.Centroid,
				TrackedID:  trackedID,
			},
		})
		c.log.Debug("detection confirmed", "label", o.Label, "tracked_id", trackedID, "confidence", o.Confidence)
	}
	c.boxKeys.Sweep()
	c.idKeys.Sweep()
	return out
}

// Stats 跟踪与防抖状态计数
type Stats struct {
	Frames          uint64 `json:"frames"`
	Identities      int    `json:"identities"`
	PendingBoxKeys  int    `json:"pending_box_keys"`
	PendingTrackIDs int    `json:"pending_track_ids"`
}

// Stats 返回最近一帧结束时的状态计数，可与 Process 并发调用
func (c *Core) Stats() Stats {
	return Stats{
		Frames:          c.frames.Load(),
		Identities:      int(c.identities.Load()),
		PendingBoxKeys:  int(c.pendingBoxes.Load()),
		PendingTrackIDs: int(c.pendingIDs.Load()),
	}
}

// publish 持有 mu 时调用
func (c *Core) publish() {
	c.frames.Store(c.frameSeq)
	c.identities.Store(int64(c.tracker.Len()))
	c.pendingBoxes.Store(int64(c.boxKeys.Len()))
	c.pendingIDs.Store(int64(c.idKeys.Len()))
}
