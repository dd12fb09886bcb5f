// Package dashadapter 维护供看板轮询的 JSON 快照
package dashadapter

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/gowvp/sentry/internal/core/sink"
	"github.com/gowvp/sentry/internal/core/vision"
)

// MaxDetections 快照中保留的最近检测条数
const MaxDetections = 100

const timeLayout = "2006-01-02 15:04:05"

var _ sink.Sink = (*Dashboard)(nil)

// Entry 单条检测
type Entry struct {
	Timestamp  string     `json:"timestamp"`
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	Centroid   [2]float64 `json:"centroid"`
	TrackedID  int        `json:"tracked_id"`
}

// Snapshot 看板文件内容
type Snapshot struct {
	Detections []Entry `json:"detections"`
	FPS        float64 `json:"fps"`
	LastUpdate string  `json:"last_update"`
}

// Dashboard 将每帧的确认目标合并进快照文件
type Dashboard struct {
	path string

	// 同一进程内的 HTTP 读取与写入共用该锁
	mu sync.RWMutex
}

// NewDashboard ...
func NewDashboard(path string) (*Dashboard, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Dashboard{path: path}, nil
}

// Name implements sink.Sink.
func (d *Dashboard) Name() string {
	return "dashboard"
}

// Write implements sink.Sink.
// 每帧都会刷新 fps 与 last_update，即使没有目标
func (d *Dashboard) Write(_ context.Context, frame *vision.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.load()
	ts := frame.CapturedAt.Format(timeLayout)
	for _, det := range frame.Objects() {
		snap.Detections = append(snap.Detections, Entry{
			Timestamp:  ts,
			Class:      det.Label,
			Confidence: det.Confidence,
			Centroid:   [2]float64{det.Centroid.X, det.Centroid.Y},
			TrackedID:  det.TrackedID,
		})
	}
	if n := len(snap.Detections); n > MaxDetections {
		snap.Detections = snap.Detections[n-MaxDetections:]
	}
	snap.FPS = frame.FPS
	snap.LastUpdate = ts
	return d.save(snap)
}

// Snapshot 读取当前快照，文件不存在或损坏时返回空快照
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.load()
}

func (d *Dashboard) load() Snapshot {
	snap := Snapshot{Detections: []Entry{}}
	b, err := os.ReadFile(d.path)
	if err != nil {
		return snap
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{Detections: []Entry{}}
	}
	if snap.Detections == nil {
		snap.Detections = []Entry{}
	}
	return snap
}

// save 先写临时文件再重命名，读取方不会看到写了一半的内容
func (d *Dashboard) save(snap Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(d.path), ".dashboard-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(b)
	err = errors.Join(err, tmp.Close())
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), d.path)
}
