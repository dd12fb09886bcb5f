// Package auditadapter 为每个确认目标保存截图、追加 CSV 审计行并写入事件表
package auditadapter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gowvp/sentry/internal/core/event"
	"github.com/gowvp/sentry/internal/core/sink"
	"github.com/gowvp/sentry/internal/core/vision"
	"github.com/jinzhu/copier"
)

var _ sink.Sink = (*Audit)(nil)

// cropTimeLayout 截图文件名中的时间部分
const cropTimeLayout = "2006-01-02_15-04-05.000"

var csvHeader = []string{"timestamp", "class", "confidence", "bbox_coords", "tracked_id", "crop_path"}

// EventAdder 事件持久化
type EventAdder interface {
	AddEvent(context.Context, *event.AddEventInput) (*event.Event, error)
}

// Audit 审计输出，Write 只会被所属 sink.Worker 串行调用
type Audit struct {
	dir       string
	csvPath   string
	events    EventAdder
	sessionID string
	model     string
	log       *slog.Logger
}

type Option func(*Audit)

// WithEvents 同时写入事件表
func WithEvents(events EventAdder, sessionID, model string) Option {
	return func(a *Audit) {
		a.events = events
		a.sessionID = sessionID
		a.model = model
	}
}

// NewAudit dir 为截图目录，csvPath 为审计文件
func NewAudit(dir, csvPath string, opts ...Option) (*Audit, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(csvPath), 0o755); err != nil {
		return nil, err
	}
	a := Audit{
		dir:     dir,
		csvPath: csvPath,
		log:     slog.With("sink", "audit"),
	}
	for _, opt := range opts {
		opt(&a)
	}
	return &a, nil
}

// Name implements sink.Sink.
func (a *Audit) Name() string {
	return "audit"
}

// Write implements sink.Sink.
func (a *Audit) Write(ctx context.Context, frame *vision.Frame) error {
	objects := frame.Objects()
	if len(objects) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(objects))
	var errs []error
	for _, det := range objects {
		cropPath, err := a.saveCrop(frame, det)
		if err != nil {
			errs = append(errs, err)
		}
		rows = append(rows, []string{
			frame.CapturedAt.Format("2006-01-02 15-04-05"),
			det.Label,
			strconv.FormatFloat(det.Confidence, 'f', -1, 64),
			fmt.Sprintf("%d,%d,%d,%d", det.Box.X1, det.Box.Y1, det.Box.X2, det.Box.Y2),
			strconv.Itoa(det.TrackedID),
			cropPath,
		})
		if a.events != nil {
			if err := a.addEvent(ctx, frame, det, cropPath); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := a.appendCSV(rows); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// saveCrop 按 <时间>_<类别>_<跟踪id>.jpg 保存目标截图，返回相对于截图目录的路径
// 时间精确到毫秒，同一秒内多次确认各自保留截图；框完全落在画面外时不保存
func (a *Audit) saveCrop(frame *vision.Frame, det vision.ConfirmedDetection) (string, error) {
	if frame.Image == nil {
		return "", nil
	}
	rect := image.Rect(det.Box.X1, det.Box.Y1, det.Box.X2, det.Box.Y2).Intersect(frame.Image.Bounds())
	if rect.Empty() {
		return "", nil
	}
	name := fmt.Sprintf("%s_%s_%d.jpg",
		frame.CapturedAt.Format(cropTimeLayout),
		sanitize(det.Label),
		det.TrackedID,
	)
	crop := imaging.Crop(frame.Image, rect)
	if err := imaging.Save(crop, filepath.Join(a.dir, name), imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("save crop %s: %w", name, err)
	}
	return name, nil
}

// appendCSV 追加审计行，文件新建时先写表头
func (a *Audit) appendCSV(rows [][]string) error {
	_, statErr := os.Stat(a.csvPath)
	f, err := os.OpenFile(a.csvPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if errors.Is(statErr, os.ErrNotExist) {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Sync()
}

func (a *Audit) addEvent(ctx context.Context, frame *vision.Frame, det vision.ConfirmedDetection, cropPath string) error {
	var in event.AddEventInput
	if err := copier.Copy(&in, &det); err != nil {
		a.log.ErrorContext(ctx, "Copy", "err", err)
	}
	zones, _ := json.Marshal(det.Box)
	in.SessionID = a.sessionID
	in.Score = float32(det.Confidence)
	in.Zones = string(zones)
	in.ImagePath = cropPath
	in.Model = a.model
	in.StartedAt = frame.CapturedAt

	_, err := a.events.AddEvent(ctx, &in)
	return err
}

func sanitize(label string) string {
	if label == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, label)
}
