//go:build gocv

package cvadapter

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/gowvp/sentry/internal/core/track"
	"github.com/gowvp/sentry/internal/core/vision"
	"gocv.io/x/gocv"
)

var _ vision.Detector = (*Detector)(nil)

// Options 模型文件与阈值
type Options struct {
	Weights    string
	Config     string
	Names      string // 每行一个类别名称
	InputSize  int
	Confidence float64
	IOU        float64
}

// Detector 基于 OpenCV CPU 后端的 YOLO 推理
type Detector struct {
	net        gocv.Net
	outNames   []string // YOLO 输出层，tiny 模型有两个
	classNames []string
	opt        Options
	mu         sync.Mutex
}

// NewDetector 加载模型，失败时返回错误
func NewDetector(opt Options) (*Detector, error) {
	if opt.InputSize <= 0 {
		opt.InputSize = 640
	}
	net := gocv.ReadNet(opt.Weights, opt.Config)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s and %s", opt.Weights, opt.Config)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, err
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, err
	}

	d := Detector{
		net:      net,
		opt:      opt,
		outNames: outputLayerNames(net.GetLayerNames(), net.GetUnconnectedOutLayers()),
	}
	if len(d.outNames) == 0 {
		net.Close()
		return nil, fmt.Errorf("no output layers in %s", opt.Weights)
	}
	if opt.Names != "" {
		b, err := os.ReadFile(opt.Names)
		if err != nil {
			net.Close()
			return nil, fmt.Errorf("could not read class names: %w", err)
		}
		d.classNames = strings.Split(strings.TrimSpace(string(b)), "\n")
	}
	return &d, nil
}

// Infer implements vision.Detector.
func (d *Detector) Infer(_ context.Context, frame image.Image) ([]vision.RawDetection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	size := image.Pt(d.opt.InputSize, d.opt.InputSize)
	blob := gocv.BlobFromImage(mat, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outputs := d.net.ForwardLayers(d.outNames)
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	width, height := mat.Cols(), mat.Rows()
	threshold := float32(d.opt.Confidence)

	var c candidates
	for _, output := range outputs {
		data, err := output.DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("read output: %w", err)
		}
		c.addRows(data, output.Cols(), width, height, threshold)
	}
	if len(c.rects) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(c.rects, c.scores, threshold, float32(d.opt.IOU))
	out := make([]vision.RawDetection, 0, len(keep))
	for _, idx := range keep {
		r := c.rects[idx]
		det := vision.RawDetection{
			ClassID:    c.classes[idx],
			Confidence: float64(c.scores[idx]),
			Box:        track.Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y},
		}
		if det.ClassID < len(d.classNames) {
			det.Label = d.classNames[det.ClassID]
		}
		out = append(out, det)
	}
	return out, nil
}

// Close releases resources used by the network
func (d *Detector) Close() error {
	return d.net.Close()
}
