package app

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/gowvp/sentry/internal/core/sink"
	"github.com/gowvp/sentry/internal/core/vision"
)

// FrameSource 视频源，Next 在源不可用时自行重连，只在 ctx 结束或帧数据异常时返回错误
type FrameSource interface {
	Next(ctx context.Context) (image.Image, time.Time, error)
	Close() error
}

// Pipeline 单协程驱动：取帧 -> 检测确认 -> 交给 sink
type Pipeline struct {
	src   FrameSource
	core  *vision.Core
	sinks sink.Fanout
	fps   fpsMeter
	log   *slog.Logger
	seq   uint64
}

// NewPipeline ...
func NewPipeline(src FrameSource, core *vision.Core, sinks sink.Fanout) *Pipeline {
	return &Pipeline{
		src:   src,
		core:  core,
		sinks: sinks,
		log:   slog.With("component", "pipeline"),
	}
}

// Run 阻塞处理视频帧，直到 ctx 结束
// 单帧检测失败只记录日志，不会中断
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.src.Close()
	p.log.Info("pipeline started")

	for {
		img, at, err := p.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.log.Info("pipeline stopped", "frames", p.seq)
				return nil
			}
			p.log.Error("read frame", "err", err)
			continue
		}

		dets, err := p.core.Process(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Warn("process frame", "err", err)
			continue
		}

		p.seq++
		frame := vision.Frame{
			Seq:        p.seq,
			Image:      img,
			CapturedAt: at,
			FPS:        p.fps.Tick(at),
			Detections: dets,
		}
		if err := p.sinks.Submit(ctx, &frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Error("submit frame", "seq", frame.Seq, "err", err)
		}
	}
}

// fpsMeter 以不少于 1 秒的窗口统计帧率，窗口之间沿用上一次的值
type fpsMeter struct {
	start time.Time
	count int
	fps   float64
}

// Tick 记录一帧，返回当前帧率
func (m *fpsMeter) Tick(at time.Time) float64 {
	if m.start.IsZero() {
		m.start = at
	}
	m.count++
	if elapsed := at.Sub(m.start); elapsed >= time.Second {
		m.fps = float64(m.count) / elapsed.Seconds()
		m.count = 0
		m.start = at
	}
	return m.fps
}
