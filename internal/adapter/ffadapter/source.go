// Package ffadapter 基于 ffmpeg 的视频源，读帧失败时按固定间隔重连
package ffadapter

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/gowvp/sentry/internal/conf"
	"github.com/gowvp/sentry/pkg/ffwork"
)

// Source 视频源，仅由流水线协程使用
type Source struct {
	cfg         ffwork.Config
	interval    time.Duration
	readTimeout time.Duration
	log         *slog.Logger

	fc       *ffwork.FrameCapture
	attempts int
}

// NewSource ...
func NewSource(c conf.Camera) *Source {
	interval := c.ReconnectInterval.Duration()
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Source{
		cfg: ffwork.Config{
			Width:  c.Width,
			Height: c.Height,
			FPS:    c.FPS,
			Input:  c.Source,
			FFmpeg: c.FFmpeg,
			Name:   "camera",
		},
		interval:    interval,
		readTimeout: 10 * time.Second,
		log:         slog.With("component", "camera", "source", c.Source),
	}
}

// Attempts 打开视频源的累计次数
func (s *Source) Attempts() int {
	return s.attempts
}

func (s *Source) open() error {
	s.attempts++
	fc, err := ffwork.NewFrameCapture(s.cfg)
	if err != nil {
		return err
	}
	if err := fc.Start(); err != nil {
		return err
	}
	s.fc = fc
	s.log.Info("camera opened", "attempt", s.attempts)
	return nil
}

// Close 停止 ffmpeg
func (s *Source) Close() error {
	if s.fc == nil {
		return nil
	}
	err := s.fc.Stop()
	s.fc = nil
	return err
}

// Next 读取下一帧，源不可用时每隔 interval 重新打开，直到成功或 ctx 结束
func (s *Source) Next(ctx context.Context) (image.Image, time.Time, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, time.Time{}, err
		}
		if s.fc == nil {
			if err := s.open(); err != nil {
				s.log.Error("could not open camera", "err", err)
				if !s.wait(ctx) {
					return nil, time.Time{}, ctx.Err()
				}
				continue
			}
		}

		frame, err := s.fc.GetFrame(ctx, s.readTimeout)
		if err == nil {
			img, err := frame.Image()
			if err != nil {
				return nil, time.Time{}, fmt.Errorf("frame %d: %w", frame.FrameNum, err)
			}
			return img, frame.Timestamp, nil
		}
		if ctx.Err() != nil {
			return nil, time.Time{}, ctx.Err()
		}

		s.log.Warn("failed to grab frame, attempting to reconnect", "err", err, "ffmpeg", s.fc.Log())
		_ = s.Close()
		if !s.wait(ctx) {
			return nil, time.Time{}, ctx.Err()
		}
	}
}

func (s *Source) wait(ctx context.Context) bool {
	t := time.NewTimer(s.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
