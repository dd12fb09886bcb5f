// Package monitor 周期检查内存与磁盘占用，超过阈值只告警，不影响流水线
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/gowvp/sentry/internal/conf"
	"github.com/ixugo/goddd/pkg/conc"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Usage 一次采样结果，百分比
type Usage struct {
	Memory   float64 `json:"memory"`
	Disk     float64 `json:"disk"`
	MemHigh  bool    `json:"mem_high"`
	DiskHigh bool    `json:"disk_high"`
}

// Monitor 资源监控
type Monitor struct {
	ramThreshold  float64
	diskThreshold float64
	interval      time.Duration
	dir           string
	log           *slog.Logger

	memUsage  func(context.Context) (float64, error)
	diskUsage func(context.Context, string) (float64, error)
}

// NewMonitor dir 为需要关注剩余空间的目录，通常是截图目录
func NewMonitor(p conf.Performance, dir string) *Monitor {
	interval := p.CheckInterval.Duration()
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		ramThreshold:  p.RAMThreshold,
		diskThreshold: p.DiskThreshold,
		interval:      interval,
		dir:           dir,
		log:           slog.With("component", "monitor"),
		memUsage: func(ctx context.Context) (float64, error) {
			v, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return v.UsedPercent, nil
		},
		diskUsage: func(ctx context.Context, path string) (float64, error) {
			v, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return 0, err
			}
			return v.UsedPercent, nil
		},
	}
}

// Start 阻塞执行定时检查，ctx 结束时返回
func (m *Monitor) Start(ctx context.Context) {
	conc.Timer(ctx, m.interval, m.interval, func() {
		m.Check(ctx)
	})
}

// Check 采样一次，阈值小于等于 0 表示不检查该项
func (m *Monitor) Check(ctx context.Context) Usage {
	var u Usage
	if m.ramThreshold > 0 {
		v, err := m.memUsage(ctx)
		if err != nil {
			m.log.WarnContext(ctx, "read memory usage", "err", err)
		} else {
			u.Memory = v
			if v > m.ramThreshold {
				u.MemHigh = true
				m.log.WarnContext(ctx, "High RAM usage", "usage", v, "threshold", m.ramThreshold)
			}
		}
	}
	if m.diskThreshold > 0 && m.dir != "" {
		v, err := m.diskUsage(ctx, m.dir)
		if err != nil {
			m.log.WarnContext(ctx, "read disk usage", "path", m.dir, "err", err)
		} else {
			u.Disk = v
			if v > m.diskThreshold {
				u.DiskHigh = true
				m.log.WarnContext(ctx, "High disk usage", "path", m.dir, "usage", v, "threshold", m.diskThreshold)
			}
		}
	}
	return u
}
