package app

import (
	"net/http"
	"path/filepath"

	"github.com/google/wire"
	"github.com/gowvp/sentry/internal/adapter/auditadapter"
	"github.com/gowvp/sentry/internal/adapter/dashadapter"
	"github.com/gowvp/sentry/internal/adapter/ffadapter"
	"github.com/gowvp/sentry/internal/adapter/qradapter"
	"github.com/gowvp/sentry/internal/conf"
	"github.com/gowvp/sentry/internal/core/event"
	"github.com/gowvp/sentry/internal/core/monitor"
	"github.com/gowvp/sentry/internal/core/sink"
	"github.com/gowvp/sentry/internal/core/vision"
	"github.com/gowvp/sentry/internal/web/api"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(App), "*"),
	NewDetector,
	NewVisionCore,
	NewAudit,
	NewSinks,
	NewSource,
	wire.Bind(new(FrameSource), new(*ffadapter.Source)),
	NewPipeline,
	NewMonitor,
)

// App 运行期需要启动的组件
type App struct {
	Conf     *conf.Bootstrap
	Handler  http.Handler
	Pipeline *Pipeline
	Events   event.Core
	Monitor  *monitor.Monitor
}

// NewVisionCore 创建检测流水线
func NewVisionCore(bc *conf.Bootstrap, det vision.Detector) (*vision.Core, error) {
	d := bc.Detection
	opts := make([]vision.Option, 0, 1)
	if bc.QRDetection.Enabled {
		opts = append(opts, vision.WithQRDecoder(qradapter.NewAdapter()))
	}
	return vision.NewCore(det, vision.Config{
		TargetClasses:  d.TargetClasses,
		MaxDistance:    d.TrackingThreshold,
		MaxDisappeared: d.MaxDisappeared,
		DebounceFrames: d.DebounceFrames,
		DebounceKey:    d.DebounceKey,
		QREnabled:      bc.QRDetection.Enabled,
	}, opts...)
}

// NewAudit 审计输出，事件同时写入数据库
func NewAudit(bc *conf.Bootstrap, events event.Core, session api.SessionID) (*auditadapter.Audit, error) {
	return auditadapter.NewAudit(bc.Data.EventsDir, bc.Data.AuditFile,
		auditadapter.WithEvents(events, string(session), filepath.Base(bc.Detection.Model)),
	)
}

// NewSinks 每个输出独立排队，清理时等待队列写完
func NewSinks(bc *conf.Bootstrap, audit *auditadapter.Audit, dash *dashadapter.Dashboard) (sink.Fanout, func()) {
	size := bc.Performance.SinkQueue
	f := sink.Fanout{
		sink.NewWorker(audit, size),
		sink.NewWorker(dash, size),
	}
	return f, f.Close
}

// NewSource 摄像头
func NewSource(bc *conf.Bootstrap) *ffadapter.Source {
	return ffadapter.NewSource(bc.Camera)
}

// NewMonitor 资源监控，磁盘占用按截图目录统计
func NewMonitor(bc *conf.Bootstrap) *monitor.Monitor {
	return monitor.NewMonitor(bc.Performance, bc.Data.EventsDir)
}
