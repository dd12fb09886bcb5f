package conf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Bootstrap 启动配置
type Bootstrap struct {
	BuildVersion string `toml:"-"`
	Debug        bool   `toml:"-"`
	ConfigDir    string `toml:"-"`

	Camera      Camera      `toml:"camera"`
	Detection   Detection   `toml:"detection"`
	QRDetection QRDetection `toml:"qr_detection"`
	Performance Performance `toml:"performance"`
	Log         Log         `toml:"log"`
	Data        Data        `toml:"data"`
	Server      Server      `toml:"server"`
	Event       Event       `toml:"event"`
}

// Camera 视频源
type Camera struct {
	Source            string   `toml:"source" comment:"摄像头索引(如 0)、/dev/videoN、文件路径或 rtsp/http 地址"`
	Width             int      `toml:"width"`
	Height            int      `toml:"height"`
	FPS               int      `toml:"fps"`
	ReconnectInterval Duration `toml:"reconnect_interval" comment:"读帧失败后的重连间隔"`
	FFmpeg            string   `toml:"ffmpeg" comment:"ffmpeg 可执行文件路径"`
}

// Detection 检测与跟踪参数
type Detection struct {
	Model               string   `toml:"model" comment:"gocv 检测器使用的 Darknet 权重文件，同目录需有同名 .cfg 与 .names"`
	Detector            string   `toml:"detector" comment:"rpc 或 gocv"`
	RPCAddr             string   `toml:"rpc_addr"`
	Labels              []string `toml:"labels" comment:"类别名称，下标即 class id"`
	TargetClasses       []int    `toml:"target_classes"`
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
	IOUThreshold        float64  `toml:"iou_threshold"`
	TrackingThreshold   float64  `toml:"tracking_threshold" comment:"同一目标相邻帧中心点最大距离(像素)"`
	MaxDisappeared      int      `toml:"max_disappeared"`
	DebounceFrames      int      `toml:"debounce_frames"`
	DebounceKey         string   `toml:"debounce_key" comment:"bbox 或 track"`
}

// QRDetection 二维码识别
type QRDetection struct {
	Enabled bool `toml:"enabled"`
}

// Performance 资源监控与输出队列
type Performance struct {
	RAMThreshold  float64  `toml:"ram_threshold" comment:"内存使用率告警阈值(百分比)"`
	DiskThreshold float64  `toml:"disk_threshold" comment:"事件目录所在磁盘使用率告警阈值(百分比)"`
	CheckInterval Duration `toml:"check_interval"`
	SinkQueue     int      `toml:"sink_queue" comment:"每个输出允许排队的帧数"`
}

// Log 日志
type Log struct {
	Level        string   `toml:"level"`
	Dir          string   `toml:"dir"`
	MaxAge       Duration `toml:"max_age"`
	RotationTime Duration `toml:"rotation_time"`
}

// Data 数据存储
type Data struct {
	Database      Database `toml:"database"`
	EventsDir     string   `toml:"events_dir" comment:"目标截图目录"`
	AuditFile     string   `toml:"audit_file"`
	DashboardFile string   `toml:"dashboard_file"`
}

// Database 数据库
type Database struct {
	Dsn             string   `toml:"dsn" comment:"postgres://、mysql:// 或 sqlite 文件路径"`
	MaxIdleConns    int32    `toml:"max_idle_conns"`
	MaxOpenConns    int32    `toml:"max_open_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	SlowThreshold   Duration `toml:"slow_threshold"`
}

// Server HTTP 服务
type Server struct {
	Debug bool       `toml:"debug"`
	HTTP  ServerHTTP `toml:"http"`
}

// ServerHTTP HTTP 监听
type ServerHTTP struct {
	Port    int      `toml:"port"`
	Timeout Duration `toml:"timeout"`
}

// Event 事件保留策略
type Event struct {
	RetainDays int `toml:"retain_days" comment:"0 表示不清理"`
}

// Duration 以 "10s" 这样的字符串保存在配置文件中
type Duration time.Duration

// Duration 转为标准库类型
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig 默认配置
func DefaultConfig() Bootstrap {
	return Bootstrap{
		Camera: Camera{
			Source:            "0",
			Width:             640,
			Height:            480,
			FPS:               15,
			ReconnectInterval: Duration(2 * time.Second),
			FFmpeg:            "ffmpeg",
		},
		Detection: Detection{
			Model:               "models/yolov4-tiny.weights",
			Detector:            "rpc",
			RPCAddr:             "127.0.0.1:50051",
			Labels:              []string{"person"},
			TargetClasses:       []int{0},
			ConfidenceThreshold: 0.5,
			IOUThreshold:        0.45,
			TrackingThreshold:   50,
			MaxDisappeared:      30,
			DebounceFrames:      3,
			DebounceKey:         "bbox",
		},
		QRDetection: QRDetection{Enabled: true},
		Performance: Performance{
			RAMThreshold:  85,
			DiskThreshold: 90,
			CheckInterval: Duration(10 * time.Second),
			SinkQueue:     1,
		},
		Log: Log{
			Level:        "info",
			Dir:          "logs",
			MaxAge:       Duration(7 * 24 * time.Hour),
			RotationTime: Duration(24 * time.Hour),
		},
		Data: Data{
			Database: Database{
				Dsn:             "data/sentry.db",
				MaxIdleConns:    10,
				MaxOpenConns:    50,
				ConnMaxLifetime: Duration(6 * time.Hour),
				SlowThreshold:   Duration(200 * time.Millisecond),
			},
			EventsDir:     "events",
			AuditFile:     "events/audit_log.csv",
			DashboardFile: "data/dashboard_data.json",
		},
		Server: Server{
			HTTP: ServerHTTP{
				Port:    15123,
				Timeout: Duration(60 * time.Second),
			},
		},
		Event: Event{RetainDays: 30},
	}
}

// SetupConfig 读取配置文件，文件不存在时写入默认配置
func SetupConfig(path string) (Bootstrap, error) {
	bc := DefaultConfig()
	bc.ConfigDir = filepath.Dir(path)

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return bc, WriteConfig(&bc, path)
	}
	if err != nil {
		return bc, err
	}
	if err := toml.Unmarshal(b, &bc); err != nil {
		return bc, fmt.Errorf("parse %s: %w", path, err)
	}
	return bc, nil
}

// WriteConfig 将配置写入文件
func WriteConfig(bc *Bootstrap, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf).SetIndentTables(true)
	if err := enc.Encode(bc); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate 检查取值范围
func (bc *Bootstrap) Validate() error {
	d := bc.Detection
	if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
		return fmt.Errorf("detection.confidence_threshold must be in [0,1], got %v", d.ConfidenceThreshold)
	}
	if d.IOUThreshold < 0 || d.IOUThreshold > 1 {
		return fmt.Errorf("detection.iou_threshold must be in [0,1], got %v", d.IOUThreshold)
	}
	if d.DebounceFrames < 1 {
		return fmt.Errorf("detection.debounce_frames must be >= 1, got %d", d.DebounceFrames)
	}
	if d.TrackingThreshold <= 0 {
		return fmt.Errorf("detection.tracking_threshold must be > 0, got %v", d.TrackingThreshold)
	}
	switch d.DebounceKey {
	case "bbox", "track":
	default:
		return fmt.Errorf("detection.debounce_key must be bbox or track, got %q", d.DebounceKey)
	}
	switch d.Detector {
	case "rpc", "gocv":
	default:
		return fmt.Errorf("detection.detector must be rpc or gocv, got %q", d.Detector)
	}
	return nil
}

// Overrides 命令行覆盖项，零值表示不覆盖
type Overrides struct {
	Source     string
	Confidence *float64
	LogLevel   string
	OutputDir  string // 截图目录，审计 CSV 随之移动
}

// Apply 命令行参数优先于配置文件，调用方随后再做 Validate
func (bc *Bootstrap) Apply(o Overrides) {
	if o.Source != "" {
		bc.Camera.Source = o.Source
	}
	if o.Confidence != nil {
		bc.Detection.ConfidenceThreshold = *o.Confidence
	}
	if o.LogLevel != "" {
		bc.Log.Level = o.LogLevel
	}
	if o.OutputDir != "" {
		bc.Data.EventsDir = o.OutputDir
		bc.Data.AuditFile = filepath.Join(o.OutputDir, filepath.Base(bc.Data.AuditFile))
	}
}

// ResolvePaths 将数据目录中的相对路径转为以 root 为根的绝对路径
func (bc *Bootstrap) ResolvePaths(root string) {
	for _, p := range []*string{&bc.Data.EventsDir, &bc.Data.AuditFile, &bc.Data.DashboardFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}

// Label 返回类别名称，未配置时为空
func (d Detection) Label(classID int) string {
	if classID >= 0 && classID < len(d.Labels) {
		return d.Labels[classID]
	}
	return ""
}
