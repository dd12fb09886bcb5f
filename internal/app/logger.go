package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gowvp/sentry/internal/conf"
	"github.com/ixugo/goddd/pkg/system"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// SetupLog 日志同时输出到控制台与按天滚动的文件
func SetupLog(bc *conf.Bootstrap) (*slog.Logger, func(), error) {
	level, err := parseLevel(bc.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	dir := bc.Log.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(system.Getwd(), dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}

	opts := []rotatelogs.Option{
		rotatelogs.WithLinkName(filepath.Join(dir, "sentry.log")),
	}
	if v := bc.Log.MaxAge.Duration(); v > 0 {
		opts = append(opts, rotatelogs.WithMaxAge(v))
	}
	if v := bc.Log.RotationTime.Duration(); v > 0 {
		opts = append(opts, rotatelogs.WithRotationTime(v))
	}
	r, err := rotatelogs.New(filepath.Join(dir, "sentry_%Y%m%d.log"), opts...)
	if err != nil {
		return nil, nil, err
	}

	log := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, r), &slog.HandlerOptions{
		AddSource: bc.Debug,
		Level:     level,
	}))
	slog.SetDefault(log)
	return log, func() { _ = r.Close() }, nil
}

// parseLevel 支持 debug/info/warn(warning)/error，大小写不敏感
func parseLevel(s string) (slog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	if s == "" {
		s = "info"
	}
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}
