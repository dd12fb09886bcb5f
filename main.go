package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gowvp/sentry/internal/app"
	"github.com/gowvp/sentry/internal/conf"
	"github.com/ixugo/goddd/pkg/system"
)

var buildVersion = "0.0.1" // 构建版本号

var (
	configPath = flag.String("conf", "", "配置文件路径，默认为程序目录下 configs/config.toml")
	source     = flag.String("source", "", "视频源，覆盖配置文件")
	confidence = flag.Float64("confidence", 0.5, "置信度阈值，覆盖配置文件")
	logLevel   = flag.String("log-level", "", "日志级别 debug/info/warn/error，覆盖配置文件")
	outputDir  = flag.String("output-dir", "", "截图与审计文件目录，覆盖配置文件")
	version    = flag.Bool("version", false, "显示版本")
)

func main() {
	flag.Parse()
	if *version {
		fmt.Println(buildVersion)
		return
	}

	path := *configPath
	if path == "" {
		path = filepath.Join(system.Getwd(), "configs", "config.toml")
	}
	bc, err := conf.SetupConfig(path)
	if err != nil {
		slog.Error("load config", "path", path, "err", err)
		os.Exit(1)
	}
	bc.BuildVersion = buildVersion
	bc.Apply(overrides())
	bc.ResolvePaths(system.Getwd())
	if err := bc.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if err := app.Run(&bc); err != nil {
		slog.Error("sentry stopped", "err", err)
		os.Exit(1)
	}
}

// overrides 收集命令行中显式给出的参数
func overrides() conf.Overrides {
	o := conf.Overrides{
		Source:    *source,
		LogLevel:  *logLevel,
		OutputDir: *outputDir,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "confidence" {
			o.Confidence = confidence
		}
	})
	return o
}
