package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gowvp/sentry/internal/conf"
	"github.com/gowvp/sentry/internal/core/vision"
	"github.com/gowvp/sentry/internal/rpc"
)

// NewDetector 按配置创建检测器，失败时程序无法继续运行
func NewDetector(bc *conf.Bootstrap) (vision.Detector, func(), error) {
	d := bc.Detection
	switch d.Detector {
	case "gocv":
		return newCVDetector(d)
	case "rpc":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cli, err := rpc.NewAIClient(ctx, d.RPCAddr, rpc.Options{
			Confidence: d.ConfidenceThreshold,
			IOU:        d.IOUThreshold,
			Labels:     d.Labels,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("could not initialize detector: %w", err)
		}
		return cli, func() { _ = cli.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown detector %q", d.Detector)
}
