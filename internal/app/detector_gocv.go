//go:build gocv

package app

import (
	"strings"

	"github.com/gowvp/sentry/internal/adapter/cvadapter"
	"github.com/gowvp/sentry/internal/conf"
	"github.com/gowvp/sentry/internal/core/vision"
)

// newCVDetector model 为 Darknet 权重文件，同名 .cfg 与 .names 放在同一目录
func newCVDetector(d conf.Detection) (vision.Detector, func(), error) {
	base := strings.TrimSuffix(d.Model, ".weights")
	det, err := cvadapter.NewDetector(cvadapter.Options{
		Weights:    d.Model,
		Config:     base + ".cfg",
		Names:      base + ".names",
		Confidence: d.ConfidenceThreshold,
		IOU:        d.IOUThreshold,
	})
	if err != nil {
		return nil, nil, err
	}
	return det, func() { _ = det.Close() }, nil
}
