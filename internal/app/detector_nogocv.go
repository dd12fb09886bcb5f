//go:build !gocv

package app

import (
	"errors"

	"github.com/gowvp/sentry/internal/conf"
	"github.com/gowvp/sentry/internal/core/vision"
)

func newCVDetector(conf.Detection) (vision.Detector, func(), error) {
	return nil, nil, errors.New("detector gocv requires building with -tags gocv")
}
