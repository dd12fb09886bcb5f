// Package qradapter 将 pkg/qrcode 适配为流水线的二维码端口
package qradapter

import (
	"errors"
	"image"
	"log/slog"

	"github.com/gowvp/sentry/internal/core/track"
	"github.com/gowvp/sentry/internal/core/vision"
	"github.com/gowvp/sentry/pkg/qrcode"
)

var _ vision.QRDecoder = (*Adapter)(nil)

// Adapter 只由流水线协程调用
type Adapter struct {
	decoder *qrcode.Decoder
	log     *slog.Logger
}

// NewAdapter ...
func NewAdapter() *Adapter {
	return &Adapter{
		decoder: qrcode.NewDecoder(),
		log:     slog.With("component", "qr"),
	}
}

// Decode implements vision.QRDecoder.
func (a *Adapter) Decode(frame image.Image) (vision.QRDetection, bool) {
	res, err := a.decoder.Decode(frame)
	if err != nil {
		if !errors.Is(err, qrcode.ErrNotFound) {
			a.log.Debug("qr decode failed", "err", err)
		}
		return vision.QRDetection{}, false
	}
	if res.Text == "" {
		return vision.QRDetection{}, false
	}
	polygon := make([]track.Point, 0, len(res.Corners))
	for _, p := range res.Corners {
		polygon = append(polygon, track.Point{X: float64(p.X), Y: float64(p.Y)})
	}
	return vision.QRDetection{Payload: res.Text, Polygon: polygon}, true
}
