// Package qrcode 在整帧图像中识别单个二维码
package qrcode

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Result 解码结果
type Result struct {
	Text string
	// Corners 码区四个外角的像素坐标，顺序为左上、右上、右下、左下
	Corners [4]image.Point
}

// Decoder 二维码解码器，非并发安全
type Decoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewDecoder ...
func NewDecoder() *Decoder {
	return &Decoder{
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// ErrNotFound 图像中没有可识别的二维码
var ErrNotFound = errors.New("qrcode not found")

// Decode 识别图像中的二维码
func (d *Decoder) Decode(img image.Image) (Result, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Result{}, err
	}
	defer d.reader.Reset()

	res, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		var nf gozxing.NotFoundException
		if errors.As(err, &nf) {
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}

	points := res.GetResultPoints()
	if len(points) < 3 {
		return Result{}, fmt.Errorf("qrcode: %d result points", len(points))
	}
	return Result{
		Text:    res.GetText(),
		Corners: corners(points[0], points[1], points[2]),
	}, nil
}

// moduleSizer 定位图案携带的模块尺寸估计
type moduleSizer interface {
	GetEstimatedModuleSize() float64
}

type vec struct{ x, y float64 }

func (a vec) add(b vec) vec { return vec{a.x + b.x, a.y + b.y} }
func (a vec) sub(b vec) vec { return vec{a.x - b.x, a.y - b.y} }
func (a vec) scale(k float64) vec { return vec{a.x * k, a.y * k} }
func (a vec) cross(b vec) float64 { return a.x*b.y - a.y*b.x }
func (a vec) unit() vec {
	n := math.Hypot(a.x, a.y)
	if n == 0 {
		return vec{}
	}
	return a.scale(1 / n)
}
func (a vec) pt() image.Point {
	return image.Pt(int(math.Round(a.x)), int(math.Round(a.y)))
}

// corners 由三个定位图案中心推算码区外角
//
// 中间的点是左上定位图案，另外两点按图像坐标系（y 向下）的绕向区分右上与左下，
// 镜像纠正后的点序因此也能得到同样结果。右下角按平行四边形补全，
// 四个中心再沿两条边方向各外扩半个定位图案（3.5 个模块）。
func corners(a, tl, b gozxing.ResultPoint) [4]image.Point {
	pTL := vec{tl.GetX(), tl.GetY()}
	pTR := vec{b.GetX(), b.GetY()}
	pBL := vec{a.GetX(), a.GetY()}
	if pTR.sub(pTL).cross(pBL.sub(pTL)) < 0 {
		pTR, pBL = pBL, pTR
	}
	pBR := pTR.add(pBL).sub(pTL)

	module := moduleSize(a, tl, b)
	u := pTR.sub(pTL).unit().scale(3.5 * module)
	v := pBL.sub(pTL).unit().scale(3.5 * module)

	return [4]image.Point{
		pTL.sub(u).sub(v).pt(),
		pTR.add(u).sub(v).pt(),
		pBR.add(u).add(v).pt(),
		pBL.sub(u).add(v).pt(),
	}
}

// moduleSize 定位图案的平均模块尺寸，无法获取时为 0
func moduleSize(points ...gozxing.ResultPoint) float64 {
	var sum float64
	var n int
	for _, p := range points {
		if m, ok := p.(moduleSizer); ok && m.GetEstimatedModuleSize() > 0 {
			sum += m.GetEstimatedModuleSize()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
