package vision

import (
	"context"
	"image"
)

// Detector 目标检测模型（端口）
//
// 实现方负责在内部应用置信度阈值与重叠抑制阈值，类别过滤由 Core 完成。
// 调用没有超时，一次慢调用会阻塞整条流水线。
type Detector interface {
	Infer(ctx context.Context, frame image.Image) ([]RawDetection, error)
}

// QRDecoder 二维码解码（端口），每帧最多返回一个结果
type QRDecoder interface {
	Decode(frame image.Image) (QRDetection, bool)
}
