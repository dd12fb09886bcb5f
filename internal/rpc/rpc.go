package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gowvp/sentry/internal/core/track"
	"github.com/gowvp/sentry/internal/core/vision"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// MethodDetect 检测服务方法，请求与响应均为 google.protobuf.Struct
const MethodDetect = "/analysis.AnalysisService/Detect"

var _ vision.Detector = (*AIClient)(nil)

// Options 检测参数
type Options struct {
	Confidence  float64
	IOU         float64
	Labels      []string      // 服务端未返回 label 时按 class_id 查找
	JPEGQuality int           // 上传帧的压缩质量
	Timeout     time.Duration // 单帧调用超时，0 表示不限制
}

// AIClient 封装 gRPC 检测服务客户端，提供统一的 AI 检测调用入口
type AIClient struct {
	conn *grpc.ClientConn
	opt  Options
	log  *slog.Logger
}

// NewAIClient 创建 AI 检测客户端实例，启动时做一次健康检查，不可用时返回错误
func NewAIClient(ctx context.Context, addr string, opt Options, dialOpts ...grpc.DialOption) (*AIClient, error) {
	dialOpts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, dialOpts...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if opt.JPEGQuality <= 0 {
		opt.JPEGQuality = 85
	}

	cli := AIClient{conn: conn, opt: opt, log: slog.With("component", "rpc", "addr", addr)}
	if err := cli.HealthCheck(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &cli, nil
}

// HealthCheck 查询检测服务状态
func (a *AIClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(a.conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("health check: status %s", resp.GetStatus())
	}
	a.log.Info("HealthCheck OK")
	return nil
}

// Infer implements vision.Detector.
func (a *AIClient) Infer(ctx context.Context, frame image.Image) ([]vision.RawDetection, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(a.opt.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	req, err := structpb.NewStruct(map[string]any{
		"image":      base64.StdEncoding.EncodeToString(buf.Bytes()),
		"confidence": a.opt.Confidence,
		"iou":        a.opt.IOU,
	})
	if err != nil {
		return nil, err
	}

	if a.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opt.Timeout)
		defer cancel()
	}
	var resp structpb.Struct
	if err := a.conn.Invoke(ctx, MethodDetect, req, &resp); err != nil {
		return nil, err
	}
	return a.parse(&resp)
}

// parse 解析 {detections:[{class_id,label,confidence,box:[x1,y1,x2,y2]}]}
func (a *AIClient) parse(resp *structpb.Struct) ([]vision.RawDetection, error) {
	list := resp.GetFields()["detections"].GetListValue().GetValues()
	out := make([]vision.RawDetection, 0, len(list))
	for i, v := range list {
		fields := v.GetStructValue().GetFields()
		box := fields["box"].GetListValue().GetValues()
		if len(box) != 4 {
			return nil, fmt.Errorf("detection %d: box has %d values", i, len(box))
		}
		det := vision.RawDetection{
			ClassID:    int(fields["class_id"].GetNumberValue()),
			Label:      fields["label"].GetStringValue(),
			Confidence: fields["confidence"].GetNumberValue(),
			Box: track.Box{
				X1: int(box[0].GetNumberValue()),
				Y1: int(box[1].GetNumberValue()),
				X2: int(box[2].GetNumberValue()),
				Y2: int(box[3].GetNumberValue()),
			},
		}
		if det.Label == "" && det.ClassID >= 0 && det.ClassID < len(a.opt.Labels) {
			det.Label = a.opt.Labels[det.ClassID]
		}
		out = append(out, det)
	}
	return out, nil
}

// Close 关闭连接
func (a *AIClient) Close() error {
	return a.conn.Close()
}
