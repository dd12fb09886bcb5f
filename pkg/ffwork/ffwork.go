// Package ffwork 通过 ffmpeg 子进程把任意视频源解码为 yuv420p 原始帧
package ffwork

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

type (
	Config struct {
		Width, Height int
		FPS           int
		Input         string // 网络地址、文件路径、/dev/videoN 或设备索引
		Transport     string // rtsp 传输协议，默认 tcp
		UseWallClock  bool
		HWAccel       string
		FFmpeg        string // ffmpeg 可执行文件，默认从 PATH 查找
		Name          string
	}
	FrameData struct {
		FrameNum      uint64
		Timestamp     time.Time
		Width, Height int
		Data          []byte
	}
	FrameCapture struct {
		config                Config
		frameSize             int
		FrameCh               chan *FrameData
		errCh                 chan error
		ctx                   context.Context
		cancel                context.CancelFunc
		m                     sync.Mutex
		started               bool
		cmd                   *exec.Cmd
		lastFrame             time.Time
		wg                    sync.WaitGroup
		ffmpegLog             *queue.CirQueue[string]
		frameCount, skipCount uint64
	}
	Stats struct {
		Name                  string
		FrameCount, SkipCount uint64
		LastFrame             time.Time
		FrameSize             int
		IsRunning             bool
	}
)

// chromaSize yuv420p 单个色度平面的宽高，奇数尺寸向上取整
func chromaSize(w, h int) (int, int) {
	return (w + 1) / 2, (h + 1) / 2
}

func NewFrameCapture(cfg Config) (*FrameCapture, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid resolution: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid fps: %d", cfg.FPS)
	}
	if cfg.Input == "" {
		return nil, fmt.Errorf("input is required")
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	cw, ch := chromaSize(cfg.Width, cfg.Height)
	ctx, cancel := context.WithCancel(context.Background())
	return &FrameCapture{
		config:    cfg,
		frameSize: cfg.Width*cfg.Height + 2*cw*ch,
		FrameCh:   make(chan *FrameData, 10),
		errCh:     make(chan error, 1),
		ctx:       ctx,
		cancel:    cancel,
		ffmpegLog: queue.NewCirQueue[string](100),
	}, nil
}

func (fc *FrameCapture) FrameSize() int {
	return fc.frameSize
}

// inputArgs 按输入类型生成 -i 之前的参数
func (fc *FrameCapture) inputArgs() []string {
	in := fc.config.Input
	switch {
	case strings.HasPrefix(in, "rtsp://"), strings.HasPrefix(in, "rtsps://"):
		return []string{
			"-avoid_negative_ts", "make_zero",
			"-fflags", "+genpts+discardcorrupt",
			"-rtsp_transport", fc.config.Transport,
			"-timeout", "10000000",
			"-i", in,
		}
	case strings.Contains(in, "://"):
		return []string{"-fflags", "+genpts+discardcorrupt", "-i", in}
	case strings.HasPrefix(in, "/dev/video"):
		return []string{"-f", "v4l2", "-i", in}
	}
	// 纯数字视为本机摄像头索引
	if idx, err := strconv.Atoi(in); err == nil && idx >= 0 {
		return []string{"-f", "v4l2", "-i", "/dev/video" + in}
	}
	// 本地文件按原始速率读取
	return []string{"-re", "-i", in}
}

func (fc *FrameCapture) buildFFmpegArgs() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-threads", "2",
	}
	if strings.Contains(fc.config.Input, "://") {
		args = append(args, "-user_agent", "FFmpeg Sentry")
	}
	if fc.config.UseWallClock {
		args = append(args, "-use_wallclock_as_timestamps", "1")
	}
	if fc.config.HWAccel != "" {
		args = append(args, "-hwaccel", fc.config.HWAccel)
	}
	args = append(args, fc.inputArgs()...)

	args = append(args,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(fc.config.FPS),
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", fc.config.FPS, fc.config.Width, fc.config.Height),
		"pipe:1",
	)
	return args
}

func (fc *FrameCapture) Start() error {
	fc.m.Lock()
	defer fc.m.Unlock()
	if fc.started {
		return fmt.Errorf("frame capture already started")
	}

	args := fc.buildFFmpegArgs()
	fc.cmd = exec.CommandContext(fc.ctx, fc.config.FFmpeg, args...)
	stdout, err := fc.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := fc.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := fc.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	fc.started = true
	fc.lastFrame = time.Now()

	fc.wg.Go(func() { fc.captureLoop(stdout) })
	fc.wg.Go(func() { fc.readStderr(stderr) })
	return nil
}

// captureLoop 从 ffmpeg 的 stdout 读取原始视频帧数据
// ffmpeg 输出的是固定大小的 YUV420P 格式帧，需要按帧大小读取
func (fc *FrameCapture) captureLoop(stdout io.Reader) {
	defer close(fc.FrameCh)

	reader := bufio.NewReaderSize(stdout, fc.frameSize*2)
	for {
		select {
		case <-fc.ctx.Done():
			return
		default:
		}

		frameBytes := make([]byte, fc.frameSize)
		if _, err := io.ReadFull(reader, frameBytes); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				err = fmt.Errorf("ffmpeg stream ended: %w", err)
			} else {
				err = fmt.Errorf("failed to read frame: %w", err)
			}
			select {
			case fc.errCh <- err:
			default:
			}
			return
		}

		frameNum := atomic.AddUint64(&fc.frameCount, 1)
		now := time.Now()
		fc.m.Lock()
		fc.lastFrame = now
		fc.m.Unlock()

		frame := FrameData{
			FrameNum:  frameNum,
			Timestamp: now,
			Width:     fc.config.Width,
			Height:    fc.config.Height,
			Data:      frameBytes,
		}

		// 消费方处理不过来时丢弃新帧，保证读到的始终是连续画面
		select {
		case fc.FrameCh <- &frame:
		case <-fc.ctx.Done():
			return
		default:
			atomic.AddUint64(&fc.skipCount, 1)
		}
	}
}

// readStderr 读取 ffmpeg 的 stderr 输出用于日志记录
// ffmpeg 的警告和错误信息都会输出到 stderr
func (fc *FrameCapture) readStderr(stderr io.Reader) {
	scan := bufio.NewScanner(stderr)
	for scan.Scan() {
		fc.ffmpegLog.Push(scan.Text())
	}
}

func (fc *FrameCapture) Frames() <-chan *FrameData {
	return fc.FrameCh
}

func (fc *FrameCapture) Error() <-chan error {
	return fc.errCh
}

// Log 最近 100 行 ffmpeg 输出
func (fc *FrameCapture) Log() []string {
	return fc.ffmpegLog.Range()
}

// GetFrame 等待下一帧，timeout 内没有画面返回错误
func (fc *FrameCapture) GetFrame(ctx context.Context, timeout time.Duration) (*FrameData, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame, ok := <-fc.FrameCh:
		if !ok {
			// 通道关闭前可能已写入退出原因
			select {
			case err := <-fc.errCh:
				return nil, err
			default:
			}
			return nil, fmt.Errorf("frame channel closed")
		}
		return frame, nil
	case err := <-fc.errCh:
		return nil, err
	case <-fc.ctx.Done():
		return nil, fc.ctx.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("no frame within %s", timeout)
	}
}

func (fc *FrameCapture) Stop() error {
	fc.m.Lock()
	if !fc.started {
		fc.m.Unlock()
		return nil
	}
	fc.m.Unlock()

	fc.cancel()
	fc.wg.Wait()

	if fc.cmd != nil && fc.cmd.Process != nil {
		done := make(chan error, 1)
		go func() {
			done <- fc.cmd.Wait()
		}()

		select {
		case <-time.After(5 * time.Second):
			if err := fc.cmd.Process.Kill(); err != nil {
				return fmt.Errorf("failed to kill ffmpeg: %w", err)
			}
			<-done
		case <-done:
		}
	}
	return nil
}

func (fc *FrameCapture) GetStats() Stats {
	fc.m.Lock()
	defer fc.m.Unlock()
	return Stats{
		Name:       fc.config.Name,
		FrameCount: atomic.LoadUint64(&fc.frameCount),
		SkipCount:  atomic.LoadUint64(&fc.skipCount),
		LastFrame:  fc.lastFrame,
		FrameSize:  fc.frameSize,
		IsRunning:  fc.started,
	}
}

// Image 将 yuv420p 数据包装为 *image.YCbCr，不拷贝像素
func (f *FrameData) Image() (*image.YCbCr, error) {
	w, h := f.Width, f.Height
	cw, ch := chromaSize(w, h)
	if want := w*h + 2*cw*ch; len(f.Data) != want {
		return nil, fmt.Errorf("frame size %d, want %d for %dx%d", len(f.Data), want, w, h)
	}
	ySize, cSize := w*h, cw*ch
	return &image.YCbCr{
		Y:              f.Data[:ySize],
		Cb:             f.Data[ySize : ySize+cSize],
		Cr:             f.Data[ySize+cSize:],
		YStride:        w,
		CStride:        cw,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, w, h),
	}, nil
}
