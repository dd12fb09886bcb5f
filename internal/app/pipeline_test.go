package app

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/gowvp/sentry/internal/core/sink"
	"github.com/gowvp/sentry/internal/core/track"
	"github.com/gowvp/sentry/internal/core/vision"
)

// fakeSource 依次返回 n 帧，之后在 ctx 结束前一直阻塞
type fakeSource struct {
	n      int
	served int
	start  time.Time
	closed bool
	done   chan struct{}
}

func (f *fakeSource) Next(ctx context.Context) (image.Image, time.Time, error) {
	if f.served < f.n {
		f.served++
		return image.NewGray(image.Rect(0, 0, 64, 64)), f.start.Add(time.Duration(f.served) * 100 * time.Millisecond), nil
	}
	close(f.done)
	<-ctx.Done()
	return nil, time.Time{}, ctx.Err()
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type stillDetector struct {
	calls int
	failAt int
}

func (d *stillDetector) Infer(context.Context, image.Image) ([]vision.RawDetection, error) {
	d.calls++
	if d.calls == d.failAt {
		return nil, errors.New("model busy")
	}
	return []vision.RawDetection{{ClassID: 0, Label: "person", Confidence: 0.9, Box: track.Box{X1: 10, Y1: 10, X2: 30, Y2: 40}}}, nil
}

type collectSink struct {
	mu     sync.Mutex
	frames []*vision.Frame
}

func (c *collectSink) Name() string { return "collect" }

func (c *collectSink) Write(_ context.Context, f *vision.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func TestPipelineRun(t *testing.T) {
	det := stillDetector{failAt: 2}
	core, err := vision.NewCore(&det, vision.Config{
		TargetClasses:  []int{0},
		MaxDistance:    50,
		MaxDisappeared: 30,
		DebounceFrames: 3,
		DebounceKey:    vision.DebounceKeyBox,
	})
	if err != nil {
		t.Fatal(err)
	}

	src := fakeSource{n: 7, start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), done: make(chan struct{})}
	out := collectSink{}
	w := sink.NewWorker(&out, 1)
	p := NewPipeline(&src, core, sink.Fanout{w})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	<-src.done
	cancel()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
	w.Close()

	if !src.closed {
		t.Fatal("source not closed")
	}
	// 第 2 帧检测失败被跳过，其余 6 帧交给 sink
	if len(out.frames) != 6 {
		t.Fatalf("frames = %d, want 6", len(out.frames))
	}
	// 失败帧之前只有 1 次观测，之后连续 5 帧，第 3、6 次连续观测时确认
	confirmed := 0
	for i, f := range out.frames {
		if f.Seq != uint64(i+1) {
			t.Fatalf("frame %d seq = %d", i, f.Seq)
		}
		confirmed += len(f.Objects())
	}
	if confirmed != 2 {
		t.Fatalf("confirmed = %d, want 2", confirmed)
	}
}

func TestFPSMeter(t *testing.T) {
	var m fpsMeter
	start := time.Unix(100, 0)
	for i := range 10 {
		if got := m.Tick(start.Add(time.Duration(i) * 100 * time.Millisecond)); got != 0 {
			t.Fatalf("tick %d: fps = %v before the first full window", i, got)
		}
	}
	// 第 11 帧距离窗口起点 1 秒
	if got := m.Tick(start.Add(time.Second)); got != 11 {
		t.Fatalf("fps = %v, want 11", got)
	}
	// 窗口内沿用上一次结果
	if got := m.Tick(start.Add(1100 * time.Millisecond)); got != 11 {
		t.Fatalf("fps = %v, want 11", got)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"DEBUG": "DEBUG", "warning": "WARN", "": "INFO", "Error": "ERROR"} {
		l, err := parseLevel(in)
		if err != nil {
			t.Fatal(err)
		}
		if l.String() != want {
			t.Fatalf("%q -> %s, want %s", in, l, want)
		}
	}
	if _, err := parseLevel("verbose"); err == nil {
		t.Fatal("expected error")
	}
}
