// Package sink 将每帧结果异步交给下游持久化
//
// 每个 sink 独占一个写协程，同一个 sink 不会出现交错写入。
package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gowvp/sentry/internal/core/vision"
)

// ErrClosed Worker 已关闭
var ErrClosed = errors.New("sink closed")

// Sink 下游消费者，只读取帧快照，不得修改跟踪状态
type Sink interface {
	Name() string
	Write(ctx context.Context, frame *vision.Frame) error
}

// Worker 为单个 Sink 串行执行写入
type Worker struct {
	sink  Sink
	queue chan *vision.Frame
	log   *slog.Logger

	m      sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewWorker size 为允许排队的帧数，队列满时 Submit 阻塞
func NewWorker(s Sink, size int) *Worker {
	w := Worker{
		sink:  s,
		queue: make(chan *vision.Frame, max(size, 1)),
		log:   slog.With("sink", s.Name()),
	}
	w.wg.Go(w.loop)
	return &w
}

func (w *Worker) loop() {
	for frame := range w.queue {
		if err := w.sink.Write(context.Background(), frame); err != nil {
			w.log.Error("sink write failed", "seq", frame.Seq, "err", err)
		}
	}
}

// Submit 提交一帧，队列满时等待，保证帧顺序且不越过未完成的写入
func (w *Worker) Submit(ctx context.Context, frame *vision.Frame) error {
	w.m.RLock()
	defer w.m.RUnlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.queue <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止接收并等待队列写完
func (w *Worker) Close() {
	w.m.Lock()
	if w.closed {
		w.m.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.m.Unlock()
	w.wg.Wait()
}

// Fanout 将一帧分发给多个 Worker
type Fanout []*Worker

// Submit 依次提交到每个 Worker，返回第一个错误
func (f Fanout) Submit(ctx context.Context, frame *vision.Frame) error {
	var errs []error
	for _, w := range f {
		if err := w.Submit(ctx, frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close 关闭全部 Worker
func (f Fanout) Close() {
	for _, w := range f {
		w.Close()
	}
}
