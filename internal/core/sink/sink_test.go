package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gowvp/sentry/internal/core/vision"
)

type recordSink struct {
	mu       sync.Mutex
	seqs     []uint64
	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
}

func (r *recordSink) Name() string { return "record" }

func (r *recordSink) Write(_ context.Context, f *vision.Frame) error {
	if r.inFlight.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.inFlight.Add(-1)
	time.Sleep(r.delay)
	r.mu.Lock()
	r.seqs = append(r.seqs, f.Seq)
	r.mu.Unlock()
	return nil
}

func TestWorkerSerializesInOrder(t *testing.T) {
	rec := recordSink{delay: time.Millisecond}
	w := NewWorker(&rec, 1)
	for i := uint64(1); i <= 20; i++ {
		if err := w.Submit(context.Background(), &vision.Frame{Seq: i}); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()

	if rec.overlap.Load() {
		t.Fatal("writes overlapped")
	}
	if len(rec.seqs) != 20 {
		t.Fatalf("got %d writes, want 20", len(rec.seqs))
	}
	for i, s := range rec.seqs {
		if s != uint64(i+1) {
			t.Fatalf("write %d has seq %d", i, s)
		}
	}
}

func TestWorkerSubmitAfterClose(t *testing.T) {
	w := NewWorker(&recordSink{}, 1)
	w.Close()
	w.Close()
	if err := w.Submit(context.Background(), &vision.Frame{}); err != ErrClosed {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestWorkerSubmitHonoursContext(t *testing.T) {
	rec := recordSink{delay: 200 * time.Millisecond}
	w := NewWorker(&rec, 1)
	defer w.Close()

	_ = w.Submit(context.Background(), &vision.Frame{Seq: 1})
	_ = w.Submit(context.Background(), &vision.Frame{Seq: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := w.Submit(ctx, &vision.Frame{Seq: 3}); err == nil {
		t.Fatal("expected context error while queue is full")
	}
}

func TestFanout(t *testing.T) {
	a, b := &recordSink{}, &recordSink{}
	f := Fanout{NewWorker(a, 1), NewWorker(b, 1)}
	if err := f.Submit(context.Background(), &vision.Frame{Seq: 9}); err != nil {
		t.Fatal(err)
	}
	f.Close()
	if len(a.seqs) != 1 || len(b.seqs) != 1 {
		t.Fatalf("a=%v b=%v", a.seqs, b.seqs)
	}
}
