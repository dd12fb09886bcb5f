package api

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gowvp/sentry/internal/adapter/dashadapter"
	"github.com/gowvp/sentry/internal/conf"
	"github.com/gowvp/sentry/internal/core/event"
	"github.com/gowvp/sentry/internal/core/vision"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type nopDetector struct{}

func (nopDetector) Infer(context.Context, image.Image) ([]vision.RawDetection, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) (http.Handler, event.Core, string) {
	t.Helper()
	dir := t.TempDir()
	bc := conf.DefaultConfig()
	bc.Data.EventsDir = filepath.Join(dir, "events")
	bc.Data.DashboardFile = filepath.Join(dir, "data", "dashboard_data.json")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	eventCore := NewEventCore(NewEventStore(db), &bc)
	dash, err := NewDashboard(&bc)
	if err != nil {
		t.Fatal(err)
	}
	core, err := vision.NewCore(nopDetector{}, vision.Config{DebounceFrames: 3, MaxDistance: 50})
	if err != nil {
		t.Fatal(err)
	}

	uc := Usecase{
		Conf:         &bc,
		Session:      NewSessionID(),
		EventAPI:     NewEventAPI(eventCore),
		DashboardAPI: NewDashboardAPI(dash, core),
	}
	return NewHTTPHandler(&uc), eventCore, bc.Data.EventsDir
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// 路由中间件会注册全局 expvar，整个包只构建一次 handler
func TestRoutes(t *testing.T) {
	h, eventCore, eventsDir := newTestHandler(t)

	t.Run("health", func(t *testing.T) {
		w := get(t, h, "/health")
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d", w.Code)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		w := get(t, h, "/app/metrics/api")
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d body=%s", w.Code, w.Body.String())
		}
		var out struct {
			Pipeline vision.Stats `json:"pipeline"`
			Runtime  struct {
				Goroutines int `json:"goroutines"`
			} `json:"runtime"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatal(err)
		}
		if out.Runtime.Goroutines < 1 || out.Pipeline.Frames != 0 {
			t.Fatalf("out = %+v", out)
		}
	})

	t.Run("dashboard", func(t *testing.T) {
		w := get(t, h, "/dashboard")
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d body=%s", w.Code, w.Body.String())
		}
		var snap dashadapter.Snapshot
		if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
			t.Fatal(err)
		}
		if len(snap.Detections) != 0 {
			t.Fatalf("snapshot = %+v", snap)
		}
	})

	t.Run("events", func(t *testing.T) {
		ctx := context.Background()
		for _, label := range []string{"person", "car", "person"} {
			if _, err := eventCore.AddEvent(ctx, &event.AddEventInput{Label: label, StartedAt: time.Now()}); err != nil {
				t.Fatal(err)
			}
		}
		w := get(t, h, "/events?page=1&size=10&label=person")
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d body=%s", w.Code, w.Body.String())
		}
		var out struct {
			Items []event.Event `json:"items"`
			Total int64         `json:"total"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatal(err)
		}
		if out.Total != 2 || len(out.Items) != 2 {
			t.Fatalf("out = %+v", out)
		}

		w = get(t, h, fmt.Sprintf("/events/%d", out.Items[0].ID))
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d body=%s", w.Code, w.Body.String())
		}
		var one event.Event
		if err := json.Unmarshal(w.Body.Bytes(), &one); err != nil {
			t.Fatal(err)
		}
		if one.ID != out.Items[0].ID || one.Label != "person" {
			t.Fatalf("event = %+v", one)
		}

		if w := get(t, h, "/events/999"); w.Code == http.StatusOK {
			t.Fatalf("missing event code = %d", w.Code)
		}
	})

	t.Run("event image", func(t *testing.T) {
		if err := os.MkdirAll(eventsDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(eventsDir, "a.jpg"), []byte("jpeg"), 0o644); err != nil {
			t.Fatal(err)
		}
		w := get(t, h, "/events/image/a.jpg")
		if w.Code != http.StatusOK || w.Body.String() != "jpeg" {
			t.Fatalf("code = %d body=%q", w.Code, w.Body.String())
		}
	})
}
