package event_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gowvp/sentry/internal/core/event"
	"github.com/gowvp/sentry/internal/core/event/store/eventdb"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newCore(t *testing.T) (event.Core, string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	// 内存库每个连接独立，限制为单连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	dir := t.TempDir()
	return event.NewCore(eventdb.NewDB(db).AutoMigrate(true), dir), dir
}

func TestAddAndFindEvents(t *testing.T) {
	core, _ := newCore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	inputs := []event.AddEventInput{
		{TrackedID: 1, Label: "person", Score: 0.9, StartedAt: base},
		{TrackedID: 2, Label: "car", Score: 0.8, StartedAt: base.Add(time.Second)},
		{TrackedID: 1, Label: "person", Score: 0.7, StartedAt: base.Add(2 * time.Second)},
	}
	for i := range inputs {
		out, err := core.AddEvent(ctx, &inputs[i])
		if err != nil {
			t.Fatal(err)
		}
		if out.ID == 0 {
			t.Fatal("expected generated id")
		}
	}

	items, total, err := core.FindEvents(ctx, &event.FindEventInput{
		PagerFilter: web.PagerFilter{Page: 1, Size: 10},
		Label:       "person",
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("total=%d len=%d", total, len(items))
	}
	if !items[0].StartedAt.After(items[1].StartedAt) {
		t.Fatal("expected newest first")
	}

	id := 2
	items, total, err = core.FindEvents(ctx, &event.FindEventInput{
		PagerFilter: web.PagerFilter{Page: 1, Size: 10},
		TrackedID:   &id,
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || items[0].Label != "car" {
		t.Fatalf("got total=%d items=%v", total, items)
	}

	got, err := core.GetEvent(ctx, items[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TrackedID != 2 {
		t.Fatalf("tracked_id = %d", got.TrackedID)
	}
	if _, err := core.GetEvent(ctx, 999); err == nil {
		t.Fatal("expected not found")
	}
}

func TestCleanupExpired(t *testing.T) {
	core, dir := newCore(t)
	ctx := context.Background()
	now := time.Now()

	oldImage := filepath.Join("2020-01-01", "old.jpg")
	if err := os.MkdirAll(filepath.Join(dir, "2020-01-01"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, oldImage), []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, in := range []event.AddEventInput{
		{Label: "person", ImagePath: oldImage, StartedAt: now.AddDate(0, 0, -40)},
		{Label: "person", ImagePath: oldImage, StartedAt: now.AddDate(0, 0, -35)},
		{Label: "person", StartedAt: now},
	} {
		if _, err := core.AddEvent(ctx, &in); err != nil {
			t.Fatal(err)
		}
	}

	if n := core.CleanupExpired(ctx, now.AddDate(0, 0, -30)); n != 2 {
		t.Fatalf("deleted %d, want 2", n)
	}
	if _, err := os.Stat(filepath.Join(dir, oldImage)); !os.IsNotExist(err) {
		t.Fatal("expected image removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "2020-01-01")); !os.IsNotExist(err) {
		t.Fatal("expected empty dir removed")
	}

	_, total, err := core.FindEvents(ctx, &event.FindEventInput{PagerFilter: web.PagerFilter{Page: 1, Size: 10}})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("remaining = %d", total)
	}
}
