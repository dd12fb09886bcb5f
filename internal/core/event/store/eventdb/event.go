package eventdb

import (
	"context"

	"github.com/gowvp/sentry/internal/core/event"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ event.EventStorer = Event{}

// Event Related business namespaces
type Event DB

// Find implements event.EventStorer.
func (d Event) Find(ctx context.Context, out *[]*event.Event, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	db := d.db.WithContext(ctx).Model(new(event.Event))
	for _, fn := range opts {
		db = fn(db)
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil || total == 0 {
		return total, err
	}
	err := db.Offset(pager.Offset()).Limit(pager.Limit()).Find(out).Error
	return total, err
}

// Get implements event.EventStorer.
func (d Event) Get(ctx context.Context, out *event.Event, opts ...orm.QueryOption) error {
	db := d.db.WithContext(ctx)
	for _, fn := range opts {
		db = fn(db)
	}
	// 查到的结果写入新变量，避免 out 上残留的主键参与条件
	var e event.Event
	if err := db.First(&e).Error; err != nil {
		return err
	}
	*out = e
	return nil
}

// Add implements event.EventStorer.
func (d Event) Add(ctx context.Context, e *event.Event) error {
	return d.db.WithContext(ctx).Create(e).Error
}

// Session implements event.EventStorer.
func (d Event) Session(ctx context.Context, fns ...func(*gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fn := range fns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}
