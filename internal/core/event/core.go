package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

// Storer data persistence
type Storer interface {
	Event() EventStorer
}

// EventStorer Instantiation interface
type EventStorer interface {
	Find(context.Context, *[]*Event, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *Event, ...orm.QueryOption) error
	Add(context.Context, *Event) error

	Session(context.Context, ...func(*gorm.DB) error) error
}

// Core business domain
type Core struct {
	store     Storer
	eventsDir string
}

// NewCore create business domain
// eventsDir 为截图根目录，清理事件时一并删除对应图片
func NewCore(store Storer, eventsDir string) Core {
	return Core{store: store, eventsDir: eventsDir}
}

// EventsDir 截图根目录
func (c Core) EventsDir() string {
	return c.eventsDir
}

// FindEvents 分页查询事件，按采集时间倒序
func (c Core) FindEvents(ctx context.Context, in *FindEventInput) ([]*Event, int64, error) {
	query := orm.NewQuery(5).OrderBy("started_at DESC, id DESC")

	if in.Label != "" {
		query.Where("label = ?", in.Label)
	}
	if in.TrackedID != nil {
		query.Where("tracked_id = ?", *in.TrackedID)
	}
	if in.SessionID != "" {
		query.Where("session_id = ?", in.SessionID)
	}
	if in.StartMs > 0 {
		query.Where("started_at >= ?", time.UnixMilli(in.StartMs))
	}
	if in.EndMs > 0 {
		query.Where("started_at <= ?", time.UnixMilli(in.EndMs))
	}

	items := make([]*Event, 0, in.Limit())
	total, err := c.store.Event().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// GetEvent Query a single object
func (c Core) GetEvent(ctx context.Context, id int64) (*Event, error) {
	var out Event
	if err := c.store.Event().Get(ctx, &out, orm.Where("id = ?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// AddEvent Insert into database
func (c Core) AddEvent(ctx context.Context, in *AddEventInput) (*Event, error) {
	var out Event
	if err := copier.Copy(&out, in); err != nil {
		slog.ErrorContext(ctx, "Copy", "err", err)
	}
	if out.StartedAt.IsZero() {
		out.StartedAt = time.Now()
	}
	out.CreatedAt = time.Now()

	if err := c.store.Event().Add(ctx, &out); err != nil {
		return nil, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	return &out, nil
}
