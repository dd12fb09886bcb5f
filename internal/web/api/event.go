package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/sentry/internal/conf"
	"github.com/gowvp/sentry/internal/core/event"
	"github.com/gowvp/sentry/internal/core/event/store/eventdb"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

// EventAPI 为 http 提供业务方法
type EventAPI struct {
	eventCore event.Core
}

// NewEventStore 创建事件存储层
func NewEventStore(db *gorm.DB) event.Storer {
	return eventdb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
}

// NewEventCore 创建事件核心服务，清理协程由 app 启动
func NewEventCore(store event.Storer, bc *conf.Bootstrap) event.Core {
	return event.NewCore(store, bc.Data.EventsDir)
}

func NewEventAPI(core event.Core) EventAPI {
	return EventAPI{eventCore: core}
}

func RegisterEvent(g gin.IRouter, api EventAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/events", handler...)
	group.GET("", web.WrapH(api.findEvents))
	group.GET("/:id", web.WrapH(api.getEvent))
	// 目标截图，路径即事件的 image_path
	group.Static("/image", api.eventCore.EventsDir())
}

// findEvents 分页查询审计事件
func (a EventAPI) findEvents(c *gin.Context, in *event.FindEventInput) (any, error) {
	items, total, err := a.eventCore.FindEvents(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

func (a EventAPI) getEvent(c *gin.Context, _ *struct{}) (*event.Event, error) {
	eventID, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	return a.eventCore.GetEvent(c.Request.Context(), eventID)
}
