package api

import (
	"github.com/gin-gonic/gin"
	"github.com/gowvp/sentry/internal/adapter/dashadapter"
	"github.com/gowvp/sentry/internal/conf"
	"github.com/gowvp/sentry/internal/core/vision"
	"github.com/ixugo/goddd/pkg/web"
)

// DashboardAPI 看板轮询接口
type DashboardAPI struct {
	dash   *dashadapter.Dashboard
	vision *vision.Core
}

// NewDashboard 创建看板快照输出
func NewDashboard(bc *conf.Bootstrap) (*dashadapter.Dashboard, error) {
	return dashadapter.NewDashboard(bc.Data.DashboardFile)
}

func NewDashboardAPI(dash *dashadapter.Dashboard, core *vision.Core) DashboardAPI {
	return DashboardAPI{dash: dash, vision: core}
}

func RegisterDashboard(g gin.IRouter, api DashboardAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/dashboard", handler...)
	group.GET("", web.WrapH(api.getSnapshot))
	group.GET("/stats", web.WrapH(api.getStats))
}

func (a DashboardAPI) getSnapshot(_ *gin.Context, _ *struct{}) (dashadapter.Snapshot, error) {
	return a.dash.Snapshot(), nil
}

// getStats 跟踪器与防抖器的当前规模
func (a DashboardAPI) getStats(_ *gin.Context, _ *struct{}) (vision.Stats, error) {
	return a.vision.Stats(), nil
}
