package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/google/wire"
	"github.com/gowvp/sentry/internal/conf"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(Usecase), "*"),
	NewHTTPHandler,
	NewSessionID,
	NewEventStore, NewEventCore, NewEventAPI,
	NewDashboard, NewDashboardAPI,
)

// SessionID 本次运行的批次号，写入每条审计事件
type SessionID string

// NewSessionID ...
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

type Usecase struct {
	Conf         *conf.Bootstrap
	Session      SessionID
	EventAPI     EventAPI
	DashboardAPI DashboardAPI
}

// NewHTTPHandler 生成Gin框架路由内容
func NewHTTPHandler(uc *Usecase) http.Handler {
	if !uc.Conf.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	g.NoRoute(func(c *gin.Context) {
		c.JSON(404, "来到了无人的荒漠")
	})
	setupRouter(g, uc)
	return g
}
