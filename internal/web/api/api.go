package api

import (
	"expvar"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gowvp/sentry/internal/core/vision"
	"github.com/ixugo/goddd/pkg/web"
)

var startRuntime = time.Now()

func setupRouter(r *gin.Engine, uc *Usecase) {
	r.Use(
		// 格式化输出到控制台，然后记录到日志
		// 此处不做 recover，底层 http.server 也会 recover，但不会输出方便查看的格式
		gin.CustomRecovery(func(c *gin.Context, err any) {
			slog.ErrorContext(c.Request.Context(), "panic", "err", err, "stack", string(debug.Stack()))
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		web.Metrics(),
		web.Logger(
			web.IgnoreMethod(http.MethodOptions),
			web.IgnorePrefix("/events/image"),
			web.IgnorePrefix("/dashboard"), // 看板每秒轮询
		),
		web.LoggerWithBody(web.DefaultBodyLimit,
			web.IgnoreBool(uc.Conf.Debug),
			web.IgnoreMethod(http.MethodOptions),
			web.IgnorePrefix("/events/image"),
			web.IgnorePrefix("/dashboard"),
		),
	)
	go web.CountGoroutines(10*time.Minute, 20)

	r.Use(cors.New(cors.Config{
		AllowMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Accept", "Content-Length", "Content-Type", "Range", "Accept-Language",
			"Origin", "Authorization", "Referer", "User-Agent",
			"Accept-Encoding", "Cache-Control", "Pragma", "X-Requested-With",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc: func(_ string) bool {
			return true
		},
	}))

	r.GET("/health", web.WrapH(uc.getHealth))
	r.GET("/app/metrics/api", web.WrapH(uc.getMetricsAPI))

	RegisterDashboard(r, uc.DashboardAPI, gzip.Gzip(gzip.DefaultCompression))
	RegisterEvent(r, uc.EventAPI)
}

type getHealthOutput struct {
	Version   string    `json:"version"`
	SessionID string    `json:"session_id"`
	StartAt   time.Time `json:"start_at"`
}

func (uc *Usecase) getHealth(_ *gin.Context, _ *struct{}) (getHealthOutput, error) {
	return getHealthOutput{
		Version:   uc.Conf.BuildVersion,
		SessionID: string(uc.Session),
		StartAt:   startRuntime,
	}, nil
}

type getMetricsAPIOutput struct {
	HTTP     httpMetrics  `json:"http"`
	Pipeline vision.Stats `json:"pipeline"`
	Runtime  runtimeStats `json:"runtime"`
	StartAt  string       `json:"start_at"` // 启动时间
}

type httpMetrics struct {
	RealTime  int64 `json:"real_time"`  // 处理中的请求
	Requests  int64 `json:"requests"`   // 总请求数
	Responses int64 `json:"responses"`  // 总响应数
	TopURLs   []KV  `json:"top_urls"`   // 请求最多的路径
	TopStatus []KV  `json:"top_status"` // 状态码分布
}

type runtimeStats struct {
	Goroutines int    `json:"goroutines"`
	NumGC      uint32 `json:"num_gc"`
	SysAlloc   uint64 `json:"sys_alloc"` // 向系统申请的内存
	HeapAlloc  uint64 `json:"heap_alloc"`
}

// getMetricsAPI 汇总 web.Metrics 记录的请求计数与流水线状态
func (uc *Usecase) getMetricsAPI(_ *gin.Context, _ *struct{}) (*getMetricsAPIOutput, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	out := getMetricsAPIOutput{
		HTTP: httpMetrics{
			RealTime:  expvarInt("request"),
			Requests:  expvarInt("requests"),
			Responses: expvarInt("responses"),
			TopURLs:   topExpvar("requestURLs", 10),
			TopStatus: topExpvar("statusCodes", 10),
		},
		Runtime: runtimeStats{
			Goroutines: runtime.NumGoroutine(),
			NumGC:      mem.NumGC,
			SysAlloc:   mem.Sys,
			HeapAlloc:  mem.HeapAlloc,
		},
		StartAt: startRuntime.Format(time.DateTime),
	}
	if uc.DashboardAPI.vision != nil {
		out.Pipeline = uc.DashboardAPI.vision.Stats()
	}
	return &out, nil
}

type KV struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

func expvarInt(name string) int64 {
	if v, ok := expvar.Get(name).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

// topExpvar 取计数最大的 n 项，变量未注册时返回空
func topExpvar(name string, n int) []KV {
	m, ok := expvar.Get(name).(*expvar.Map)
	if !ok {
		return []KV{}
	}
	kvs := make([]KV, 0, 8)
	m.Do(func(kv expvar.KeyValue) {
		if v, ok := kv.Value.(*expvar.Int); ok {
			kvs = append(kvs, KV{Key: kv.Key, Value: v.Value()})
		}
	})
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].Value == kvs[j].Value {
			return kvs[i].Key < kvs[j].Key
		}
		return kvs[i].Value > kvs[j].Value
	})
	return kvs[:min(n, len(kvs))]
}
