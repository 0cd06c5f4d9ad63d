package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"research-agent/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{
		handler:    handler,
		middleware: mw,
	}
}

// Build 创建 hertz 服务并注册路由；opts 可追加 tracer 等服务端选项
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)

	h.Use(r.middleware.AccessLog())
	if r.middleware.CORSEnabled() {
		h.Use(r.middleware.CORS())
	}
	if r.middleware.RateLimitEnabled() {
		h.Use(r.middleware.RateLimit())
	}

	h.GET("/", r.handler.Index)
	h.GET("/health", r.handler.HealthCheck)
	h.GET("/metrics", r.handler.Metrics)
	h.POST("/query", r.handler.Ask)

	api := h.Group("/api")
	{
		api.GET("/health", r.handler.HealthCheck)
		api.POST("/query", r.handler.Ask)
		api.POST("/ask", r.handler.Ask)
		api.GET("/runs", r.handler.ListRuns)
		api.POST("/index/reload", r.handler.ReloadIndex)
	}
	return h
}
