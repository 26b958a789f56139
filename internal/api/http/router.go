package http

import (
	"github.com/gin-gonic/gin"

	"cafe-navigator/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	engine     *gin.Engine
	handler    *Handler
	middleware *middleware.Middleware
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	// 设置 Gin 模式
	gin.SetMode(gin.ReleaseMode)

	// 创建引擎
	engine := gin.New()

	// 使用中间件
	engine.Use(mw.Logger())
	engine.Use(mw.Recovery())

	return &Router{
		engine:     engine,
		handler:    handler,
		middleware: mw,
	}
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes() {
	api := r.engine.Group("/api")

	// 健康检查
	api.GET("/health", r.handler.HealthCheck)

	// 查询 API
	query := api.Group("/query")
	{
		query.POST("/resolve", r.middleware.CORS(), r.handler.ResolveQuery)
		query.GET("/session/:id/history", r.middleware.CORS(), r.handler.SessionHistory)
	}

	// 系统管理
	system := api.Group("/system")
	{
		system.GET("/status", r.middleware.CORS(), r.handler.SystemStatus)
		system.GET("/metrics", r.middleware.CORS(), r.handler.SystemMetrics)
	}
}

// Engine 获取 Gin 引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Run 启动 HTTP 服务
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
