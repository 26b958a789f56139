package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cafe-navigator/internal/memory"
	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/internal/pipeline/query"
	"cafe-navigator/pkg/log"
	"cafe-navigator/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	resolver *query.Resolver
	store    memory.Store
	logger   *log.Logger
}

// NewHandler 创建新的 HTTP 处理器；store 可为 nil（无历史端点可用数据）
func NewHandler(resolver *query.Resolver, store memory.Store, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Handler{
		resolver: resolver,
		store:    store,
		logger:   logger,
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "cafe-navigator",
	})
}

// ResolveQuery 解析一条查询
func (h *Handler) ResolveQuery(c *gin.Context) {
	var request struct {
		Query     string `json:"query" binding:"required"`
		Language  string `json:"language"`
		SessionID string `json:"session_id"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "请求参数错误",
		})
		return
	}

	sessionID := request.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	response := h.resolver.ResolveQuery(c.Request.Context(), request.Query, common.Language(request.Language), sessionID)

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"session_id": sessionID,
		"response":   response,
	})
}

// SessionHistory 返回一个 session 的未过期轮次，旧→新
func (h *Handler) SessionHistory(c *gin.Context) {
	sessionID := c.Param("id")
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"turns":      []any{},
			"total":      0,
		})
		return
	}

	turns, err := h.store.RecentTurns(c.Request.Context(), sessionID, memory.DefaultMaxTurns)
	if err != nil {
		h.logger.Error("读取会话历史失败", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "读取会话历史失败",
		})
		return
	}
	if turns == nil {
		turns = []*memory.Turn{}
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"turns":      turns,
		"total":      len(turns),
	})
}

// SystemStatus 系统状态
func (h *Handler) SystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api_service": "running",
		"memory":      h.store != nil,
		"timestamp":   time.Now(),
	})
}

// SystemMetrics 系统指标（Prometheus 文本格式）
func (h *Handler) SystemMetrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := metrics.WritePrometheus(c.Writer); err != nil {
		h.logger.Error("导出指标失败", "error", err)
		c.Status(http.StatusInternalServerError)
	}
}
