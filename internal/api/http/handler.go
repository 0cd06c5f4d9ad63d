package http

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"research-agent/internal/agent"
	"research-agent/internal/storage/runlog"
	"research-agent/pkg/log"
	"research-agent/pkg/metrics"
)

// 默认值
const (
	DefaultQueryTimeout = 120 * time.Second
	DefaultRunsLimit    = 20
	MaxRunsLimit        = 100
)

// Asker 回答研究问题；*agent.Agent 满足该接口
type Asker interface {
	Run(ctx context.Context, question string) (*agent.Result, error)
}

// ReloadFunc 从磁盘重新加载索引，返回生效的切片数
type ReloadFunc func() (int, error)

// Handler HTTP 处理器
type Handler struct {
	agent   Asker
	runs    runlog.Store
	reload  ReloadFunc
	timeout time.Duration
	logger  *log.Logger
}

// HandlerOption 可选配置
type HandlerOption func(*Handler)

// WithQueryTimeout 单次提问的最长执行时间
func WithQueryTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithIndexReload 启用 POST /api/index/reload（仅 memory 后端）
func WithIndexReload(fn ReloadFunc) HandlerOption {
	return func(h *Handler) { h.reload = fn }
}

// WithRunLog 启用 GET /api/runs
func WithRunLog(s runlog.Store) HandlerOption {
	return func(h *Handler) { h.runs = s }
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(asker Asker, logger *log.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = log.Discard()
	}
	h := &Handler{
		agent:   asker,
		runs:    runlog.Nop{},
		timeout: DefaultQueryTimeout,
		logger:  logger,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// QueryRequest 提问请求
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse 提问响应
type QueryResponse struct {
	Answer  string `json:"answer"`
	Success bool   `json:"success"`
}

// Index 服务信息
func (h *Handler) Index(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"message": "AI Research Agent API",
		"status":  "running",
		"endpoints": utils.H{
			"/query":            "POST - Submit research questions",
			"/health":           "GET - Check API health",
			"/api/runs":         "GET - Recent research runs",
			"/api/index/reload": "POST - Reload the document index from disk",
			"/metrics":          "GET - Prometheus metrics",
		},
	})
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"status":  "healthy",
		"message": "API is running",
	})
}

// Ask 提问入口，/query、/api/query、/api/ask 共用
func (h *Handler) Ask(ctx context.Context, c *app.RequestContext) {
	var req QueryRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"detail": "Invalid request body"})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"detail": agent.ErrEmptyQuestion.Error()})
		return
	}
	if h.agent == nil {
		c.JSON(consts.StatusServiceUnavailable, utils.H{"detail": "Agent error: agent not configured"})
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	res, err := h.agent.Run(runCtx, question)
	if err != nil {
		if errors.Is(err, agent.ErrEmptyQuestion) {
			c.JSON(consts.StatusBadRequest, utils.H{"detail": err.Error()})
			return
		}
		h.logger.Error("提问失败", "error", err)
		c.JSON(consts.StatusInternalServerError, utils.H{"detail": "Agent error: " + err.Error()})
		return
	}
	c.JSON(consts.StatusOK, QueryResponse{Answer: res.Answer, Success: true})
}

// ReloadIndex 重新加载索引快照
func (h *Handler) ReloadIndex(ctx context.Context, c *app.RequestContext) {
	if h.reload == nil {
		c.JSON(consts.StatusConflict, utils.H{"detail": "index reload requires the memory vector backend"})
		return
	}
	n, err := h.reload()
	if err != nil {
		h.logger.Error("重新加载索引失败", "error", err)
		c.JSON(consts.StatusInternalServerError, utils.H{"detail": "Index reload failed: " + err.Error()})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"status": "reloaded", "chunks": n})
}

// ListRuns 最近的运行记录
func (h *Handler) ListRuns(ctx context.Context, c *app.RequestContext) {
	limit := DefaultRunsLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(consts.StatusBadRequest, utils.H{"detail": "limit must be a positive integer"})
			return
		}
		limit = min(n, MaxRunsLimit)
	}
	recs, err := h.runs.Recent(ctx, limit)
	if err != nil {
		h.logger.Error("查询运行记录失败", "error", err)
		c.JSON(consts.StatusInternalServerError, utils.H{"detail": "Failed to list runs"})
		return
	}
	if recs == nil {
		recs = []runlog.Record{}
	}
	c.JSON(consts.StatusOK, utils.H{"runs": recs, "count": len(recs)})
}

// Metrics Prometheus 文本格式
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"detail": err.Error()})
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
