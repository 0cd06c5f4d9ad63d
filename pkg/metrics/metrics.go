package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/CLI 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		AgentRunsTotal, AgentIterations, AgentParseErrorsTotal,
		ToolDuration, ToolErrorsTotal,
		LLMDuration, RateLimitWaitSeconds,
		IngestChunksTotal, IndexChunks,
	)
}

// AgentRunsTotal 提问总数（按结果）
var AgentRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "research_agent_runs_total",
		Help: "推理循环执行次数（按结果）",
	},
	[]string{"outcome"}, // finished | budget_exhausted | parse_limit | upstream | cancelled | invalid
)

// AgentIterations 每次提问消耗的决策轮数
var AgentIterations = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "research_agent_iterations",
		Help:    "每次提问消耗的决策轮数",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
	},
)

// AgentParseErrorsTotal 模型输出无法解析的次数（含未知工具）
var AgentParseErrorsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "research_agent_parse_errors_total",
		Help: "模型输出解析失败次数",
	},
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "research_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolErrorsTotal 工具调用失败次数
var ToolErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "research_tool_errors_total",
		Help: "工具调用失败次数",
	},
	[]string{"tool"},
)

// LLMDuration LLM 调用耗时（秒）
var LLMDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "research_llm_duration_seconds",
		Help:    "LLM 调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider"},
)

// RateLimitWaitSeconds 限流等待时长
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "research_rate_limit_wait_seconds",
		Help:    "限流等待时长（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// IngestChunksTotal 入库切片总数
var IngestChunksTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "research_ingest_chunks_total",
		Help: "入库切片总数",
	},
)

// IndexChunks 当前生效索引中的切片数
var IndexChunks = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "research_index_chunks",
		Help: "当前生效索引中的切片数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
