package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"research-agent/internal/model/llm"
	"research-agent/internal/storage/runlog"
	"research-agent/internal/tool"
	"research-agent/internal/tool/registry"
	"research-agent/pkg/log"
	"research-agent/pkg/metrics"
	"research-agent/pkg/tracing"
)

// 默认参数
const (
	DefaultMaxIterations  = 10
	DefaultMaxParseErrors = 3
	DefaultTemperature    = 0.3
	DefaultMaxTokens      = 1024
)

// Result 一次成功 Run 的结果
type Result struct {
	RunID      string        `json:"run_id"`
	Answer     string        `json:"answer"`
	Iterations int           `json:"iterations"`
	Steps      []Step        `json:"steps"`
	Duration   time.Duration `json:"duration"`
}

// ToolsUsed 按调用顺序返回实际执行过的工具名
func (r *Result) ToolsUsed() []string {
	return toolsUsed(r.Steps)
}

// Agent ReAct 推理循环控制器；每次 Run 独立持有草稿，可并发调用
type Agent struct {
	client         llm.Client
	registry       *registry.Registry
	maxIterations  int
	maxParseErrors int
	temperature    float64
	maxTokens      int
	template       string
	logger         *log.Logger
	runs           runlog.Store
}

// AgentOption 可选配置
type AgentOption func(*Agent)

// WithMaxIterations 单次 Run 最多调用模型的次数
func WithMaxIterations(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithMaxParseErrors 格式错误（含未知工具）累计达到该值即失败
func WithMaxParseErrors(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxParseErrors = n
		}
	}
}

func WithTemperature(t float64) AgentOption {
	return func(a *Agent) { a.temperature = t }
}

func WithMaxTokens(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithPromptTemplate 替换默认提示词模板
func WithPromptTemplate(tpl string) AgentOption {
	return func(a *Agent) {
		if strings.TrimSpace(tpl) != "" {
			a.template = tpl
		}
	}
}

func WithLogger(l *log.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRunLog 每次 Run 结束写入一条摘要
func WithRunLog(s runlog.Store) AgentOption {
	return func(a *Agent) {
		if s != nil {
			a.runs = s
		}
	}
}

// New 创建 Agent；registry 应已完成注册并封存
func New(client llm.Client, reg *registry.Registry, opts ...AgentOption) *Agent {
	a := &Agent{
		client:         client,
		registry:       reg,
		maxIterations:  DefaultMaxIterations,
		maxParseErrors: DefaultMaxParseErrors,
		temperature:    DefaultTemperature,
		maxTokens:      DefaultMaxTokens,
		template:       DefaultPromptTemplate,
		logger:         log.Discard(),
		runs:           runlog.Nop{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// MaxIterations 当前默认迭代上限
func (a *Agent) MaxIterations() int { return a.maxIterations }

// Tools 提示词中列出的工具
func (a *Agent) Tools() []tool.Descriptor { return a.registry.List() }

// Run 以默认迭代上限回答问题
func (a *Agent) Run(ctx context.Context, question string) (*Result, error) {
	return a.RunWithBudget(ctx, question, a.maxIterations)
}

// RunWithBudget 回答问题；budget<=0 时使用默认上限。
// 成功返回 Result；失败返回 *Failure（预算耗尽、格式错误上限、取消）或 *UpstreamError
func (a *Agent) RunWithBudget(ctx context.Context, question string, budget int) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		metrics.AgentRunsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrEmptyQuestion
	}
	if budget <= 0 {
		budget = a.maxIterations
	}

	r := &run{
		agent:    a,
		id:       uuid.NewString(),
		question: question,
		budget:   budget,
		tools:    a.registry.List(),
		state:    Thinking,
		start:    time.Now(),
	}
	ctx, span := tracing.StartRunSpan(ctx, r.id, budget)
	res, err := r.loop(ctx)
	tracing.EndSpan(span, err)
	a.finish(ctx, r, res, err)
	return res, err
}

// run 单次推理循环的私有状态
type run struct {
	agent       *Agent
	id          string
	question    string
	budget      int
	tools       []tool.Descriptor
	pad         Scratchpad
	state       State
	iterations  int
	parseErrors int
	start       time.Time
}

func (r *run) loop(ctx context.Context) (*Result, error) {
	a := r.agent
	for {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(ErrCancelled, err)
		}
		if r.iterations >= r.budget {
			return nil, r.fail(ErrBudgetExhausted, nil)
		}
		r.iterations++

		prompt := renderPrompt(a.template, r.tools, r.question, &r.pad)
		output, err := a.callModel(ctx, prompt, r.iterations)
		if err != nil {
			if ctx.Err() != nil {
				return nil, r.fail(ErrCancelled, ctx.Err())
			}
			r.state = r.state.Next(Failed)
			return nil, &UpstreamError{Provider: a.client.Provider(), Iteration: r.iterations, Err: err}
		}

		decision, err := ParseDecision(output)
		if err != nil {
			var pe *ParseError
			errors.As(err, &pe)
			if ferr := r.parseFailure(err); ferr != nil {
				return nil, ferr
			}
			a.logger.Debug("模型输出格式错误", "run_id", r.id, "iteration", r.iterations, "reason", pe.Reason)
			r.pad.Append(Step{Thought: pe.Thought, Observation: err.Error()})
			r.state = r.state.Next(Thinking)
			continue
		}

		switch d := decision.(type) {
		case Finish:
			r.state = r.state.Next(Finished)
			return &Result{
				RunID:      r.id,
				Answer:     d.Answer,
				Iterations: r.iterations,
				Steps:      r.pad.Steps(),
				Duration:   time.Since(r.start),
			}, nil
		case Act:
			t, lookupErr := a.registry.Get(d.Tool)
			if lookupErr != nil {
				if ferr := r.parseFailure(lookupErr); ferr != nil {
					return nil, ferr
				}
				obs := fmt.Sprintf("%v. Valid tools: [%s]", lookupErr, strings.Join(a.registry.Names(), ", "))
				r.pad.Append(Step{Thought: d.Thought, Action: d.Tool, Input: d.Input, Observation: obs})
				r.state = r.state.Next(Thinking)
				continue
			}
			r.state = r.state.Next(Acting)
			start := time.Now()
			obs := a.invokeTool(ctx, t, d.Input, r.iterations)
			r.pad.Append(Step{
				Thought:     d.Thought,
				Action:      d.Tool,
				Input:       d.Input,
				Observation: obs,
				Duration:    time.Since(start),
				invoked:     true,
			})
			r.state = r.state.Next(Thinking)
		}
	}
}

// parseFailure 计数一次格式错误；达到上限时返回 Failure
func (r *run) parseFailure(cause error) error {
	metrics.AgentParseErrorsTotal.Inc()
	r.parseErrors++
	if r.parseErrors >= r.agent.maxParseErrors {
		return r.fail(ErrParseLimit, cause)
	}
	return nil
}

func (r *run) fail(sentinel error, cause error) *Failure {
	r.state = r.state.Next(Failed)
	return newFailure(sentinel, r.iterations, cause)
}

func (a *Agent) callModel(ctx context.Context, prompt string, iteration int) (string, error) {
	ctx, span := tracing.StartLLMSpan(ctx, a.client.Provider(), a.client.Model(), iteration)
	start := time.Now()
	out, err := a.client.ChatWithContext(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.GenerateOptions{
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
		Stop:        []string{StopSequence},
	})
	metrics.LLMDuration.WithLabelValues(a.client.Provider()).Observe(time.Since(start).Seconds())
	tracing.EndSpan(span, err)
	return out, err
}

// invokeTool 执行工具；错误与 panic 都转为观察文本交还模型
func (a *Agent) invokeTool(ctx context.Context, t tool.Tool, input string, iteration int) (obs string) {
	ctx, span := tracing.StartToolSpan(ctx, t.Name(), iteration)
	start := time.Now()
	var err error
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool %s panicked: %v", t.Name(), p)
			obs = err.Error()
		}
		metrics.ToolDuration.WithLabelValues(t.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ToolErrorsTotal.WithLabelValues(t.Name()).Inc()
			a.logger.Warn("工具执行失败", "tool", t.Name(), "iteration", iteration, "error", err)
		}
		tracing.EndSpan(span, err)
	}()

	obs, err = t.Invoke(ctx, input)
	if err != nil {
		return err.Error()
	}
	return obs
}

// finish 记录指标、日志与运行摘要
func (a *Agent) finish(ctx context.Context, r *run, res *Result, err error) {
	rec := runlog.Record{
		ID:         r.id,
		Question:   r.question,
		Iterations: r.iterations,
		Tools:      toolsUsed(r.pad.steps),
		Duration:   time.Since(r.start),
		CreatedAt:  r.start,
	}
	outcome := "finished"
	if err != nil {
		rec.Status = runlog.StatusFailed
		rec.Reason = err.Error()
		outcome = outcomeOf(err)
		a.logger.Warn("提问未完成", "run_id", r.id, "outcome", outcome, "iterations", r.iterations, "error", err)
	} else {
		rec.Status = runlog.StatusFinished
		rec.Answer = res.Answer
		a.logger.Info("提问完成", "run_id", r.id, "iterations", r.iterations, "tools", rec.Tools, "duration", rec.Duration)
	}
	metrics.AgentRunsTotal.WithLabelValues(outcome).Inc()
	metrics.AgentIterations.Observe(float64(r.iterations))

	if aerr := a.runs.Append(context.WithoutCancel(ctx), rec); aerr != nil {
		a.logger.Warn("写入运行记录失败", "run_id", r.id, "error", aerr)
	}
}

func outcomeOf(err error) string {
	var up *UpstreamError
	switch {
	case errors.Is(err, ErrBudgetExhausted):
		return "budget_exhausted"
	case errors.Is(err, ErrParseLimit):
		return "parse_limit"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.As(err, &up):
		return "upstream"
	default:
		return "error"
	}
}

func toolsUsed(steps []Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.invoked {
			out = append(out, s.Action)
		}
	}
	return out
}
