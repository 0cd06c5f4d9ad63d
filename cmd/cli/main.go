package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"research-agent/internal/agent"
	"research-agent/internal/app"
	"research-agent/internal/pipeline/ingest"
	"research-agent/pkg/config"
	"research-agent/pkg/tracing"
)

const version = "research-agent cli 0.1.0"

// Options 全局参数；子命令通过 parser.AddCommand 注册
type Options struct {
	Config  string        `short:"c" long:"config" env:"RESEARCH_AGENT_CONFIG" default:"configs/api.yaml" description:"配置文件路径"`
	Server  string        `short:"s" long:"server" env:"RESEARCH_AGENT_URL" default:"http://localhost:8080" description:"API 服务地址"`
	Timeout time.Duration `long:"timeout" default:"120s" description:"请求超时"`
}

type ingestCmd struct{ opts *Options }

type askCmd struct {
	opts     *Options
	Question string `short:"q" long:"question" description:"单次提问；缺省进入交互模式"`
}

type queryCmd struct {
	opts *Options
	GRPC string `long:"grpc" description:"gRPC 地址（如 localhost:9090）；设置后经 gRPC 提问"`
}

type runsCmd struct {
	opts  *Options
	Limit int `short:"n" long:"limit" default:"20" description:"返回条数"`
}

type reloadCmd struct{ opts *Options }

type versionCmd struct{}

func main() {
	opts := &Options{}
	parser := newParser(opts)
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		// flags.Default 已打印错误
		os.Exit(1)
	}
}

func newParser(opts *Options) *flags.Parser {
	parser := flags.NewParser(opts, flags.Default)
	parser.Name = "research-agent"
	mustAdd(parser, "ingest", "构建向量索引", "读取 PDF 文件或目录，全量重建索引并原子切换", &ingestCmd{opts: opts})
	mustAdd(parser, "ask", "本地提问", "在本进程内运行研究 Agent；不带 -q 时进入交互模式（exit/quit 退出）", &askCmd{opts: opts})
	mustAdd(parser, "query", "远程提问", "通过 HTTP API 提问", &queryCmd{opts: opts})
	mustAdd(parser, "runs", "最近运行记录", "列出 API 服务记录的最近运行", &runsCmd{opts: opts})
	mustAdd(parser, "reload", "重新加载索引", "通知 API 服务从磁盘重新加载索引快照", &reloadCmd{opts: opts})
	mustAdd(parser, "version", "显示版本", "显示版本", &versionCmd{})
	return parser
}

func mustAdd(p *flags.Parser, name, short, long string, data any) {
	if _, err := p.AddCommand(name, short, long, data); err != nil {
		panic(err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type bootstrapFunc func(ctx context.Context, cfg *config.Config) (*app.Bootstrap, error)

// loadBootstrap 加载配置并通过 newBootstrap 初始化本地组件；返回的 cleanup 负责关闭 tracer 与 Bootstrap
func loadBootstrap(ctx context.Context, path string, newBootstrap bootstrapFunc) (*app.Bootstrap, func(), error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}

	var tp *sdktrace.TracerProvider
	if t := cfg.Monitoring.Tracing; t.Enable && t.ExportEndpoint != "" {
		tp, err = tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    t.ServiceName,
			ExportEndpoint: t.ExportEndpoint,
			Insecure:       t.Insecure,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("初始化 tracer 失败: %w", err)
		}
	}

	b, err := newBootstrap(ctx, cfg)
	if err != nil {
		if tp != nil {
			_ = tp.Shutdown(context.Background())
		}
		return nil, nil, err
	}
	return b, func() {
		_ = b.Close()
		if tp != nil {
			_ = tp.Shutdown(context.Background())
		}
	}, nil
}

func (c *ingestCmd) Execute(args []string) error {
	if len(args) == 0 {
		return errors.New("至少指定一个 PDF 文件或目录")
	}
	ctx, cancel := signalContext()
	defer cancel()

	paths, err := ingest.ExpandPaths(args)
	if err != nil {
		return err
	}
	b, cleanup, err := loadBootstrap(ctx, c.opts.Config, app.NewIngestBootstrap)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := b.Pipeline.Ingest(ctx, paths)
	if err != nil {
		return fmt.Errorf("入库失败: %w", err)
	}
	fmt.Printf("documents=%d pages=%d chunks=%d location=%s duration=%s\n",
		report.Documents, report.Pages, report.Chunks, report.Location, report.Duration.Round(time.Millisecond))
	return nil
}

func (c *askCmd) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	b, cleanup, err := loadBootstrap(ctx, c.opts.Config, app.NewBootstrap)
	if err != nil {
		return err
	}
	defer cleanup()

	question := c.Question
	if question == "" && len(args) > 0 {
		question = strings.Join(args, " ")
	}
	if question != "" {
		res, err := b.Agent.Run(ctx, question)
		if err != nil {
			return err
		}
		printResult(os.Stdout, res)
		return nil
	}
	names := make([]string, 0, len(b.Agent.Tools()))
	for _, d := range b.Agent.Tools() {
		names = append(names, d.Name)
	}
	fmt.Printf("Tools: %s\n", strings.Join(names, ", "))
	return runREPL(ctx, b.Agent, os.Stdin, os.Stdout)
}

func (c *queryCmd) Execute(args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("Question cannot be empty")
	}
	ctx, cancel := signalContext()
	defer cancel()

	if c.GRPC != "" {
		answer, err := askGRPC(ctx, c.GRPC, question, c.opts.Timeout)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}
	out, err := newAPIClient(c.opts.Server, c.opts.Timeout).Query(ctx, question)
	if err != nil {
		return err
	}
	fmt.Println(out.Answer)
	return nil
}

func (c *runsCmd) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	recs, err := newAPIClient(c.opts.Server, c.opts.Timeout).Runs(ctx, c.Limit)
	if err != nil {
		return err
	}
	for _, r := range recs {
		fmt.Printf("%s\t%s\t%s\titer=%d\ttools=%s\t%s\n",
			r.CreatedAt.Format(time.RFC3339), r.ID, r.Status, r.Iterations, strings.Join(r.Tools, ","), r.Question)
	}
	return nil
}

func (c *reloadCmd) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	n, err := newAPIClient(c.opts.Server, c.opts.Timeout).Reload(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("reloaded chunks=%d\n", n)
	return nil
}

func (versionCmd) Execute(args []string) error {
	fmt.Println(version)
	return nil
}

// asker 由 *agent.Agent 实现
type asker interface {
	Run(ctx context.Context, question string) (*agent.Result, error)
}

// runREPL 逐行读取问题并打印答案，遇到 exit/quit 或输入结束时返回
func runREPL(ctx context.Context, a asker, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "AI Research Agent (type 'exit' or 'quit' to leave)")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		res, err := a.Run(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		printResult(out, res)
	}
}

func printResult(out io.Writer, res *agent.Result) {
	fmt.Fprintf(out, "Answer: %s\n", res.Answer)
	if tools := res.ToolsUsed(); len(tools) > 0 {
		fmt.Fprintf(out, "Tools: %s (iterations=%d)\n", strings.Join(tools, ", "), res.Iterations)
	}
}
