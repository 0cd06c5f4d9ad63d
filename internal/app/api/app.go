package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"google.golang.org/grpc"

	apigrpc "research-agent/internal/api/grpc"
	"research-agent/internal/api/http"
	"research-agent/internal/api/http/middleware"
	"research-agent/internal/app"
	"research-agent/pkg/config"
	"research-agent/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与可选的 gRPC）
type App struct {
	bootstrap    *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	grpcServer   *grpcRun
	otelProvider otelProviderShutdown
	logOutput    io.Closer

	mu      sync.Mutex
	running bool
	closed  bool
}

// grpcRun 持有 gRPC Server 与 Listener，用于 GracefulStop 时关闭
type grpcRun struct {
	srv *grpc.Server
	lis net.Listener
}

func (g *grpcRun) GracefulStop() {
	if g.srv != nil {
		g.srv.GracefulStop()
	}
	if g.lis != nil {
		_ = g.lis.Close()
	}
}

// NewApp 创建 API 应用（由 cmd/api 调用），addr 如 ":8080"；hertz 服务在此构建，Run 只负责启动
func NewApp(bootstrap *app.Bootstrap, addr string) (*App, error) {
	cfg := bootstrap.Config
	timeout := config.ParseDuration(cfg.API.Timeout, http.DefaultQueryTimeout)

	opts := []http.HandlerOption{
		http.WithQueryTimeout(timeout),
		http.WithRunLog(bootstrap.RunLog),
	}
	if bootstrap.Index != nil {
		opts = append(opts, http.WithIndexReload(bootstrap.ReloadIndex))
	}
	handler := http.NewHandler(bootstrap.Agent, bootstrap.Logger, opts...)

	rps := 0
	if cfg.API.Middleware.RateLimit {
		rps = cfg.API.Middleware.RateLimitRPS
	}
	mw := middleware.NewMiddleware(middleware.Config{
		CORSEnable:   cfg.API.CORS.Enable,
		AllowOrigins: cfg.API.CORS.AllowOrigins,
		RateLimitRPS: rps,
	}, bootstrap.Logger)

	a := &App{
		bootstrap: bootstrap,
		router:    http.NewRouter(handler, mw),
	}

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	var output io.Writer = os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		output, a.logOutput = f, f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	tracing := cfg.Monitoring.Tracing
	exportEndpoint := tracing.ExportEndpoint
	if exportEndpoint == "" {
		exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if tracing.Enable && exportEndpoint != "" {
		serviceName := tracing.ServiceName
		if serviceName == "" {
			serviceName = "research-agent"
		}
		popts := []provider.Option{
			provider.WithServiceName(serviceName),
			provider.WithExportEndpoint(exportEndpoint),
		}
		if tracing.Insecure {
			popts = append(popts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(popts...)
		tracerOpt, tcfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, tracerOpt)
		a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
		bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
	} else {
		a.hertz = a.router.Build(addr)
	}

	if cfg.API.Grpc.Enable && cfg.API.Grpc.Port > 0 {
		gs, err := startGRPC(bootstrap, cfg.API.Grpc.Port, timeout)
		if err != nil {
			if a.logOutput != nil {
				_ = a.logOutput.Close()
			}
			return nil, fmt.Errorf("gRPC 服务启动失败: %w", err)
		}
		a.grpcServer = gs
		bootstrap.Logger.Info("gRPC 服务已启动", "port", cfg.API.Grpc.Port)
	}
	return a, nil
}

// Run 启动 HTTP 服务；阻塞直到服务退出。Shutdown 之后调用直接返回
func (a *App) Run() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	a.mu.Unlock()

	a.bootstrap.Logger.Info("API 服务启动")
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）；重复调用无副作用
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	running := a.running
	a.mu.Unlock()

	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if running {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.logOutput != nil {
		_ = a.logOutput.Close()
	}
	return a.bootstrap.Close()
}

// ShutdownTimeout cmd 层等待优雅关闭的上限
const ShutdownTimeout = 10 * time.Second

// startGRPC 创建并启动 gRPC 服务（在 goroutine 中 Serve），返回 grpcRun 以便 Shutdown 时 GracefulStop
func startGRPC(bootstrap *app.Bootstrap, port int, timeout time.Duration) (*grpcRun, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	srv := grpc.NewServer()
	apigrpc.NewServer(bootstrap.Agent, apigrpc.WithTimeout(timeout)).Register(srv)
	go func() {
		_ = srv.Serve(lis)
	}()
	return &grpcRun{srv: srv, lis: lis}, nil
}
