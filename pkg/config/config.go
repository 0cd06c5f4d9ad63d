// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Model      ModelConfig      `mapstructure:"model"`
	Search     SearchConfig     `mapstructure:"search"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"` // 单次提问的最长执行时间，如 "120s"
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Grpc       GrpcConfig       `mapstructure:"grpc"`
}

// GrpcConfig gRPC 服务配置
type GrpcConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	RateLimit    bool `mapstructure:"rate_limit"`
	RateLimitRPS int  `mapstructure:"rate_limit_rps"`
}

// AgentConfig 推理循环配置
type AgentConfig struct {
	MaxIterations  int    `mapstructure:"max_iterations"`   // 单次提问最多决策轮数
	MaxParseErrors int    `mapstructure:"max_parse_errors"` // 累计解析失败达到该值即终止
	MaxTokens      int    `mapstructure:"max_tokens"`
	PromptFile     string `mapstructure:"prompt_file"` // 可选，自定义指令模板
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	Type    string               `mapstructure:"type"` // LLM: openai | claude | gemini | eino-openai；embedding: openai | local；空则取 provider 名
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Timeout string               `mapstructure:"timeout"` // 单次请求超时，如 "30s"；空则用客户端默认
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	Dimension   int     `mapstructure:"dimension"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	BatchSize   int     `mapstructure:"batch_size"`
}

// DefaultsConfig 默认模型，格式 provider.model_key
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Embedding string `mapstructure:"embedding"`
}

// ModelRef 解析后的模型引用
type ModelRef struct {
	Provider string
	Type     string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Info     ModelInfo
}

// SearchConfig 网络检索工具配置
type SearchConfig struct {
	Provider string `mapstructure:"provider"` // serpapi
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Engine   string `mapstructure:"engine"`
	Num      int    `mapstructure:"num"`
	CacheTTL string `mapstructure:"cache_ttl"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Vector VectorConfig `mapstructure:"vector"`
	Cache  CacheConfig  `mapstructure:"cache"`
	RunLog RunLogConfig `mapstructure:"runlog"`
	Ingest IngestConfig `mapstructure:"ingest"`
}

// VectorConfig 向量索引配置（memory 为本地快照 + 内存检索；redis 使用 eino-ext 组件）
type VectorConfig struct {
	Type       string `mapstructure:"type"`
	IndexDir   string `mapstructure:"index_dir"` // memory 快照目录
	Watch      bool   `mapstructure:"watch"`     // 监听快照变化并热加载
	Addr       string `mapstructure:"addr"`
	DB         string `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	Collection string `mapstructure:"collection"`
	TopK       int    `mapstructure:"top_k"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"`
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// RunLogConfig 运行记录存储
type RunLogConfig struct {
	Type string `mapstructure:"type"` // none | memory | postgres
	DSN  string `mapstructure:"dsn"`
}

// IngestConfig 入库管线配置
type IngestConfig struct {
	ChunkSize        int    `mapstructure:"chunk_size"`
	ChunkOverlap     int    `mapstructure:"chunk_overlap"`
	BatchSize        int    `mapstructure:"batch_size"`
	Concurrency      int    `mapstructure:"concurrency"`
	UnipdfLicenseKey string `mapstructure:"unipdf_license_key"`
}

// SecretsConfig 凭据来源
type SecretsConfig struct {
	Provider string      `mapstructure:"provider"` // env | memory | vault
	Vault    VaultConfig `mapstructure:"vault"`
}

// VaultConfig Vault 连接配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	Mount      string `mapstructure:"mount"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// LoadConfig 加载配置文件；configPath 为空时只使用默认值与环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindLegacyEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.timeout", "120s")
	v.SetDefault("api.cors.enable", true)
	v.SetDefault("api.cors.allow_origins", []string{"*"})
	v.SetDefault("api.middleware.rate_limit_rps", 10)
	v.SetDefault("api.grpc.port", 9090)

	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.max_parse_errors", 3)
	v.SetDefault("agent.max_tokens", 1024)

	v.SetDefault("model.defaults.llm", "groq.llama_31_8b")
	v.SetDefault("model.llm.providers.groq.type", "openai")
	v.SetDefault("model.llm.providers.groq.api_key", "${GROQ_API_KEY}")
	v.SetDefault("model.llm.providers.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("model.llm.providers.groq.timeout", "60s")
	v.SetDefault("model.llm.providers.groq.models.llama_31_8b.name", "llama-3.1-8b-instant")
	v.SetDefault("model.llm.providers.groq.models.llama_31_8b.temperature", 0.3)

	v.SetDefault("model.defaults.embedding", "local.minilm")
	v.SetDefault("model.embedding.providers.local.type", "local")
	v.SetDefault("model.embedding.providers.local.models.minilm.name", "${EMBEDDING_MODEL:-all-MiniLM-L6-v2}")
	v.SetDefault("model.embedding.providers.local.models.minilm.dimension", 384)

	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("search.api_key", "${SERPAPI_API_KEY}")
	v.SetDefault("search.base_url", "https://serpapi.com")
	v.SetDefault("search.engine", "google_scholar")
	v.SetDefault("search.num", 3)
	v.SetDefault("search.cache_ttl", "1h")

	v.SetDefault("storage.vector.type", "memory")
	v.SetDefault("storage.vector.index_dir", "data/index")
	v.SetDefault("storage.vector.collection", "research")
	v.SetDefault("storage.vector.top_k", 5)
	v.SetDefault("storage.cache.type", "memory")
	v.SetDefault("storage.runlog.type", "memory")
	v.SetDefault("storage.ingest.chunk_size", 1000)
	v.SetDefault("storage.ingest.chunk_overlap", 200)
	v.SetDefault("storage.ingest.batch_size", 32)
	v.SetDefault("storage.ingest.concurrency", 4)

	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.vault.mount", "secret")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.tracing.service_name", "research-agent")
}

// bindLegacyEnv 兼容 .env 中沿用的变量名
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("storage.vector.index_dir", "FAISS_INDEX_DIR", "INDEX_DIR")
	_ = v.BindEnv("storage.runlog.dsn", "RUNLOG_DSN")
	_ = v.BindEnv("secrets.vault.address", "VAULT_ADDR")
	_ = v.BindEnv("secrets.vault.token", "VAULT_TOKEN")
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv 替换 ${VAR} 与 ${VAR:-default}
func ExpandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		parts := envRef.FindStringSubmatch(m)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
}

// replaceEnvVars 替换配置中的环境变量
func replaceEnvVars(config *Config) {
	expandProviders(config.Model.LLM.Providers)
	expandProviders(config.Model.Embedding.Providers)

	config.Search.APIKey = ExpandEnv(config.Search.APIKey)
	config.Storage.Vector.IndexDir = ExpandEnv(config.Storage.Vector.IndexDir)
	config.Storage.Vector.Password = ExpandEnv(config.Storage.Vector.Password)
	config.Storage.Cache.Password = ExpandEnv(config.Storage.Cache.Password)
	config.Storage.RunLog.DSN = ExpandEnv(config.Storage.RunLog.DSN)
	config.Storage.Ingest.UnipdfLicenseKey = ExpandEnv(config.Storage.Ingest.UnipdfLicenseKey)
	config.Secrets.Vault.Token = ExpandEnv(config.Secrets.Vault.Token)
}

func expandProviders(providers map[string]ProviderConfig) {
	for name, pc := range providers {
		pc.APIKey = ExpandEnv(pc.APIKey)
		pc.BaseURL = ExpandEnv(pc.BaseURL)
		for key, mi := range pc.Models {
			mi.Name = ExpandEnv(mi.Name)
			pc.Models[key] = mi
		}
		providers[name] = pc
	}
}

// LLMModel 解析 defaults.llm
func (c *Config) LLMModel() (ModelRef, error) {
	return resolveModel("LLM", c.Model.Defaults.LLM, c.Model.LLM.Providers)
}

// EmbeddingModel 解析 defaults.embedding
func (c *Config) EmbeddingModel() (ModelRef, error) {
	return resolveModel("Embedding", c.Model.Defaults.Embedding, c.Model.Embedding.Providers)
}

func resolveModel(kind, key string, providers map[string]ProviderConfig) (ModelRef, error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ModelRef{}, fmt.Errorf("%s default key 格式应为 provider.model_key，当前: %q", kind, key)
	}
	provider, modelKey := parts[0], parts[1]
	pc, ok := providers[provider]
	if !ok {
		return ModelRef{}, fmt.Errorf("%s provider %q 未配置", kind, provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return ModelRef{}, fmt.Errorf("%s model %q 未在 provider %q 中配置", kind, modelKey, provider)
	}
	typ := pc.Type
	if typ == "" {
		typ = provider
	}
	return ModelRef{
		Provider: provider,
		Type:     typ,
		APIKey:   pc.APIKey,
		BaseURL:  pc.BaseURL,
		Timeout:  ParseDuration(pc.Timeout, 0),
		Info:     mi,
	}, nil
}

// SetLLMAPIKey 回填 defaults.llm 对应 provider 的 api_key
func (c *Config) SetLLMAPIKey(apiKey string) {
	setProviderKey(c.Model.Defaults.LLM, c.Model.LLM.Providers, apiKey)
}

// SetEmbeddingAPIKey 回填 defaults.embedding 对应 provider 的 api_key
func (c *Config) SetEmbeddingAPIKey(apiKey string) {
	setProviderKey(c.Model.Defaults.Embedding, c.Model.Embedding.Providers, apiKey)
}

func setProviderKey(key string, providers map[string]ProviderConfig, apiKey string) {
	provider, _, _ := strings.Cut(key, ".")
	if pc, ok := providers[provider]; ok {
		pc.APIKey = apiKey
		providers[provider] = pc
	}
}

// ParseDuration 解析时长，失败或为空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
