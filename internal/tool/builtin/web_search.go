package builtin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"research-agent/internal/pipeline/common"
	"research-agent/internal/storage/cache"
	"research-agent/pkg/log"
)

const WebSearchName = "Web_Search"

// NoResults 检索无结果时的观察文本
const NoResults = "No results found."

// WebSearchConfig SerpAPI 配置
type WebSearchConfig struct {
	APIKey   string
	BaseURL  string
	Engine   string
	Num      int
	CacheTTL time.Duration
	Timeout  time.Duration
}

// WebSearchTool 通过 SerpAPI 检索 Google Scholar，结果按查询缓存
type WebSearchTool struct {
	cfg    WebSearchConfig
	client *resty.Client
	cache  cache.Store
	logger *log.Logger
}

func NewWebSearchTool(cfg WebSearchConfig, store cache.Store, logger *log.Logger) *WebSearchTool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://serpapi.com"
	}
	if cfg.Engine == "" {
		cfg.Engine = "google_scholar"
	}
	if cfg.Num <= 0 {
		cfg.Num = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.Discard()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	return &WebSearchTool{cfg: cfg, client: client, cache: store, logger: logger}
}

func (t *WebSearchTool) Name() string { return WebSearchName }

func (t *WebSearchTool) Description() string {
	return "Search the web (Google Scholar) for recent papers. Use this when you need current research or papers not in the PDF database."
}

type serpResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type serpResponse struct {
	OrganicResults []serpResult `json:"organic_results"`
	Error          string       `json:"error"`
}

func (t *WebSearchTool) cacheKey(query string) string {
	return "websearch:" + strconv.Itoa(t.cfg.Num) + ":" + query
}

func (t *WebSearchTool) Invoke(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", fmt.Errorf("%w: query 不能为空", common.ErrInvalidInput)
	}

	if t.cache != nil {
		var cached string
		if err := t.cache.Get(ctx, t.cacheKey(query), &cached); err == nil {
			return cached, nil
		}
	}

	var body serpResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"engine":  t.cfg.Engine,
			"q":       query,
			"api_key": t.cfg.APIKey,
			"num":     strconv.Itoa(t.cfg.Num),
		}).
		SetResult(&body).
		SetError(&body).
		Get("/search.json")
	if err != nil {
		return "", fmt.Errorf("web search request failed: %w", err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("web search error: %s", body.Error)
	}
	if resp.IsError() {
		return "", fmt.Errorf("web search returned %d", resp.StatusCode())
	}

	out := formatSerpResults(body.OrganicResults)
	if t.cache != nil {
		if err := t.cache.Set(ctx, t.cacheKey(query), out, t.cfg.CacheTTL); err != nil {
			t.logger.Warn("写入检索缓存失败", "error", err)
		}
	}
	return out, nil
}

func formatSerpResults(results []serpResult) string {
	if len(results) == 0 {
		return NoResults
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Title+"\n"+r.Snippet+"\n"+r.Link)
	}
	return strings.Join(parts, "\n\n")
}
