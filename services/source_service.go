package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"flic_feed/config"
	"flic_feed/logger"
	"flic_feed/models"
)

const (
	usersPath    = "/users/get_all"
	allPostsPath = "/posts/summary/get"

	maxResponseBytes = 64 << 20

	halfOpenRetries    = 1
	halfOpenRetryDelay = 50 * time.Millisecond
)

// UpstreamConfig 上游内容服务的连接参数，在构造时注入，调用期间不再读取环境
type UpstreamConfig struct {
	BaseURL          string
	Token            string
	Page             int
	PageSize         int
	MaxPages         int
	Timeout          time.Duration
	BreakerDisabled  bool
	FailureThreshold uint32
	BreakerTimeout   time.Duration
}

// UpstreamConfigFrom 从进程配置构造上游参数
func UpstreamConfigFrom(cfg *config.Config) UpstreamConfig {
	u := cfg.Upstream
	return UpstreamConfig{
		BaseURL:          u.BaseURL,
		Token:            u.Token,
		Page:             u.Page,
		PageSize:         u.PageSize,
		MaxPages:         u.MaxPages,
		Timeout:          time.Duration(u.TimeoutSec) * time.Second,
		BreakerDisabled:  u.Breaker.Disabled,
		FailureThreshold: u.Breaker.FailureThreshold,
		BreakerTimeout:   time.Duration(u.Breaker.TimeoutSec) * time.Second,
	}
}

// SourceAdapter 互动数据源适配器：按类型从上游获取帖子。不做任何缓存，每次调用都会请求上游。
type SourceAdapter struct {
	cfg     UpstreamConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// SourceOption 适配器可选项
type SourceOption func(*SourceAdapter)

// WithHTTPClient 替换默认的 HTTP 客户端
func WithHTTPClient(c *http.Client) SourceOption {
	return func(a *SourceAdapter) {
		a.client = c
	}
}

// NewSourceAdapter 创建适配器
func NewSourceAdapter(cfg UpstreamConfig, opts ...SourceOption) *SourceAdapter {
	if cfg.Page <= 0 {
		cfg.Page = 1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second // 默认超时
	}

	a := &SourceAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if !cfg.BreakerDisabled {
		a.breaker = newUpstreamBreaker(cfg)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// callerCanceledError 调用方的 ctx 已结束（取消、超时或 errgroup 中其他请求失败）时的请求错误。
// 熔断器不把它计为成功或失败。
type callerCanceledError struct {
	err error
}

func (e *callerCanceledError) Error() string { return e.err.Error() }

func (e *callerCanceledError) Unwrap() error { return e.err }

// newUpstreamBreaker 连续失败达到阈值后熔断。4xx 不计为失败，调用方取消不计入统计。
// 半开状态放行的请求数不少于一次推荐流并发拉取的类型数，否则同一次请求的其余类型会被拒绝。
func newUpstreamBreaker(cfg UpstreamConfig) *gobreaker.CircuitBreaker[[]byte] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "flic-upstream",
		MaxRequests: uint32(len(models.EngagementOrder)),
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var upstreamErr *models.UpstreamError
			return errors.As(err, &upstreamErr) && upstreamErr.Status < http.StatusInternalServerError
		},
		IsExcluded: func(err error) bool {
			var canceled *callerCanceledError
			return errors.As(err, &canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Upstream circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

// Fetch 获取一种互动类型的全部帖子（受 MaxPages 限制）
func (a *SourceAdapter) Fetch(ctx context.Context, category models.EngagementCategory) ([]models.Post, error) {
	path, err := category.Path()
	if err != nil {
		return nil, err
	}
	raw, err := a.fetchAll(ctx, string(category), path)
	if err != nil {
		return nil, err
	}
	return decodePosts(raw, path), nil
}

// FetchAllPosts 获取全部帖子摘要
func (a *SourceAdapter) FetchAllPosts(ctx context.Context) ([]models.Post, error) {
	raw, err := a.fetchAll(ctx, "all_posts", allPostsPath)
	if err != nil {
		return nil, err
	}
	return decodePosts(raw, allPostsPath), nil
}

// FetchUsers 获取全部用户，用户记录不做解析
func (a *SourceAdapter) FetchUsers(ctx context.Context) ([]models.User, error) {
	raw, err := a.fetchAll(ctx, "users", usersPath)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(raw))
	for _, r := range raw {
		users = append(users, models.User(r))
	}
	return users, nil
}

// fetchAll 从起始页开始逐页获取，遇到不满一页或达到 MaxPages 时停止
func (a *SourceAdapter) fetchAll(ctx context.Context, label, path string) ([]json.RawMessage, error) {
	start := time.Now()
	var all []json.RawMessage
	for i := 0; i < a.cfg.MaxPages; i++ {
		if err := ctx.Err(); err != nil {
			observeUpstream(label, "canceled", start)
			return nil, err
		}
		items, err := a.fetchPage(ctx, path, a.cfg.Page+i)
		if err != nil {
			observeUpstream(label, upstreamOutcome(err), start)
			return nil, err
		}
		all = append(all, items...)
		if len(items) < a.cfg.PageSize {
			break
		}
	}
	observeUpstream(label, "success", start)
	return all, nil
}

// pageResponse 上游统一返回 {"posts": [...]}；用户接口兼容 users 字段
type pageResponse struct {
	Posts []json.RawMessage `json:"posts"`
	Users []json.RawMessage `json:"users"`
}

func (a *SourceAdapter) fetchPage(ctx context.Context, path string, page int) ([]json.RawMessage, error) {
	body, err := a.execute(ctx, path, page)
	if err != nil {
		return nil, err
	}

	var resp pageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	if resp.Posts == nil && resp.Users != nil {
		return resp.Users, nil
	}
	return resp.Posts, nil
}

// execute 经熔断器发出请求。半开状态下名额已满时等待一次后重试。
func (a *SourceAdapter) execute(ctx context.Context, path string, page int) ([]byte, error) {
	fetch := func() ([]byte, error) {
		body, err := a.do(ctx, path, page)
		if err != nil && ctx.Err() != nil {
			return nil, &callerCanceledError{err: err}
		}
		return body, err
	}
	if a.breaker == nil {
		return fetch()
	}

	for attempt := 0; ; attempt++ {
		body, err := a.breaker.Execute(fetch)
		if errors.Is(err, gobreaker.ErrTooManyRequests) && attempt < halfOpenRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(halfOpenRetryDelay):
			}
			continue
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("upstream %s unavailable: %w", path, err)
		}
		return body, err
	}
}

func (a *SourceAdapter) do(ctx context.Context, path string, page int) ([]byte, error) {
	u, err := url.Parse(a.cfg.BaseURL + path)
	if err != nil {
		return nil, fmt.Errorf("build upstream url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(a.cfg.PageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Flic-Token", a.cfg.Token)
	req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn("上游服务返回错误状态码", "path", path, "status_code", resp.StatusCode)
		return nil, &models.UpstreamError{Endpoint: path, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// decodePosts 逐条解析，缺少 id 或格式错误的记录被跳过
func decodePosts(raw []json.RawMessage, path string) []models.Post {
	posts := make([]models.Post, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var p models.Post
		if err := json.Unmarshal(r, &p); err != nil {
			skipped++
			continue
		}
		posts = append(posts, p)
	}
	if skipped > 0 {
		logger.Warn("Skipped malformed upstream posts", "path", path, "skipped", skipped)
	}
	return posts
}

func upstreamOutcome(err error) string {
	var upstreamErr *models.UpstreamError
	switch {
	case errors.As(err, &upstreamErr):
		return "http_" + strconv.Itoa(upstreamErr.Status)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
