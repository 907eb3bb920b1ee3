package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tarotshare/app/models/reading"
	"tarotshare/pkg/logger"

	"github.com/go-resty/resty/v2"
)

// 部署模板里的占位值，出现时视为未配置
const (
	placeholderURL = "your-project-id"
	placeholderKey = "your-anon-key-here"
)

// PostgRESTConfig PostgREST 连接配置
type PostgRESTConfig struct {
	URL     string        // 项目地址，如 https://xxx.supabase.co
	AnonKey string        // 匿名密钥
	Table   string        // 解读表名
	Timeout time.Duration // 单次请求超时
}

// PostgREST 通过 Supabase REST 接口访问远程表
type PostgREST struct {
	cfg    PostgRESTConfig
	client *resty.Client
}

// postgrestError PostgREST 错误响应体
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// NewPostgREST 创建 PostgREST 客户端
// 配置无效时仍然返回实例，Configured 返回 false，调用方据此降级
func NewPostgREST(cfg PostgRESTConfig) *PostgREST {
	if cfg.Table == "" {
		cfg.Table = "readings"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	cfg.AnonKey = strings.TrimSpace(cfg.AnonKey)

	p := &PostgREST{cfg: cfg}
	if !validCredentials(cfg.URL, cfg.AnonKey) {
		logger.WarnString("Remote", "PostgREST", "未配置远程存储地址或密钥，仅使用本地镜像")
		return p
	}

	p.client = resty.New().
		SetBaseURL(cfg.URL+"/rest/v1").
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Authorization", "Bearer "+cfg.AnonKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return p
}

// validCredentials 地址必须是 http(s) 且不是模板占位值
func validCredentials(rawURL, key string) bool {
	if rawURL == "" || key == "" {
		return false
	}
	if strings.Contains(rawURL, placeholderURL) || key == placeholderKey {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Configured 客户端初始化成功即可用
func (p *PostgREST) Configured() bool {
	return p != nil && p.client != nil
}

func (p *PostgREST) request(ctx context.Context) (*resty.Request, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}
	return p.client.R().SetContext(ctx), nil
}

func (p *PostgREST) tablePath() string {
	return "/" + p.cfg.Table
}

// Insert 写入完整记录，不要求返回内容
func (p *PostgREST) Insert(ctx context.Context, r *reading.Reading) error {
	req, err := p.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.
		SetHeader("Prefer", "return=minimal").
		SetBody(r).
		Post(p.tablePath())
	if err := p.check("insert", resp, err); err != nil {
		return err
	}

	logger.DebugString("Remote", "Insert", fmt.Sprintf("写入解读 %s", r.ID))
	return nil
}

// SelectByID 只查询公开记录，匿名密钥下行级安全策略也会做同样的过滤
func (p *PostgREST) SelectByID(ctx context.Context, id string) (*reading.Reading, error) {
	req, err := p.request(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := req.
		SetQueryParams(map[string]string{
			"id":        "eq." + id,
			"is_public": "eq.true",
			"select":    "*",
			"limit":     "1",
		}).
		Get(p.tablePath())
	if err := p.check("select", resp, err); err != nil {
		if ClassOf(err) == ClassNotFound {
			return nil, nil
		}
		return nil, err
	}

	var rows []*reading.Reading
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, &Error{Op: "select", Class: ClassSchema, Status: resp.StatusCode(), Message: "unexpected response body", Err: err}
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, nil
	}
	return rows[0], nil
}

// UpdateViewCount 只更新 view_count 一个字段
func (p *PostgREST) UpdateViewCount(ctx context.Context, id string, count int64) (bool, error) {
	req, err := p.request(ctx)
	if err != nil {
		return false, err
	}

	resp, err := req.
		SetHeader("Prefer", "return=representation").
		SetQueryParams(map[string]string{
			"id":     "eq." + id,
			"select": "id",
		}).
		SetBody(map[string]int64{"view_count": count}).
		Patch(p.tablePath())
	if err := p.check("update view count", resp, err); err != nil {
		return false, err
	}

	var rows []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		// 部分网关会忽略 Prefer 头返回空响应，按成功处理
		return true, nil
	}
	return len(rows) > 0, nil
}

// SweepExpired 调用服务端函数 cleanup_expired_readings
func (p *PostgREST) SweepExpired(ctx context.Context) (int, error) {
	body, err := p.rpc(ctx, "cleanup_expired_readings")
	if err != nil {
		return 0, err
	}

	var count int
	if err := json.Unmarshal(body, &count); err == nil {
		return count, nil
	}
	// 函数声明为 returns table 时返回的是数组
	var rows []map[string]int
	if err := json.Unmarshal(body, &rows); err == nil && len(rows) > 0 {
		for _, v := range rows[0] {
			return v, nil
		}
	}
	return 0, nil
}

// Stats 调用服务端函数 get_reading_stats
func (p *PostgREST) Stats(ctx context.Context) (*reading.Stats, error) {
	body, err := p.rpc(ctx, "get_reading_stats")
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var rows []reading.Stats
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, &Error{Op: "stats", Class: ClassSchema, Message: "unexpected response body", Err: err}
		}
		if len(rows) == 0 {
			return &reading.Stats{}, nil
		}
		return &rows[0], nil
	}

	var stats reading.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, &Error{Op: "stats", Class: ClassSchema, Message: "unexpected response body", Err: err}
	}
	return &stats, nil
}

// Probe 不带可见性过滤地查询最少的字段
// 匿名密钥下被行级安全策略挡住的记录同样查不到，结果只用于日志
func (p *PostgREST) Probe(ctx context.Context, id string) (*Visibility, error) {
	req, err := p.request(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := req.
		SetQueryParams(map[string]string{
			"id":     "eq." + id,
			"select": "id,is_public,expires_at,created_at,site_name",
			"limit":  "1",
		}).
		Get(p.tablePath())
	if err := p.check("probe", resp, err); err != nil {
		return nil, err
	}

	var rows []*Visibility
	if err := json.Unmarshal(resp.Body(), &rows); err != nil || len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (p *PostgREST) rpc(ctx context.Context, fn string) ([]byte, error) {
	req, err := p.request(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := req.
		SetBody(map[string]interface{}{}).
		Post("/rpc/" + fn)
	if err := p.check(fn, resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// check 把传输错误和非 2xx 响应转换为分类后的远程错误
func (p *PostgREST) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return Wrap(op, err)
	}
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	remoteErr := &Error{Op: op, Status: resp.StatusCode()}
	var body postgrestError
	if jsonErr := json.Unmarshal(resp.Body(), &body); jsonErr == nil && body.Code != "" {
		remoteErr.Code = body.Code
		remoteErr.Message = body.Message
		remoteErr.Details = body.Details
		remoteErr.Hint = body.Hint
		remoteErr.Class = ClassifyCode(body.Code)
	}
	if remoteErr.Class == "" || remoteErr.Class == ClassUnknown {
		remoteErr.Class = classifyStatus(resp.StatusCode())
	}
	if remoteErr.Message == "" {
		remoteErr.Message = http.StatusText(resp.StatusCode())
	}
	return remoteErr
}
