package artwork

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrFetch 表示按引用获取原图失败。
	ErrFetch = errors.New("artwork fetch failed")
	// ErrHostNotAllowed 表示引用的主机不在允许列表中，请求不会发出。
	ErrHostNotAllowed = fmt.Errorf("%w: host not allowed", ErrFetch)
)

// FetchConfig 配置按引用获取。
// AllowedHosts 非空时只访问列出的主机；"*.example.com" 匹配其所有子域名。
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"fetch_timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	MaxBytes     int64         `mapstructure:"max_bytes"`
	AllowedHosts []string      `mapstructure:"allowed_hosts"`
}

// DefaultFetchConfig 返回默认的获取参数。
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{Timeout: 20 * time.Second, CacheTTL: 30 * time.Minute, MaxBytes: 64 << 20}
}

// Fetcher 按引用（例如目录条目的图片地址）获取原图字节。
// 同一引用的并发请求合并为一次，结果按 TTL 缓存。
type Fetcher struct {
	client *http.Client
	cfg    FetchConfig
	cache  *cache.Cache
	group  singleflight.Group
	logger *zap.Logger
}

// NewFetcher 创建获取器。client 为空时使用带超时的默认客户端。
func NewFetcher(cfg FetchConfig, client *http.Client, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchConfig().Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultFetchConfig().MaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	f := &Fetcher{
		cfg:    cfg,
		cache:  cache.New(ttl, 10*time.Minute),
		logger: logger.Named("artwork-fetch"),
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	// 重定向同样受允许列表约束；复制一份，不改调用方的客户端
	c := *client
	if c.CheckRedirect == nil {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return f.checkHost(req.URL)
		}
	}
	f.client = &c
	return f
}

// Fetch 返回引用对应的原始字节与用于类型判断的名称。
// 同一引用的调用共享一次下载；某个调用方取消只影响它自己。
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	name := path.Base(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return nil, name, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if err := f.checkHost(u); err != nil {
		f.logger.Warn("拒绝获取原图", zap.String("ref", ref), zap.Error(err))
		return nil, name, err
	}
	if v, ok := f.cache.Get(ref); ok {
		return v.([]byte), name, nil
	}
	flightCtx := context.WithoutCancel(ctx)
	ch := f.group.DoChan(ref, func() (any, error) {
		data, err := f.download(flightCtx, ref)
		if err != nil {
			return nil, err
		}
		f.cache.SetDefault(ref, data)
		return data, nil
	})
	select {
	case <-ctx.Done():
		return nil, name, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			f.logger.Warn("获取原图失败", zap.String("ref", ref), zap.Error(res.Err))
			return nil, name, res.Err
		}
		f.logger.Debug("获取原图完成", zap.String("ref", ref), zap.Bool("shared", res.Shared))
		return res.Val.([]byte), name, nil
	}
}

func (f *Fetcher) checkHost(u *url.URL) error {
	if len(f.cfg.AllowedHosts) == 0 {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range f.cfg.AllowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if suffix, ok := strings.CutPrefix(allowed, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return nil
			}
			continue
		}
		if host == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrHostNotAllowed, u.Host)
}

// FetchAsset 获取并解码。
func (f *Fetcher) FetchAsset(ctx context.Context, ref string, opts ...Option) (*Asset, error) {
	data, name, err := f.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return Accept(data, name, opts...)
}

func (f *Fetcher) download(ctx context.Context, ref string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrHostNotAllowed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, ref, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFetch, ref, f.cfg.MaxBytes)
	}
	return data, nil
}
