// Package srv 提供预览与打样的 HTTP 接口。
package srv

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/ByLCY/jacket/artwork"
	"github.com/ByLCY/jacket/job"
	"github.com/ByLCY/jacket/layout"
	"github.com/ByLCY/jacket/proof"
	"github.com/ByLCY/jacket/renderer"
)

// Engine 是服务所需的渲染与测量能力；canvas 渲染器同时满足三者。
type Engine interface {
	renderer.Renderer
	renderer.SceneRenderer
	layout.Measurer
}

// Options 配置服务。
type Options struct {
	Engine            Engine
	Job               job.Config
	Proof             proof.Config
	Fetch             artwork.FetchConfig
	RequestsPerMinute int   // 每个 IP 的导出与预览请求数，0 表示不限
	MaxBodyBytes      int64 // 0 表示不限
	ThumbnailPx       int
	Logger            *zap.Logger
}

// Server 无状态：每个请求构建一个会话，响应后关闭。
// 按引用获取的原图在请求之间共享缓存。
type Server struct {
	router     chi.Router
	opts       Options
	logger     *zap.Logger
	fetcher    *artwork.Fetcher
	compositor *proof.Compositor
}

// New 创建服务并注册路由。
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:     chi.NewRouter(),
		opts:       opts,
		logger:     logger,
		fetcher:    artwork.NewFetcher(opts.Fetch, nil, logger.Named("fetch")),
		compositor: proof.NewCompositor(opts.Proof, logger.Named("proof")),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		if s.opts.RequestsPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.opts.RequestsPerMinute, time.Minute))
		}
		if s.opts.MaxBodyBytes > 0 {
			r.Use(middleware.RequestSize(s.opts.MaxBodyBytes))
		}
		r.Post("/preview", s.handlePreview)
		r.Post("/proof", s.handleProof)
	})
}

// requestLogger 用 zap 记录每个请求的方法、路径、状态与耗时。
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
