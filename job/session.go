// Package job 管理一个书衣作业的会话状态：书籍列表、原图、视口与导出。
package job

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ByLCY/jacket/artwork"
	"github.com/ByLCY/jacket/binding"
	"github.com/ByLCY/jacket/layout"
)

// Config 是会话的静态参数。
type Config struct {
	MaxBooks int                   `json:"maxBooks"`
	Limits   layout.PhysicalLimits `json:"limits"`
	Pipeline layout.PipelineConfig `json:"pipeline"`
	Advice   artwork.AdviceConfig  `json:"advice"`
}

// DefaultConfig 返回默认会话参数。
func DefaultConfig() Config {
	return Config{
		MaxBooks: 50,
		Limits:   layout.DefaultPhysicalLimits,
		Pipeline: layout.DefaultPipelineConfig(),
		Advice:   artwork.DefaultAdviceConfig(),
	}
}

// DefaultBook 是新建作业时的第一本书。
func DefaultBook() layout.BookSpec {
	return layout.BookSpec{SpineWidthMm: 30, CoverWidthMm: 150, HeightMm: 210, ColorToken: "#A83232"}
}

// Options 用于创建会话。
type Options struct {
	Name     string
	Config   Config
	Measurer layout.Measurer
	Logger   *zap.Logger
	// Books 为空时使用 DefaultBook。
	Books []layout.BookSpec
}

// Session 是一个作业的全部可变状态。所有派生计算同步完成；
// 唯一的异步边界是原图解码与导出。方法可以并发调用。
type Session struct {
	id     string
	name   string
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	pipeline *layout.Pipeline
	ids      idAllocator
	caption  string // 未替换的模板
	asset    *artwork.Asset
	advisory *artwork.Advisory

	gen      atomic.Uint64 // 原图加载代数，较新的加载使旧的结果失效
	closed   atomic.Bool
	inflight sync.WaitGroup
	export   *semaphore.Weighted
}

// New 创建会话。初始书籍逐一校验，任一不合法则返回校验错误。
func New(opts Options) (*Session, error) {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.MaxBooks <= 0 {
		cfg.MaxBooks = def.MaxBooks
	}
	if cfg.Limits == (layout.PhysicalLimits{}) {
		cfg.Limits = def.Limits
	}
	if cfg.Pipeline == (layout.PipelineConfig{}) {
		cfg.Pipeline = def.Pipeline
	}
	if cfg.Advice == (artwork.AdviceConfig{}) {
		cfg.Advice = def.Advice
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:       uuid.NewString(),
		name:     opts.Name,
		cfg:      cfg,
		pipeline: layout.NewPipeline(cfg.Pipeline, opts.Measurer),
		ids:      idAllocator{prefix: "book-"},
		export:   semaphore.NewWeighted(1),
	}
	s.logger = logger.Named("job").With(zap.String("job_id", s.id), zap.String("job", s.name))

	books := opts.Books
	if len(books) == 0 {
		books = []layout.BookSpec{DefaultBook()}
	}
	if len(books) > cfg.MaxBooks {
		return nil, &ValidationError{Field: "books", Message: fmt.Sprintf("a job can hold at most %d books", cfg.MaxBooks), Err: ErrBookCap}
	}
	list := make([]layout.BookSpec, 0, len(books))
	for _, b := range books {
		b, err := s.admit(b, list)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	s.pipeline.SetBooks(list)
	return s, nil
}

// ID 返回会话标识。
func (s *Session) ID() string { return s.id }

// Name 返回作业名。
func (s *Session) Name() string { return s.name }

// Config 返回会话参数。
func (s *Session) Config() Config { return s.cfg }

// admit 校验一本新书并分配 ID。调用方持有锁或在构造阶段。
func (s *Session) admit(b layout.BookSpec, existing []layout.BookSpec) (layout.BookSpec, error) {
	if err := validateBook(b, s.cfg.Limits); err != nil {
		return b, err
	}
	taken := func(id string) bool {
		for _, e := range existing {
			if e.ID == id {
				return true
			}
		}
		return false
	}
	if b.ID == "" {
		b.ID = s.ids.Next(taken)
	} else if taken(b.ID) {
		return b, &ValidationError{Field: "id", BookID: b.ID, Message: fmt.Sprintf("book id %q is already used", b.ID)}
	}
	return b, nil
}

func validateBook(b layout.BookSpec, limits layout.PhysicalLimits) error {
	if err := b.Validate(limits); err != nil {
		var de *layout.DimensionError
		if errors.As(err, &de) {
			return &ValidationError{Field: de.Field, BookID: b.ID, Message: de.Message, Err: err}
		}
		return &ValidationError{BookID: b.ID, Message: err.Error(), Err: err}
	}
	return nil
}

// Books 返回当前书籍列表副本。
func (s *Session) Books() []layout.BookSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.Books()
}

// AddBook 追加一本书并返回其 ID。达到上限时拒绝。
func (s *Session) AddBook(b layout.BookSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	books := s.pipeline.Books()
	if len(books) >= s.cfg.MaxBooks {
		return "", &ValidationError{Field: "books", Message: fmt.Sprintf("a job can hold at most %d books", s.cfg.MaxBooks), Err: ErrBookCap}
	}
	b, err := s.admit(b, books)
	if err != nil {
		return "", err
	}
	s.pipeline.SetBooks(append(books, b))
	s.refreshCaption()
	s.logger.Debug("添加书籍", zap.String("book_id", b.ID), zap.Int("books", len(books)+1))
	return b.ID, nil
}

// RemoveBook 删除一本书；不能删除最后一本。
func (s *Session) RemoveBook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	books := s.pipeline.Books()
	idx := indexOf(books, id)
	if idx < 0 {
		return &ValidationError{Field: "id", BookID: id, Message: fmt.Sprintf("no book with id %q", id), Err: ErrUnknownBook}
	}
	if len(books) == 1 {
		return &ValidationError{Field: "books", BookID: id, Message: "the last book cannot be removed", Err: ErrLastBook}
	}
	s.pipeline.SetBooks(append(books[:idx], books[idx+1:]...))
	s.refreshCaption()
	s.logger.Debug("删除书籍", zap.String("book_id", id))
	return nil
}

// UpdateBook 以函数修改一本书。修改后的书不合法时拒绝，原值保持不变。
func (s *Session) UpdateBook(id string, mutate func(*layout.BookSpec)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	books := s.pipeline.Books()
	idx := indexOf(books, id)
	if idx < 0 {
		return &ValidationError{Field: "id", BookID: id, Message: fmt.Sprintf("no book with id %q", id), Err: ErrUnknownBook}
	}
	next := books[idx]
	mutate(&next)
	next.ID = id
	if err := validateBook(next, s.cfg.Limits); err != nil {
		return err
	}
	books[idx] = next
	s.pipeline.SetBooks(books)
	s.refreshCaption()
	return nil
}

// SetBookField 按字段名更新一本书，值为用户输入的字符串（例如 "210mm"）。
// 字段：spine、cover、height、color、short、small、isbn。
func (s *Session) SetBookField(id, field, value string) error {
	var apply func(*layout.BookSpec)
	name := strings.ToLower(strings.TrimSpace(field))
	switch name {
	case "spine", "cover", "height":
		mm, err := parseMm(value)
		if err != nil {
			return &ValidationError{Field: name, BookID: id, Message: err.Error()}
		}
		apply = func(b *layout.BookSpec) {
			switch name {
			case "spine":
				b.SpineWidthMm = mm
			case "cover":
				b.CoverWidthMm = mm
			default:
				b.HeightMm = mm
			}
		}
	case "color":
		if _, err := layout.ParseColor(value); err != nil {
			return &ValidationError{Field: name, BookID: id, Message: err.Error()}
		}
		apply = func(b *layout.BookSpec) { b.ColorToken = value }
	case "short":
		apply = func(b *layout.BookSpec) { b.ShortText = value }
	case "small":
		apply = func(b *layout.BookSpec) { b.SmallText = value }
	case "isbn":
		apply = func(b *layout.BookSpec) { b.ISBN = strings.TrimSpace(value) }
	default:
		return &ValidationError{Field: field, BookID: id, Message: fmt.Sprintf("unknown field %q", field)}
	}
	err := s.UpdateBook(id, apply)
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Err != nil && !errors.Is(ve.Err, ErrUnknownBook) {
		ve.Field = name
	}
	return err
}

// parseMm 接受带单位（mm/cm/in/pt/px）或不带单位（视为 mm）的长度。
func parseMm(value string) (float64, error) {
	v := strings.TrimSpace(value)
	if l, ok := layout.ParseLength(v); ok {
		return l.ToMM(), nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a length", value)
	}
	return f, nil
}

func indexOf(books []layout.BookSpec, id string) int {
	for i, b := range books {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// SetCaption 设置共享标题模板，支持 ${job.name}、${book.isbn} 等占位符。
// 返回无法解析的占位符，仅作提示。
func (s *Session) SetCaption(template string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caption = template
	s.refreshCaption()
	return binding.Unresolved(template, binding.CaptionData(s.name, s.pipeline.Books()))
}

// Caption 返回标题模板。
func (s *Session) Caption() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caption
}

// refreshCaption 在书籍或模板变化后重新替换标题。调用方持有锁。
func (s *Session) refreshCaption() {
	s.pipeline.SetCaption(binding.Interpolate(s.caption, binding.CaptionData(s.name, s.pipeline.Books())))
}

// SetMargins 更新书间距与包边余量，视口随之重新收敛。
func (s *Session) SetMargins(gapMm float64, m layout.Margins) error {
	if gapMm < 0 || m.WrapMarginMm < 0 || m.TopMarginMm < 0 {
		return &ValidationError{Field: "margins", Message: "gap and margins cannot be negative"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.SetMargins(gapMm, m)
	return nil
}

// SetViewport 存储收敛后的视口并返回实际生效的值。
func (s *Session) SetViewport(v layout.ViewportState) layout.ViewportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.SetViewport(v)
}

// SetZoom 修改缩放，保留偏移。
func (s *Session) SetZoom(percent float64) layout.ViewportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.pipeline.Viewport()
	v.ZoomPercent = percent
	return s.pipeline.SetViewport(v)
}

// SetOffset 修改横向与纵向偏移，保留缩放。
func (s *Session) SetOffset(xPercent, yPercent float64) layout.ViewportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.pipeline.Viewport()
	v.OffsetXPercent, v.OffsetYPercent = xPercent, yPercent
	return s.pipeline.SetViewport(v)
}

// Viewport 返回当前视口与其范围。
func (s *Session) Viewport() (layout.ViewportState, layout.ViewportBounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.pipeline.Config()
	return s.pipeline.Viewport().Clamp(s.pipeline.Geometry(), s.pipeline.Fit(), cfg.Margins)
}

// Frame 返回当前画面（书堆像素坐标）。
func (s *Session) Frame() (layout.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

func (s *Session) frameLocked() (layout.Frame, error) {
	f, err := s.pipeline.Frame()
	if err != nil {
		return f, err
	}
	if s.asset != nil {
		f.ArtworkName = ArtworkResourceName
	}
	if s.advisory != nil {
		f.Warnings = append(f.Warnings, s.advisory.Warning())
	}
	return f, nil
}

// Stats 返回流水线的重算统计。
func (s *Session) Stats() layout.PipelineStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.Stats()
}

// Close 结束会话：正在进行的解码结果被丢弃，原图句柄释放。可重复调用。
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed.Swap(true) {
		s.mu.Unlock()
		return
	}
	s.gen.Add(1)
	s.mu.Unlock()
	s.inflight.Wait()
	s.mu.Lock()
	asset := s.asset
	s.asset = nil
	s.mu.Unlock()
	if asset != nil {
		asset.Handle().Release()
	}
	s.logger.Debug("会话关闭")
}

// idAllocator 为会话内的书分配稳定且唯一的 ID。
type idAllocator struct {
	prefix string
	next   int
}

// Next 返回下一个未被占用的 ID。
func (a *idAllocator) Next(taken func(string) bool) string {
	for {
		a.next++
		id := a.prefix + strconv.Itoa(a.next)
		if taken == nil || !taken(id) {
			return id
		}
	}
}
