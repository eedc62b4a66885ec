// Package jobfile 把作业描述（.jacket 文件或等价的 JSON）转换为 job.Session。
package jobfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ByLCY/jacket/artwork"
	"github.com/ByLCY/jacket/dsl"
	"github.com/ByLCY/jacket/job"
	"github.com/ByLCY/jacket/layout"
)

var (
	ErrSyntax  = errors.New("作业文件语法错误")
	ErrInvalid = errors.New("作业描述无效")
)

// Spec 是与格式无关的作业描述。可选部分为空时使用会话默认值。
type Spec struct {
	Name     string                `json:"name"`
	Books    []layout.BookSpec     `json:"books"`
	Caption  string                `json:"caption,omitempty"`
	Layout   *LayoutSpec           `json:"layout,omitempty"`
	Viewport *layout.ViewportState `json:"viewport,omitempty"`
	Artwork  *ArtworkSpec          `json:"artwork,omitempty"`
}

// LayoutSpec 只覆盖给出的字段。
type LayoutSpec struct {
	GapMm        *float64 `json:"gapMm,omitempty"`
	WrapMarginMm *float64 `json:"wrapMarginMm,omitempty"`
	TopMarginMm  *float64 `json:"topMarginMm,omitempty"`
}

// ArtworkSpec 指定原图：Data 优先，其次 Src（http(s) 地址或文件路径）。
type ArtworkSpec struct {
	Src  string `json:"src,omitempty"`
	Name string `json:"name,omitempty"`
	Data []byte `json:"data,omitempty"`
}

// Options 控制作业的装载。
type Options struct {
	BaseDir  string // 解析相对原图路径；LoadFile 默认取文件所在目录
	Config   job.Config
	Measurer layout.Measurer
	Logger   *zap.Logger
	Fetcher  *artwork.Fetcher // 原图为 http(s) 地址时使用
	// RemoteOnly 禁止从本地文件读取原图，供 HTTP 服务使用。
	RemoteOnly bool
}

// LoadFile 读取并装载作业文件。
func LoadFile(ctx context.Context, path string, opts Options) (*job.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开作业文件失败: %w", err)
	}
	defer f.Close()
	if opts.BaseDir == "" {
		opts.BaseDir = filepath.Dir(path)
	}
	return Load(ctx, path, f, opts)
}

// Load 解析作业描述并构建会话。原图（如果有）在返回前加载完成。
func Load(ctx context.Context, filename string, r io.Reader, opts Options) (*job.Session, error) {
	doc, err := dsl.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	spec, err := FromDSL(doc)
	if err != nil {
		return nil, err
	}
	return Open(ctx, spec, opts)
}

// FromDSL 把语法树转换为 Spec。重复出现的块以最后一个为准。
func FromDSL(doc *dsl.Job) (Spec, error) {
	spec := Spec{Name: doc.Name}
	for _, e := range doc.Entries {
		switch {
		case e.Book != nil:
			b, err := bookSpec(e.Book)
			if err != nil {
				return spec, err
			}
			spec.Books = append(spec.Books, b)
		case e.Caption != nil:
			spec.Caption = string(*e.Caption)
		case e.Viewport != nil:
			v := layout.DefaultViewport()
			if err := applyNumbers(e.Viewport, map[string]*float64{"zoom": &v.ZoomPercent, "offset-x": &v.OffsetXPercent, "offset-y": &v.OffsetYPercent}); err != nil {
				return spec, err
			}
			spec.Viewport = &v
		case e.Layout != nil:
			ls, err := layoutSpec(e.Layout)
			if err != nil {
				return spec, err
			}
			spec.Layout = ls
		case e.Artwork != nil:
			p, ok := e.Artwork.Get("src")
			if !ok {
				return spec, fmt.Errorf("%w: artwork 缺少 src", ErrInvalid)
			}
			spec.Artwork = &ArtworkSpec{Src: p.Value.Raw()}
		}
	}
	return spec, nil
}

// Open 按 Spec 构建会话：书籍、间距、标题、原图，最后是视口。
// 视口放在原图之后设置，才能按原图的范围收敛。失败时会话已关闭。
func Open(ctx context.Context, spec Spec, opts Options) (*job.Session, error) {
	if len(spec.Books) == 0 {
		return nil, fmt.Errorf("%w: 作业 %s 至少需要一本书", ErrInvalid, spec.Name)
	}
	s, err := job.New(job.Options{Name: spec.Name, Config: opts.Config, Measurer: opts.Measurer, Logger: opts.Logger, Books: spec.Books})
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	if spec.Layout != nil {
		cfg := s.Config().Pipeline
		gap, m := cfg.GapMm, cfg.Margins
		override(&gap, spec.Layout.GapMm)
		override(&m.WrapMarginMm, spec.Layout.WrapMarginMm)
		override(&m.TopMarginMm, spec.Layout.TopMarginMm)
		if err := s.SetMargins(gap, m); err != nil {
			return nil, err
		}
	}
	if spec.Caption != "" {
		if missing := s.SetCaption(spec.Caption); len(missing) > 0 && opts.Logger != nil {
			opts.Logger.Warn("标题模板中有无法解析的占位符", zap.Strings("placeholders", missing))
		}
	}
	if spec.Artwork != nil {
		if err := loadArtwork(ctx, s, spec.Artwork, opts); err != nil {
			return nil, err
		}
	}
	if spec.Viewport != nil {
		// JSON 里省略的 zoom 按默认缩放处理，与作业文件的 viewport 块一致
		v := *spec.Viewport
		if v.ZoomPercent == 0 {
			v.ZoomPercent = layout.DefaultViewport().ZoomPercent
		}
		s.SetViewport(v)
	}
	ok = true
	return s, nil
}

func override(dst, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func bookSpec(e *dsl.BookEntry) (layout.BookSpec, error) {
	b := layout.BookSpec{ID: e.ID}
	for _, p := range e.Block.Properties {
		raw := p.Value.Raw()
		var err error
		switch p.Key {
		case "spine":
			b.SpineWidthMm, err = lengthMm(raw)
		case "cover":
			b.CoverWidthMm, err = lengthMm(raw)
		case "height":
			b.HeightMm, err = lengthMm(raw)
		case "color":
			if _, cerr := layout.ParseColor(raw); cerr != nil {
				err = cerr
			}
			b.ColorToken = raw
		case "short":
			b.ShortText = raw
		case "small":
			b.SmallText = raw
		case "isbn":
			b.ISBN = raw
		default:
			err = fmt.Errorf("未知的书籍属性 %q", p.Key)
		}
		if err != nil {
			return b, fmt.Errorf("%w: %s: %w", ErrInvalid, p.Pos, err)
		}
	}
	return b, nil
}

func layoutSpec(block *dsl.Block) (*LayoutSpec, error) {
	var gap, wrap, top float64
	ls := &LayoutSpec{}
	targets := map[string]*float64{"gap": &gap, "wrap": &wrap, "top": &top}
	if err := applyLengths(block, targets); err != nil {
		return nil, err
	}
	for _, p := range block.Properties {
		switch p.Key {
		case "gap":
			ls.GapMm = &gap
		case "wrap":
			ls.WrapMarginMm = &wrap
		case "top":
			ls.TopMarginMm = &top
		}
	}
	return ls, nil
}

func loadArtwork(ctx context.Context, s *job.Session, a *ArtworkSpec, opts Options) error {
	var results <-chan job.LoadResult
	switch {
	case len(a.Data) > 0:
		name := a.Name
		if name == "" {
			name = filepath.Base(a.Src)
		}
		results = s.LoadArtwork(a.Data, name)
	case strings.HasPrefix(a.Src, "http://") || strings.HasPrefix(a.Src, "https://"):
		fetcher := opts.Fetcher
		if fetcher == nil {
			fetcher = artwork.NewFetcher(artwork.DefaultFetchConfig(), nil, opts.Logger)
		}
		results = s.LoadArtworkRef(ctx, fetcher, a.Src)
	case a.Src == "":
		return fmt.Errorf("%w: 原图缺少 src 或 data", ErrInvalid)
	case opts.RemoteOnly:
		return fmt.Errorf("%w: 原图只能是 http(s) 地址: %q", ErrInvalid, a.Src)
	default:
		path := a.Src
		if !filepath.IsAbs(path) && opts.BaseDir != "" {
			path = filepath.Join(opts.BaseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("读取原图失败: %w", err)
		}
		results = s.LoadArtwork(data, filepath.Base(path))
	}
	select {
	case res := <-results:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func lengthMm(raw string) (float64, error) {
	l, ok := layout.ParseLength(raw)
	if !ok {
		return 0, fmt.Errorf("%q 不是合法的长度", raw)
	}
	return l.ToMM(), nil
}

func applyLengths(b *dsl.Block, targets map[string]*float64) error {
	return apply(b, targets, lengthMm)
}

func applyNumbers(b *dsl.Block, targets map[string]*float64) error {
	return apply(b, targets, func(raw string) (float64, error) {
		f, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("%q 不是合法的数值", raw)
		}
		return f, nil
	})
}

func apply(b *dsl.Block, targets map[string]*float64, parse func(string) (float64, error)) error {
	for _, p := range b.Properties {
		dst, ok := targets[p.Key]
		if !ok {
			return fmt.Errorf("%w: %s: 未知属性 %q", ErrInvalid, p.Pos, p.Key)
		}
		v, err := parse(p.Value.Raw())
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, p.Pos, err)
		}
		*dst = v
	}
	return nil
}
