// Package proof 为每本书生成一页打样：同一个原图摆放按书重新投影到打印尺度。
package proof

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ByLCY/jacket/job"
	"github.com/ByLCY/jacket/layout"
	"github.com/ByLCY/jacket/renderer"
)

// Config 描述打样页面。
type Config struct {
	PageWidthIn  float64 `mapstructure:"page_width_in"`
	PageHeightIn float64 `mapstructure:"page_height_in"`
	PrintDPI     float64 `mapstructure:"print_dpi"`
	GuideWidthMm float64 `mapstructure:"guide_width_mm"`
	Creator      string  `mapstructure:"creator"`
}

// DefaultConfig 为 17×11 英寸横向、300dpi。
func DefaultConfig() Config {
	return Config{PageWidthIn: 17, PageHeightIn: 11, PrintDPI: 300, GuideWidthMm: 0.25, Creator: "jacket"}
}

// PageWidthMm 返回页宽。
func (c Config) PageWidthMm() float64 { return layout.InchesToMm(c.PageWidthIn) }

// PageHeightMm 返回页高。
func (c Config) PageHeightMm() float64 { return layout.InchesToMm(c.PageHeightIn) }

// PageScale 返回 pageScale = 目标打印像素宽 / 页宽在屏幕基准下的像素宽，
// 即从屏幕几何放大到打印分辨率的倍数。
func (c Config) PageScale() float64 {
	target := c.PageWidthIn * c.PrintDPI
	return target / layout.MmToPx(c.PageWidthMm())
}

// Compositor 生成打样文档。
type Compositor struct {
	cfg    Config
	logger *zap.Logger
}

// NewCompositor 创建打样合成器。
func NewCompositor(cfg Config, logger *zap.Logger) *Compositor {
	def := DefaultConfig()
	if cfg.PageWidthIn <= 0 || cfg.PageHeightIn <= 0 {
		cfg.PageWidthIn, cfg.PageHeightIn = def.PageWidthIn, def.PageHeightIn
	}
	if cfg.PrintDPI <= 0 {
		cfg.PrintDPI = def.PrintDPI
	}
	if cfg.GuideWidthMm <= 0 {
		cfg.GuideWidthMm = def.GuideWidthMm
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compositor{cfg: cfg, logger: logger.Named("proof")}
}

// Config 返回页面参数。
func (c *Compositor) Config() Config { return c.cfg }

// PageTransform 返回书堆像素坐标到某本书打样页（毫米）的映射：
// 先平移 centerShift = stackW/2 − book.centerPx，使该书书脊位于书堆中心，
// 再以 pageScale 放大到打印像素，最后按打印分辨率换算为毫米并居中到页面。
func (c *Compositor) PageTransform(stack layout.StackGeometry, book layout.BookPlace) layout.Affine {
	centerShift := stack.WidthPx/2 - book.CenterPx()
	pxToMm := layout.MmPerInch / c.cfg.PrintDPI
	scale := c.cfg.PageScale() * pxToMm
	return layout.Affine{
		Scale: scale,
		TX:    c.cfg.PageWidthMm()/2 + (centerShift-stack.WidthPx/2)*scale,
		TY:    c.cfg.PageHeightMm()/2 - stack.HeightPx/2*scale,
	}
}

// Compose 为快照中的每本书生成一页。页数恒等于书的数量。
func (c *Compositor) Compose(snap *job.Snapshot) (*layout.Document, error) {
	if snap == nil {
		return nil, errors.New("打样快照为空")
	}
	frame := snap.Frame
	if len(frame.Stack.Books) != len(snap.Books) {
		return nil, fmt.Errorf("书堆几何与书籍列表不一致: %d vs %d", len(frame.Stack.Books), len(snap.Books))
	}
	doc := &layout.Document{
		Resources: snap.Resources(),
		Meta: layout.DocumentMeta{
			Title:   snap.Name,
			Subject: fmt.Sprintf("%d book jacket proof(s)", len(snap.Books)),
			Creator: c.cfg.Creator,
		},
	}
	for _, b := range snap.Books {
		if b.ISBN != "" {
			doc.Meta.Keywords = append(doc.Meta.Keywords, b.ISBN)
		}
	}
	for _, place := range frame.Stack.Books {
		doc.Pages = append(doc.Pages, c.page(frame, place))
	}
	c.logger.Debug("打样合成完成", zap.Int("pages", len(doc.Pages)), zap.Float64("page_scale", c.cfg.PageScale()))
	return doc, nil
}

func (c *Compositor) page(frame layout.Frame, book layout.BookPlace) layout.Page {
	a := c.PageTransform(frame.Stack, book)
	p := layout.Page{
		BookID: book.ID,
		Width:  c.cfg.PageWidthMm(),
		Height: c.cfg.PageHeightMm(),
		Scale:  c.cfg.PageScale(),
		DPI:    c.cfg.PrintDPI,
	}
	if img, ok := frame.Artwork(); ok {
		p.Images = append(p.Images, a.ProjectImage(img))
	}
	// 其他书的剪影保留在版面中用于定位，但不绘制；本书只画轮廓
	for _, r := range frame.Spines {
		r = a.ProjectRect(r)
		r.StrokeWidth = c.cfg.GuideWidthMm
		if r.BookID == book.ID {
			r.FillColor = nil
			r.Opacity = 0
		} else {
			r.Hidden = true
		}
		p.Rects = append(p.Rects, r)
	}
	p.Lines = c.guides(frame.Stack, book, a)
	for _, t := range frame.Texts {
		if t.BookID != "" && t.BookID != book.ID {
			continue
		}
		p.Texts = append(p.Texts, a.ProjectText(t))
	}
	return p
}

// guides 生成书脊折线、封面裁切线与顶边线（毫米）。
func (c *Compositor) guides(stack layout.StackGeometry, book layout.BookPlace, a layout.Affine) []layout.Line {
	cx, _ := a.Point(book.CenterPx(), 0)
	_, top := a.Point(0, stack.TopPx(book))
	_, bottom := a.Point(0, stack.HeightPx)
	halfSpine := book.SpineWidthMm / 2
	w := c.cfg.GuideWidthMm
	vertical := func(kind string, x float64, col layout.Color, dashed bool) layout.Line {
		return layout.Line{Kind: kind, X1: x, Y1: top, X2: x, Y2: bottom, Color: col, Width: w, Dashed: dashed}
	}
	return []layout.Line{
		vertical("spine", cx-halfSpine, layout.ColorGuide, false),
		vertical("spine", cx+halfSpine, layout.ColorGuide, false),
		vertical("cover", cx-halfSpine-book.CoverWidthMm, layout.ColorBleed, true),
		vertical("cover", cx+halfSpine+book.CoverWidthMm, layout.ColorBleed, true),
		{Kind: "top", X1: cx - halfSpine - book.CoverWidthMm, Y1: top, X2: cx + halfSpine + book.CoverWidthMm, Y2: top, Color: layout.ColorGuide, Width: w, Dashed: true},
		{Kind: "top", X1: cx - halfSpine - book.CoverWidthMm, Y1: bottom, X2: cx + halfSpine + book.CoverWidthMm, Y2: bottom, Color: layout.ColorGuide, Width: w, Dashed: true},
	}
}

// Exporter 把合成器与渲染器组合为 job.Exporter。
type Exporter struct {
	Compositor *Compositor
	Renderer   renderer.Renderer
}

var _ job.Exporter = (*Exporter)(nil)

// Export 合成并编码打样文档。
func (e *Exporter) Export(ctx context.Context, snap *job.Snapshot) ([]byte, error) {
	doc, err := e.Compositor.Compose(snap)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.Renderer.Render(doc)
}
