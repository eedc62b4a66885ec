package layout

import (
	"fmt"
)

// FieldFonts 指定每个文本字段使用的字体。
type FieldFonts struct {
	Caption    FontResource `json:"caption"`
	SpineTitle FontResource `json:"spineTitle"`
	SpineSmall FontResource `json:"spineSmall"`
}

// PipelineConfig 是流水线的静态参数。
type PipelineConfig struct {
	GapMm      float64    `json:"gapMm"`
	Margins    Margins    `json:"margins"`
	Caption    TextLimits `json:"caption"`
	SpineTitle TextLimits `json:"spineTitle"`
	SpineSmall TextLimits `json:"spineSmall"`
	Fonts      FieldFonts `json:"fonts"`
}

// PipelineStats 统计各阶段实际重算的次数。
type PipelineStats struct {
	Geometry  int
	Fit       int
	Transform int
	Text      int
}

type fitKey struct {
	booksRev uint64
	gap      float64
	art      ArtworkSize
	margins  Margins
}

type transformKey struct {
	fit   fitKey
	state ViewportState
}

type textKey struct {
	text   string
	box    BoxSize
	limits TextLimits
	font   FontResource
}

type textEntry struct {
	key    textKey
	layout TextLayout
}

// Pipeline 把 Geometry → Fit → Transform → 文本排版组织成记忆化的纯函数链，
// 每一阶段只在其声明的输入变化时重算。存储的视口在任一依赖变化时重新收敛。
// Pipeline 不是并发安全的，调用方负责串行化。
type Pipeline struct {
	cfg      PipelineConfig
	measurer Measurer

	books    []BookSpec
	booksRev uint64
	art      ArtworkSize
	state    ViewportState
	caption  string

	geo struct {
		valid bool
		rev   uint64
		gap   float64
		v     StackGeometry
	}
	fit struct {
		valid bool
		key   fitKey
		v     ArtworkFit
	}
	tr struct {
		valid bool
		key   transformKey
		v     ArtworkTransform
	}
	texts map[string]textEntry
	stats PipelineStats
}

// NewPipeline 创建流水线。measurer 为空时文本阶段会报错。
func NewPipeline(cfg PipelineConfig, m Measurer) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		measurer: m,
		state:    DefaultViewport(),
		texts:    map[string]textEntry{},
	}
}

// Config 返回当前配置。
func (p *Pipeline) Config() PipelineConfig { return p.cfg }

// Stats 返回各阶段的重算次数。
func (p *Pipeline) Stats() PipelineStats { return p.stats }

// SetBooks 替换书籍列表（复制一份）并重新收敛视口。
func (p *Pipeline) SetBooks(books []BookSpec) {
	p.books = append([]BookSpec(nil), books...)
	p.booksRev++
	p.reclamp()
}

// SetArtwork 更新原图尺寸；零值表示没有原图。
func (p *Pipeline) SetArtwork(size ArtworkSize) {
	if p.art == size {
		return
	}
	p.art = size
	p.reclamp()
}

// SetMargins 更新包边余量与书间距。
func (p *Pipeline) SetMargins(gapMm float64, m Margins) {
	if p.cfg.GapMm == gapMm && p.cfg.Margins == m {
		return
	}
	p.cfg.GapMm = gapMm
	p.cfg.Margins = m
	p.reclamp()
}

// SetViewport 存储收敛后的视口并返回它。
func (p *Pipeline) SetViewport(s ViewportState) ViewportState {
	p.state = s
	p.reclamp()
	return p.state
}

// Viewport 返回当前（已收敛的）视口。
func (p *Pipeline) Viewport() ViewportState { return p.state }

// SetCaption 更新共享标题文本（已完成模板替换）。
func (p *Pipeline) SetCaption(text string) { p.caption = text }

// Books 返回书籍列表副本。
func (p *Pipeline) Books() []BookSpec { return append([]BookSpec(nil), p.books...) }

func (p *Pipeline) reclamp() {
	clamped, _ := p.state.Clamp(p.Geometry(), p.Fit(), p.cfg.Margins)
	p.state = clamped
}

// Geometry 返回书堆几何。
func (p *Pipeline) Geometry() StackGeometry {
	if p.geo.valid && p.geo.rev == p.booksRev && p.geo.gap == p.cfg.GapMm {
		return p.geo.v
	}
	p.stats.Geometry++
	p.geo.v = ComputeStack(p.books, p.cfg.GapMm)
	p.geo.rev, p.geo.gap, p.geo.valid = p.booksRev, p.cfg.GapMm, true
	return p.geo.v
}

func (p *Pipeline) fitKey() fitKey {
	return fitKey{booksRev: p.booksRev, gap: p.cfg.GapMm, art: p.art, margins: p.cfg.Margins}
}

// Fit 返回原图基准缩放与最小缩放。
func (p *Pipeline) Fit() ArtworkFit {
	key := p.fitKey()
	if p.fit.valid && p.fit.key == key {
		return p.fit.v
	}
	p.stats.Fit++
	p.fit.v = FitArtwork(p.Geometry(), p.art, p.cfg.Margins)
	p.fit.key, p.fit.valid = key, true
	return p.fit.v
}

// Transform 返回原图在书堆坐标系中的摆放。
func (p *Pipeline) Transform() ArtworkTransform {
	key := transformKey{fit: p.fitKey(), state: p.state}
	if p.tr.valid && p.tr.key == key {
		return p.tr.v
	}
	p.stats.Transform++
	p.tr.v = ComputeTransform(p.Geometry(), p.Fit(), p.state, p.cfg.Margins)
	p.tr.key, p.tr.valid = key, true
	return p.tr.v
}

// layoutText 对单个字段做记忆化 autofit。
func (p *Pipeline) layoutText(id, text string, box BoxSize, limits TextLimits, font FontResource) (TextLayout, error) {
	key := textKey{text: text, box: box, limits: limits, font: font}
	if e, ok := p.texts[id]; ok && e.key == key {
		return e.layout, nil
	}
	p.stats.Text++
	tl, err := Autofit(p.measurer, text, font, box, limits)
	if err != nil {
		return TextLayout{}, fmt.Errorf("字段 %s 排版失败: %w", id, err)
	}
	p.texts[id] = textEntry{key: key, layout: tl}
	return tl, nil
}

// Frame 组装书堆坐标系下的完整画面，包括每个文本字段独立的 autofit 结果。
func (p *Pipeline) Frame() (Frame, error) {
	stack := p.Geometry()
	fit := p.Fit()
	f := Frame{
		Stack:     stack,
		Transform: p.Transform(),
		Spines:    spineRects(stack, p.books),
		Guides:    spineGuides(stack, p.cfg.Margins),
	}
	if !fit.Present {
		f.Warnings = append(f.Warnings, Warning{Code: WarnArtworkMissing, Message: "no artwork has been uploaded yet"})
	} else if fit.CoverageCapped {
		f.Warnings = append(f.Warnings, Warning{
			Code:    WarnCoverageCapped,
			Message: fmt.Sprintf("artwork needs %.0f%% zoom to cover the wrap margin; capped at %.0f%%", fit.RawMinZoomPercent, MaxZoomPercent),
		})
	}

	live := map[string]bool{}
	if p.caption != "" {
		x, y, box := CaptionBox(stack)
		tl, err := p.layoutText(FieldCaption, p.caption, box, p.cfg.Caption, p.cfg.Fonts.Caption)
		if err != nil {
			return Frame{}, err
		}
		live[FieldCaption] = true
		f.Texts = append(f.Texts, textBoxAt(FieldCaption, "", x+box.WidthPx/2, y+box.HeightPx/2, box, tl, p.cfg.Fonts.Caption, 0))
		f.Warnings = appendOverflow(f.Warnings, FieldCaption, "", tl)
	}
	for i, place := range stack.Books {
		book := p.books[i]
		if book.ShortText != "" {
			id := FieldSpineTitle + ":" + book.ID
			cx, cy, box := SpineTitleBox(stack, place)
			tl, err := p.layoutText(id, book.ShortText, box, p.cfg.SpineTitle, p.cfg.Fonts.SpineTitle)
			if err != nil {
				return Frame{}, err
			}
			live[id] = true
			f.Texts = append(f.Texts, textBoxAt(FieldSpineTitle, book.ID, cx, cy, box, tl, p.cfg.Fonts.SpineTitle, -90))
			f.Warnings = appendOverflow(f.Warnings, FieldSpineTitle, book.ID, tl)
		}
		if book.SmallText != "" {
			id := FieldSpineSmall + ":" + book.ID
			cx, cy, box := SpineSmallBox(stack, place)
			tl, err := p.layoutText(id, book.SmallText, box, p.cfg.SpineSmall, p.cfg.Fonts.SpineSmall)
			if err != nil {
				return Frame{}, err
			}
			live[id] = true
			f.Texts = append(f.Texts, textBoxAt(FieldSpineSmall, book.ID, cx, cy, box, tl, p.cfg.Fonts.SpineSmall, -90))
			f.Warnings = appendOverflow(f.Warnings, FieldSpineSmall, book.ID, tl)
		}
	}
	// 删除的书或清空的文本不再保留缓存
	for id := range p.texts {
		if !live[id] {
			delete(p.texts, id)
		}
	}
	return f, nil
}

func appendOverflow(ws []Warning, field, bookID string, tl TextLayout) []Warning {
	if !tl.Overflowed {
		return ws
	}
	return append(ws, Warning{
		Code:    WarnTextOverflow,
		Field:   field,
		BookID:  bookID,
		Message: fmt.Sprintf("text does not fit even at %.0fpx; it may overflow its box", tl.FontSizePx),
	})
}
