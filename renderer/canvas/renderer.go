package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/svg"
	"go.uber.org/zap"

	"github.com/ByLCY/jacket/layout"
	"github.com/ByLCY/jacket/renderer"
)

const defaultStrokeWidth = 0.2 // mm

// Renderer draws proof documents and preview pages via github.com/tdewolff/canvas,
// and measures text for autofit with the same font faces.
type Renderer struct {
	baseDir string
	logger  *zap.Logger

	fontBlobs map[string][]byte // by unique name

	fontMu         sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	fallbackFamily *canvas.FontFamily
}

var (
	_ renderer.Renderer      = (*Renderer)(nil)
	_ renderer.SceneRenderer = (*Renderer)(nil)
	_ layout.Measurer        = (*Renderer)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // fonts accessible via built-in:<name>
	Logger  *zap.Logger
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a canvas-based renderer rooted at baseDir for resolving font paths.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected fonts and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		baseDir:      opts.BaseDir,
		logger:       opts.Logger,
		fontBlobs:    map[string][]byte{},
		fontFamilies: map[string]*fontFamilyEntry{},
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	for name, res := range opts.Fonts {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			r.fontBlobs[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, err := os.ReadFile(res.Path)
			if err != nil {
				r.logger.Warn("读取字体文件失败", zap.String("name", name), zap.Error(err))
				continue
			}
			r.fontBlobs[name] = data
		}
	}
	return r
}

// Render renders every proof page into one multi-page PDF.
func (r *Renderer) Render(doc *layout.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("打样文档为空")
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, doc.Pages[0].Width, doc.Pages[0].Height, nil)
	keywords := strings.Join(doc.Meta.Keywords, ", ")
	writer.SetInfo(doc.Meta.Title, doc.Meta.Subject, keywords, doc.Meta.Author, doc.Meta.Creator)
	for i, page := range doc.Pages {
		if i > 0 {
			writer.NewPage(page.Width, page.Height)
		}
		c, err := r.drawCanvas(page, doc.Resources)
		if err != nil {
			return nil, fmt.Errorf("绘制第 %d 页失败: %w", i+1, err)
		}
		c.RenderTo(writer)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderSVG renders a single page (used for the live preview) into SVG.
func (r *Renderer) RenderSVG(page layout.Page, res layout.ResourceSet) ([]byte, error) {
	if page.Width <= 0 || page.Height <= 0 {
		return nil, fmt.Errorf("页面尺寸无效: %gx%g", page.Width, page.Height)
	}
	c, err := r.drawCanvas(page, res)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	writer := svg.New(&buf, page.Width, page.Height, nil)
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 SVG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawCanvas(page layout.Page, res layout.ResourceSet) (*canvas.Canvas, error) {
	c := canvas.New(page.Width, page.Height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

	// 原图在最底层，其次是书脊剪影与参考线，文本在最上层
	if err := r.drawImages(ctx, page.Images, res.Images); err != nil {
		return nil, err
	}
	r.drawRects(ctx, page.Rects)
	r.drawLines(ctx, page.Lines)
	for _, tb := range page.Texts {
		if err := r.drawTextBox(ctx, tb, resolveFontResource(tb.Font, res.Fonts)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (r *Renderer) drawImages(ctx *canvas.Context, images []layout.ImageBox, resources map[string]layout.ImageResource) error {
	for _, box := range images {
		res, ok := resources[box.Name]
		if !ok || res.Source == nil {
			return fmt.Errorf("找不到图片资源 %s", box.Name)
		}
		img, err := res.Source.Image()
		if err != nil {
			return fmt.Errorf("读取图片 %s 失败: %w", box.Name, err)
		}
		if box.Width <= 0 || img.Bounds().Dx() == 0 {
			continue
		}
		dpmm := float64(img.Bounds().Dx()) / box.Width
		if dpmm <= 0 {
			dpmm = 1
		}
		ctx.DrawImage(box.X, box.Y, img, canvas.DPMM(dpmm))
	}
	return nil
}

// drawRects 绘制书脊剪影；Hidden 的矩形只参与定位，不绘制。
func (r *Renderer) drawRects(ctx *canvas.Context, rects []layout.Rect) {
	for _, rc := range rects {
		if rc.Hidden {
			continue
		}
		w := rc.StrokeWidth
		if w <= 0 {
			w = defaultStrokeWidth
		}
		if rc.FillColor != nil {
			alpha := 1.0
			if rc.Opacity > 0 {
				alpha = rc.Opacity
			}
			ctx.SetFillColor(colorWithAlpha(*rc.FillColor, alpha))
		} else {
			ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
		}
		ctx.SetStrokeColor(colorFromLayout(rc.StrokeColor))
		ctx.SetStrokeWidth(w)
		ctx.SetDashes(0)
		ctx.DrawPath(rc.X, rc.Y, canvas.Rectangle(rc.Width, rc.Height))
	}
}

// drawLines 绘制参考线（毫米单位）。
func (r *Renderer) drawLines(ctx *canvas.Context, lines []layout.Line) {
	ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
	for _, ln := range lines {
		w := ln.Width
		if w <= 0 {
			w = defaultStrokeWidth
		}
		ctx.SetStrokeColor(colorFromLayout(ln.Color))
		ctx.SetStrokeWidth(w)
		if ln.Dashed {
			ctx.SetDashes(0, 2*w+1, w+1)
		} else {
			ctx.SetDashes(0)
		}
		p := &canvas.Path{}
		p.MoveTo(0, 0)
		p.LineTo(ln.X2-ln.X1, ln.Y2-ln.Y1)
		ctx.DrawPath(ln.X1, ln.Y1, p)
	}
	ctx.SetDashes(0)
}

// drawTextBox 以框中心为轴旋转后逐行居中绘制。文本块在框内垂直居中。
func (r *Renderer) drawTextBox(ctx *canvas.Context, tb layout.TextBox, fontRes layout.FontResource) error {
	if len(tb.Lines) == 0 && tb.Content == "" {
		return nil
	}
	// TextBox 的字号为 mm；创建字体面需要 pt，这里做一次 mm→pt。
	face, err := r.fontFace(fontRes, layout.MmToPoints(tb.FontSize), tb.Color)
	if err != nil {
		return err
	}
	lines := tb.Lines
	if len(lines) == 0 {
		lines = strings.Split(tb.Content, "\n")
	}
	lineHeight := tb.LineHeight
	if lineHeight <= 0 {
		lineHeight = tb.FontSize * 1.2
	}

	var textAlign canvas.TextAlign
	var anchorX float64
	switch strings.ToLower(tb.Align) {
	case "left", "start":
		textAlign, anchorX = canvas.Left, -tb.Width/2
	case "right", "end":
		textAlign, anchorX = canvas.Right, tb.Width/2
	default:
		textAlign, anchorX = canvas.Center, 0
	}

	cx, cy := tb.X+tb.Width/2, tb.Y+tb.Height/2
	ctx.Push()
	defer ctx.Pop()
	ctx.Translate(cx, cy)
	if tb.Rotate != 0 {
		ctx.Rotate(tb.Rotate)
	}

	metrics := face.Metrics()
	glyphHeight := metrics.Ascent + metrics.Descent
	cursorY := -float64(len(lines)) * lineHeight / 2
	for _, line := range lines {
		// 基线：行顶 + 半行距 + 上升部
		baseline := cursorY + math.Max(lineHeight-glyphHeight, 0)/2 + metrics.Ascent
		ctx.DrawText(anchorX, baseline, canvas.NewTextLine(face, line, textAlign))
		cursorY += lineHeight
	}
	return nil
}

func colorFromLayout(c layout.Color) color.Color {
	return colorWithAlpha(c, 1)
}

func colorWithAlpha(c layout.Color, alpha float64) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, alpha)
}
