package layout

import (
	"image"
	"math"
)

// ImageSource 提供解码后的像素数据。
type ImageSource interface {
	Image() (image.Image, error)
}

// 文本字段标识。
const (
	FieldCaption    = "caption"
	FieldSpineTitle = "spine-title"
	FieldSpineSmall = "spine-small"
)

// Frame 是书堆像素坐标系下的完整画面：预览与打样都从同一个 Frame 投影得到，
// 因此二者的相对位置与比例一致。
type Frame struct {
	Stack       StackGeometry    `json:"stack"`
	Transform   ArtworkTransform `json:"transform"`
	ArtworkName string           `json:"artworkName,omitempty"`
	Spines      []Rect           `json:"spines"`
	Guides      []Line           `json:"guides"`
	Texts       []TextBox        `json:"texts"`
	Warnings    []Warning        `json:"warnings,omitempty"`
}

// Artwork 返回原图在书堆坐标系中的矩形；无原图时 ok 为 false。
func (f Frame) Artwork() (ImageBox, bool) {
	if !f.Transform.Present {
		return ImageBox{}, false
	}
	return ImageBox{
		Name:   f.ArtworkName,
		X:      f.Transform.LeftPx,
		Y:      f.Transform.TopPx,
		Width:  f.Transform.DisplayWidthPx,
		Height: f.Transform.DisplayHeightPx,
	}, true
}

// Affine 是等比缩放加平移：x' = x×Scale + TX。
type Affine struct {
	Scale float64
	TX    float64
	TY    float64
}

// Point 映射一个点。
func (a Affine) Point(x, y float64) (float64, float64) { return x*a.Scale + a.TX, y*a.Scale + a.TY }

// Len 映射一个长度。
func (a Affine) Len(v float64) float64 { return v * a.Scale }

// Then 先应用 a 再应用 b。
func (a Affine) Then(b Affine) Affine {
	return Affine{Scale: a.Scale * b.Scale, TX: a.TX*b.Scale + b.TX, TY: a.TY*b.Scale + b.TY}
}

// ProjectImage 映射图片框。
func (a Affine) ProjectImage(img ImageBox) ImageBox {
	img.X, img.Y = a.Point(img.X, img.Y)
	img.Width, img.Height = a.Len(img.Width), a.Len(img.Height)
	return img
}

// ProjectRect 映射矩形，描边宽度保持不变。
func (a Affine) ProjectRect(r Rect) Rect {
	r.X, r.Y = a.Point(r.X, r.Y)
	r.Width, r.Height = a.Len(r.Width), a.Len(r.Height)
	return r
}

// ProjectLine 映射线段，线宽保持不变。
func (a Affine) ProjectLine(l Line) Line {
	l.X1, l.Y1 = a.Point(l.X1, l.Y1)
	l.X2, l.Y2 = a.Point(l.X2, l.Y2)
	return l
}

// ProjectText 映射文本框，字号与行高随之缩放。
func (a Affine) ProjectText(t TextBox) TextBox {
	t.X, t.Y = a.Point(t.X, t.Y)
	t.Width, t.Height = a.Len(t.Width), a.Len(t.Height)
	t.FontSize, t.LineHeight = a.Len(t.FontSize), a.Len(t.LineHeight)
	return t
}

// spinePadPx 是书脊文本距书脊边缘的留白。
func spinePadPx(p BookPlace) float64 { return math.Max(p.SpineWidthPx*0.08, 1) }

// CaptionBox 返回横跨所有书脊的共享标题框（书堆像素坐标）。
// 标题位于最矮那本书顶边以下的带状区域内，保证压在每一本书脊上。
func CaptionBox(stack StackGeometry) (x, y float64, box BoxSize) {
	minH := stack.HeightPx
	for _, p := range stack.Books {
		minH = math.Min(minH, p.HeightPx)
	}
	pad := math.Max(stack.WidthPx*0.04, 2)
	x = pad
	y = stack.HeightPx - minH + minH*0.04
	box = BoxSize{WidthPx: math.Max(stack.WidthPx-2*pad, 1), HeightPx: math.Max(minH*0.16, 1)}
	return x, y, box
}

// SpineTitleBox 返回书脊主标题框。文本沿书脊方向排版，Width 为沿书脊的长度。
func SpineTitleBox(stack StackGeometry, p BookPlace) (cx, cy float64, box BoxSize) {
	top := stack.TopPx(p)
	cx = p.LeftPx() + p.SpineWidthPx/2
	cy = top + p.HeightPx*0.52
	box = BoxSize{WidthPx: math.Max(p.HeightPx*0.52, 1), HeightPx: math.Max(p.SpineWidthPx-2*spinePadPx(p), 1)}
	return cx, cy, box
}

// SpineSmallBox 返回书脊底部的小字框。
func SpineSmallBox(stack StackGeometry, p BookPlace) (cx, cy float64, box BoxSize) {
	top := stack.TopPx(p)
	cx = p.LeftPx() + p.SpineWidthPx/2
	cy = top + p.HeightPx*0.88
	box = BoxSize{WidthPx: math.Max(p.HeightPx*0.16, 1), HeightPx: math.Max(p.SpineWidthPx-2*spinePadPx(p), 1)}
	return cx, cy, box
}

// spineGuides 生成书脊左右边线与顶边参考线。
func spineGuides(stack StackGeometry, m Margins) []Line {
	lines := make([]Line, 0, len(stack.Books)*3+2)
	for _, p := range stack.Books {
		top := stack.TopPx(p)
		left := p.LeftPx()
		right := left + p.SpineWidthPx
		lines = append(lines,
			Line{Kind: "spine", X1: left, Y1: top, X2: left, Y2: stack.HeightPx, Color: ColorGuide},
			Line{Kind: "spine", X1: right, Y1: top, X2: right, Y2: stack.HeightPx, Color: ColorGuide},
			Line{Kind: "top", X1: left, Y1: top, X2: right, Y2: top, Color: ColorGuide, Dashed: true},
		)
	}
	wrap := m.WrapPx()
	lines = append(lines,
		Line{Kind: "bleed", X1: -wrap, Y1: -m.TopPx(), X2: -wrap, Y2: stack.HeightPx, Color: ColorBleed, Dashed: true},
		Line{Kind: "bleed", X1: stack.WidthPx + wrap, Y1: -m.TopPx(), X2: stack.WidthPx + wrap, Y2: stack.HeightPx, Color: ColorBleed, Dashed: true},
	)
	return lines
}

// spineRects 生成书脊剪影，填充色来自颜色令牌。
func spineRects(stack StackGeometry, books []BookSpec) []Rect {
	rects := make([]Rect, 0, len(stack.Books))
	for i, p := range stack.Books {
		fill := ColorOrDefault(books[i].ColorToken, ColorPaper)
		rects = append(rects, Rect{
			Kind:        "spine",
			BookID:      p.ID,
			X:           p.LeftPx(),
			Y:           stack.TopPx(p),
			Width:       p.SpineWidthPx,
			Height:      p.HeightPx,
			StrokeColor: ColorGuide,
			FillColor:   &fill,
			Opacity:     0.35,
		})
	}
	return rects
}

// textBoxAt 把一次 autofit 的结果落到以 (cx, cy) 为中心的框中。
func textBoxAt(field, bookID string, cx, cy float64, box BoxSize, tl TextLayout, font FontResource, rotate float64) TextBox {
	return TextBox{
		Field:      field,
		BookID:     bookID,
		Content:    tl.Text,
		X:          cx - box.WidthPx/2,
		Y:          cy - box.HeightPx/2,
		Width:      box.WidthPx,
		Height:     box.HeightPx,
		FontSize:   tl.FontSizePx,
		LineHeight: tl.LineHeightPx,
		Font:       font.Name,
		Color:      ColorInk,
		Lines:      tl.Lines,
		Align:      "center",
		Rotate:     rotate,
		Overflowed: tl.Overflowed,
	}
}
