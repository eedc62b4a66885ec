package layout

import "math"

// 缩放范围（百分比）。最小缩放的下限为 50，上限与最大缩放一致。
const (
	MinZoomFloorPercent = 50.0
	MaxZoomPercent      = 200.0
	MaxOffsetPercent    = 100.0
)

// Margins 保存包边所需的物理余量（mm）。
type Margins struct {
	WrapMarginMm float64 `json:"wrapMarginMm"` // 书堆左右两侧至少需要的图像余量
	TopMarginMm  float64 `json:"topMarginMm"`  // 书堆顶部至少需要的图像余量
}

// WrapPx 返回包边余量的像素值。
func (m Margins) WrapPx() float64 { return MmToPx(m.WrapMarginMm) }

// TopPx 返回顶部余量的像素值。
func (m Margins) TopPx() float64 { return MmToPx(m.TopMarginMm) }

// ArtworkSize 是原图像素尺寸。
type ArtworkSize struct {
	PixelWidth  int `json:"pixelWidth"`
	PixelHeight int `json:"pixelHeight"`
}

// Valid 表示是否存在可用的原图。
func (s ArtworkSize) Valid() bool { return s.PixelWidth > 0 && s.PixelHeight > 0 }

// ViewportState 是用户可控的缩放与平移，均为百分比。
type ViewportState struct {
	ZoomPercent    float64 `json:"zoomPercent"`
	OffsetXPercent float64 `json:"offsetXPercent"`
	OffsetYPercent float64 `json:"offsetYPercent"`
}

// DefaultViewport 返回初始视口。
func DefaultViewport() ViewportState { return ViewportState{ZoomPercent: 100} }

// ArtworkFit 描述原图相对书堆的基准缩放与最小缩放。
type ArtworkFit struct {
	Present           bool    `json:"present"`
	BaseScale         float64 `json:"baseScale"`
	BaseWidthPx       float64 `json:"baseWidthPx"`
	BaseHeightPx      float64 `json:"baseHeightPx"`
	RequiredWidthPx   float64 `json:"requiredWidthPx"`
	RequiredHeightPx  float64 `json:"requiredHeightPx"`
	RawMinZoomPercent float64 `json:"rawMinZoomPercent"`
	MinZoomPercent    float64 `json:"minZoomPercent"`
	// CoverageCapped 为 true 时，即便放大到 200% 也无法满足包边余量。
	CoverageCapped bool `json:"coverageCapped"`
}

// FitArtwork 以最高的书为基准计算缩放：原图高度恰好铺满书堆高度。
// 最小缩放保证横向覆盖 stackW + 2×wrap，纵向覆盖 stackH + top。
func FitArtwork(stack StackGeometry, art ArtworkSize, m Margins) ArtworkFit {
	if !art.Valid() {
		return ArtworkFit{MinZoomPercent: MinZoomFloorPercent}
	}
	fit := ArtworkFit{Present: true}
	fit.BaseScale = stack.HeightPx / float64(art.PixelHeight)
	fit.BaseWidthPx = float64(art.PixelWidth) * fit.BaseScale
	fit.BaseHeightPx = stack.HeightPx
	fit.RequiredWidthPx = stack.WidthPx + 2*m.WrapPx()
	fit.RequiredHeightPx = stack.HeightPx + m.TopPx()

	ratio := math.Max(fit.RequiredWidthPx/fit.BaseWidthPx, fit.RequiredHeightPx/fit.BaseHeightPx)
	fit.RawMinZoomPercent = math.Ceil(100 * ratio)
	fit.MinZoomPercent = clamp(fit.RawMinZoomPercent, MinZoomFloorPercent, MaxZoomPercent)
	fit.CoverageCapped = fit.RawMinZoomPercent > MaxZoomPercent
	return fit
}

// MinVerticalOffsetPercent 计算纵向偏移下限。
// extra ≤ 0 时没有移动空间，固定为 -100；extra ≤ top 时固定为 100；
// 其余情况保证图像顶部至少超出书堆 top 像素。
func MinVerticalOffsetPercent(extraPx, topPx float64) float64 {
	if extraPx <= 0 {
		return -MaxOffsetPercent
	}
	if extraPx <= topPx {
		return MaxOffsetPercent
	}
	return clamp(-100+200*topPx/extraPx, -MaxOffsetPercent, MaxOffsetPercent)
}

// ViewportBounds 是当前原图与书堆下视口的有效范围。
type ViewportBounds struct {
	MinZoomPercent           float64 `json:"minZoomPercent"`
	MaxZoomPercent           float64 `json:"maxZoomPercent"`
	MinVerticalOffsetPercent float64 `json:"minVerticalOffsetPercent"`
}

// Clamp 把存储的视口收敛到有效范围内；范围内的值保持不变。
// 纵向下限依赖缩放，因此先收敛缩放再计算纵向下限。
func (s ViewportState) Clamp(stack StackGeometry, fit ArtworkFit, m Margins) (ViewportState, ViewportBounds) {
	b := ViewportBounds{MinZoomPercent: fit.MinZoomPercent, MaxZoomPercent: MaxZoomPercent, MinVerticalOffsetPercent: -MaxOffsetPercent}
	if !fit.Present {
		b.MinZoomPercent = MinZoomFloorPercent
	}
	out := s
	out.ZoomPercent = clamp(s.ZoomPercent, b.MinZoomPercent, b.MaxZoomPercent)
	out.OffsetXPercent = clamp(s.OffsetXPercent, -MaxOffsetPercent, MaxOffsetPercent)
	if fit.Present {
		dispH := fit.BaseHeightPx * out.ZoomPercent / 100
		b.MinVerticalOffsetPercent = MinVerticalOffsetPercent(math.Max(dispH-stack.HeightPx, 0), m.TopPx())
	}
	out.OffsetYPercent = clamp(s.OffsetYPercent, b.MinVerticalOffsetPercent, MaxOffsetPercent)
	return out, b
}

// ArtworkTransform 是原图在书堆像素坐标系中的最终摆放。
type ArtworkTransform struct {
	Present         bool           `json:"present"`
	State           ViewportState  `json:"state"` // 收敛后的视口
	Bounds          ViewportBounds `json:"bounds"`
	DisplayWidthPx  float64        `json:"displayWidthPx"`
	DisplayHeightPx float64        `json:"displayHeightPx"`
	ExtraWidthPx    float64        `json:"extraWidthPx"`
	ExtraHeightPx   float64        `json:"extraHeightPx"`
	MaxShiftXPx     float64        `json:"maxShiftXPx"`
	TranslateXPx    float64        `json:"translateXPx"`
	TranslateYPx    float64        `json:"translateYPx"`
	LeftPx          float64        `json:"leftPx"`
	TopPx           float64        `json:"topPx"`
}

// RightPx 返回图像右边缘。
func (t ArtworkTransform) RightPx() float64 { return t.LeftPx + t.DisplayWidthPx }

// BottomPx 返回图像下边缘。
func (t ArtworkTransform) BottomPx() float64 { return t.TopPx + t.DisplayHeightPx }

// ComputeTransform 根据收敛后的视口计算图像位置。
// 图像以书堆中心为锚点；正的 offsetY 让内容上移。
func ComputeTransform(stack StackGeometry, fit ArtworkFit, state ViewportState, m Margins) ArtworkTransform {
	clamped, bounds := state.Clamp(stack, fit, m)
	t := ArtworkTransform{Present: fit.Present, State: clamped, Bounds: bounds}
	if !fit.Present {
		return t
	}
	zoom := clamped.ZoomPercent / 100
	t.DisplayWidthPx = fit.BaseWidthPx * zoom
	t.DisplayHeightPx = fit.BaseHeightPx * zoom

	t.ExtraWidthPx = math.Max(t.DisplayWidthPx-stack.WidthPx, 0)
	t.MaxShiftXPx = math.Max(t.ExtraWidthPx/2-m.WrapPx(), 0)
	t.TranslateXPx = t.MaxShiftXPx * clamped.OffsetXPercent / 100

	t.ExtraHeightPx = math.Max(t.DisplayHeightPx-stack.HeightPx, 0)
	t.TranslateYPx = -t.ExtraHeightPx * clamped.OffsetYPercent / 200

	t.LeftPx = (stack.WidthPx-t.DisplayWidthPx)/2 + t.TranslateXPx
	t.TopPx = (stack.HeightPx-t.DisplayHeightPx)/2 + t.TranslateYPx
	return t
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if hi < lo {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
