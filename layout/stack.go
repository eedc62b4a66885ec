package layout

import (
	"fmt"
	"math"
)

// BookSpec 描述作业中的一本实体书。尺寸单位均为毫米。
type BookSpec struct {
	ID           string  `json:"id"`
	SpineWidthMm float64 `json:"spineWidthMm"`
	CoverWidthMm float64 `json:"coverWidthMm"`
	HeightMm     float64 `json:"heightMm"`
	ColorToken   string  `json:"colorToken"`
	ShortText    string  `json:"shortText,omitempty"`
	SmallText    string  `json:"smallText,omitempty"`
	ISBN         string  `json:"isbn,omitempty"`
}

// WrapWidthMm 返回书衣展开宽度：书脊 + 前后两个封面。
func (b BookSpec) WrapWidthMm() float64 { return b.SpineWidthMm + 2*b.CoverWidthMm }

// PhysicalLimits 是书籍尺寸的物理上限。
type PhysicalLimits struct {
	MaxHeightMm    float64 `json:"maxHeightMm"`
	MaxWrapWidthMm float64 `json:"maxWrapWidthMm"`
}

// DefaultPhysicalLimits 对应生产线可加工的最大书衣。
var DefaultPhysicalLimits = PhysicalLimits{MaxHeightMm: 265, MaxWrapWidthMm: 400}

// DimensionError 指出越界的字段，Message 可直接展示给用户。
type DimensionError struct {
	Field   string
	Message string
}

func (e *DimensionError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Message) }

// Validate 检查尺寸为正且不超过物理上限。
func (b BookSpec) Validate(limits PhysicalLimits) error {
	switch {
	case !(b.SpineWidthMm > 0):
		return &DimensionError{Field: "spineWidthMm", Message: "spine width must be greater than 0mm"}
	case !(b.CoverWidthMm > 0):
		return &DimensionError{Field: "coverWidthMm", Message: "cover width must be greater than 0mm"}
	case !(b.HeightMm > 0):
		return &DimensionError{Field: "heightMm", Message: "height must be greater than 0mm"}
	}
	if limits.MaxHeightMm > 0 && b.HeightMm > limits.MaxHeightMm {
		return &DimensionError{Field: "heightMm", Message: fmt.Sprintf("height cannot exceed %gmm", limits.MaxHeightMm)}
	}
	if limits.MaxWrapWidthMm > 0 && b.WrapWidthMm() > limits.MaxWrapWidthMm {
		return &DimensionError{Field: "coverWidthMm", Message: fmt.Sprintf("spine + 2 x cover cannot exceed %gmm", limits.MaxWrapWidthMm)}
	}
	return nil
}

// StackGeometry 是书堆的派生几何，完全由有序 BookSpec 列表决定。
type StackGeometry struct {
	TotalWidthMm float64     `json:"totalWidthMm"`
	MaxHeightMm  float64     `json:"maxHeightMm"`
	WidthPx      float64     `json:"widthPx"`  // >= 1
	HeightPx     float64     `json:"heightPx"` // >= 1
	GapMm        float64     `json:"gapMm"`
	Books        []BookPlace `json:"books"`
}

// BookPlace 记录单本书在书堆坐标系中的位置。
type BookPlace struct {
	ID           string  `json:"id"`
	Index        int     `json:"index"`
	LeftMm       float64 `json:"leftMm"`
	CenterMm     float64 `json:"centerMm"`
	SpineWidthMm float64 `json:"spineWidthMm"`
	CoverWidthMm float64 `json:"coverWidthMm"`
	HeightMm     float64 `json:"heightMm"`
	SpineWidthPx float64 `json:"spineWidthPx"`
	HeightPx     float64 `json:"heightPx"`
}

// CenterPx 返回书脊中心的像素横坐标。
func (p BookPlace) CenterPx() float64 { return MmToPx(p.CenterMm) }

// LeftPx 返回书脊左边缘的像素横坐标。
func (p BookPlace) LeftPx() float64 { return MmToPx(p.LeftMm) }

// ComputeStack 按顺序排列书脊，书与书之间留 gapMm，最后一本之后不加间隙。
// n=0 时宽度为 0，像素尺寸仍至少为 1px。
func ComputeStack(books []BookSpec, gapMm float64) StackGeometry {
	geo := StackGeometry{GapMm: gapMm, Books: make([]BookPlace, 0, len(books))}
	running := 0.0
	for i, b := range books {
		if i > 0 {
			running += gapMm
		}
		geo.Books = append(geo.Books, BookPlace{
			ID:           b.ID,
			Index:        i,
			LeftMm:       running,
			CenterMm:     running + b.SpineWidthMm/2,
			SpineWidthMm: b.SpineWidthMm,
			CoverWidthMm: b.CoverWidthMm,
			HeightMm:     b.HeightMm,
			SpineWidthPx: floorPx(MmToPx(b.SpineWidthMm)),
			HeightPx:     floorPx(MmToPx(b.HeightMm)),
		})
		running += b.SpineWidthMm
		geo.MaxHeightMm = math.Max(geo.MaxHeightMm, b.HeightMm)
	}
	geo.TotalWidthMm = running
	geo.WidthPx = floorPx(MmToPx(geo.TotalWidthMm))
	geo.HeightPx = floorPx(MmToPx(geo.MaxHeightMm))
	return geo
}

// Find 按 ID 查找书的位置。
func (g StackGeometry) Find(id string) (BookPlace, bool) {
	for _, p := range g.Books {
		if p.ID == id {
			return p, true
		}
	}
	return BookPlace{}, false
}

// TopPx 返回某本书顶边在书堆坐标中的 y 值（书底对齐）。
func (g StackGeometry) TopPx(p BookPlace) float64 { return g.HeightPx - p.HeightPx }

// floorPx 保证像素尺寸至少为 1，避免后续比例计算除零。
func floorPx(px float64) float64 {
	if !(px >= 1) {
		return 1
	}
	return px
}
