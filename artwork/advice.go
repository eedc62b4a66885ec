package artwork

import (
	"fmt"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/ByLCY/jacket/layout"
)

// AdviceConfig 定义原图的接收阈值。参考尺寸为可能印刷的最大包边面积；
// MaxPixels 是允许解码的像素上限。
type AdviceConfig struct {
	MinPrintDPI       float64 `mapstructure:"min_print_dpi"`
	ReferenceWidthMm  float64 `mapstructure:"reference_width_mm"`
	ReferenceHeightMm float64 `mapstructure:"reference_height_mm"`
	MaxPixels         int64   `mapstructure:"max_pixels"`
}

// DefaultAdviceConfig 以 150dpi 覆盖 400×265mm 为基准。
func DefaultAdviceConfig() AdviceConfig {
	return AdviceConfig{MinPrintDPI: 150, ReferenceWidthMm: 400, ReferenceHeightMm: 265, MaxPixels: DefaultMaxPixels}
}

// Advisory 是非致命的原图提示，不阻止接收。
type Advisory struct {
	Code         string  `json:"code"`
	EffectiveDPI float64 `json:"effectiveDpi"`
	MinDPI       float64 `json:"minDpi"`
	Message      string  `json:"message"`
}

// Warning 转换为流水线使用的提示类型。
func (a Advisory) Warning() layout.Warning {
	return layout.Warning{Code: a.Code, Message: a.Message}
}

// EffectiveDPI 返回原图铺满参考尺寸时的有效分辨率（取两个方向的较小值）。
func EffectiveDPI(width, height int, cfg AdviceConfig) float64 {
	if width <= 0 || height <= 0 || cfg.ReferenceWidthMm <= 0 || cfg.ReferenceHeightMm <= 0 {
		return 0
	}
	dx := float64(width) / (cfg.ReferenceWidthMm / layout.MmPerInch)
	dy := float64(height) / (cfg.ReferenceHeightMm / layout.MmPerInch)
	return math.Min(dx, dy)
}

// Advise 在分辨率低于阈值时返回提示。
func Advise(a *Asset, cfg AdviceConfig) (Advisory, bool) {
	if a == nil || cfg.MinPrintDPI <= 0 {
		return Advisory{}, false
	}
	dpi := EffectiveDPI(a.Width, a.Height, cfg)
	if dpi >= cfg.MinPrintDPI {
		return Advisory{}, false
	}
	return Advisory{
		Code:         layout.WarnLowResolution,
		EffectiveDPI: dpi,
		MinDPI:       cfg.MinPrintDPI,
		Message: fmt.Sprintf("artwork is %dx%dpx (about %.0f dpi at %.0fx%.0fmm); %.0f dpi or more is recommended for print",
			a.Width, a.Height, dpi, cfg.ReferenceWidthMm, cfg.ReferenceHeightMm, cfg.MinPrintDPI),
	}, true
}

// Thumbnail 将原图等比缩小到最长边不超过 maxPx，用于预览。原图已足够小时原样返回。
func Thumbnail(a *Asset, maxPx int) (image.Image, error) {
	src, err := a.Image()
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	longest := max(b.Dx(), b.Dy())
	if maxPx <= 0 || longest <= maxPx {
		return src, nil
	}
	scale := float64(maxPx) / float64(longest)
	w := max(int(math.Round(float64(b.Dx())*scale)), 1)
	h := max(int(math.Round(float64(b.Dy())*scale)), 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst, nil
}

// imageSource 把一张内存中的图片包装成 layout.ImageSource。
type imageSource struct{ img image.Image }

func (s imageSource) Image() (image.Image, error) { return s.img, nil }

// ThumbnailResource 生成预览用的缩略图资源；像素尺寸仍报告原图尺寸以保证几何不变。
func ThumbnailResource(a *Asset, name string, maxPx int) (layout.ImageResource, error) {
	img, err := Thumbnail(a, maxPx)
	if err != nil {
		return layout.ImageResource{}, err
	}
	res := a.Resource(name)
	res.Source = imageSource{img: img}
	return res, nil
}
