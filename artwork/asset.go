// Package artwork 负责原图的接收、解码与生命周期管理。
package artwork

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/jacket/layout"
)

var (
	// ErrNotImage 表示载荷不是图片（校验错误，不修改任何状态）。
	ErrNotImage = errors.New("payload is not an image")
	// ErrDecode 表示图片解码失败（资源错误，保留之前的原图）。
	ErrDecode = errors.New("image decode failed")
	// ErrReleased 表示句柄已经释放。
	ErrReleased = errors.New("artwork handle already released")
)

// Asset 是一张已接收的原图：像素尺寸不可变，像素数据由引用计数的 Handle 持有。
type Asset struct {
	ID       string
	Name     string
	MimeType string
	Width    int
	Height   int
	Size     int // 原始字节数

	handle *Handle
}

var _ layout.ImageSource = (*Asset)(nil)

// Dimensions 返回供视口模型使用的像素尺寸。
func (a *Asset) Dimensions() layout.ArtworkSize {
	if a == nil {
		return layout.ArtworkSize{}
	}
	return layout.ArtworkSize{PixelWidth: a.Width, PixelHeight: a.Height}
}

// Handle 返回解码资源句柄。
func (a *Asset) Handle() *Handle { return a.handle }

// Image 实现 layout.ImageSource。
func (a *Asset) Image() (image.Image, error) {
	if a == nil || a.handle == nil {
		return nil, ErrReleased
	}
	return a.handle.Image()
}

// Resource 生成渲染用的图片资源描述。
func (a *Asset) Resource(name string) layout.ImageResource {
	return layout.ImageResource{Name: name, MimeType: a.MimeType, PixelWidth: a.Width, PixelHeight: a.Height, Source: a}
}

// Option 调整 Accept 的行为。
type Option func(*acceptOptions)

type acceptOptions struct {
	onRelease func(*Asset)
	maxPixels int64
}

// DefaultMaxPixels 是未指定上限时允许解码的最大像素数（约 200 Mpx）。
const DefaultMaxPixels int64 = 200_000_000

// WithReleaseHook 在句柄最后一个引用释放时调用 fn，且只调用一次。
func WithReleaseHook(fn func(*Asset)) Option {
	return func(o *acceptOptions) { o.onRelease = fn }
}

// WithMaxPixels 限制允许解码的像素总数，n <= 0 时使用 DefaultMaxPixels。
// 超过上限的图片在分配像素缓冲之前就被拒绝。
func WithMaxPixels(n int64) Option {
	return func(o *acceptOptions) { o.maxPixels = n }
}

// Accept 校验并解码一个图片载荷。name 仅用于根据扩展名辅助判断类型。
// 返回的 Asset 持有一个引用，调用方用完后需要 Handle().Release()。
func Accept(payload []byte, name string, opts ...Option) (*Asset, error) {
	var o acceptOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxPixels <= 0 {
		o.maxPixels = DefaultMaxPixels
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrNotImage)
	}
	mimeType := sniff(payload, name)
	if mimeType == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, http.DetectContentType(payload))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if errors.Is(err, image.ErrFormat) {
		// 扩展名像图片，但没有任何解码器认得这段内容
		return nil, fmt.Errorf("%w: %s", ErrNotImage, http.DetectContentType(payload))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: zero dimensions", ErrDecode)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > o.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, o.maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if format != "" {
		mimeType = "image/" + format
	}

	asset := &Asset{
		ID:       uuid.NewString(),
		Name:     name,
		MimeType: mimeType,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Size:     len(payload),
	}
	var hook func()
	if o.onRelease != nil {
		hook = func() { o.onRelease(asset) }
	}
	asset.handle = newHandle(img, hook)
	return asset, nil
}

// sniff 先看内容，再看扩展名；都不是图片时返回空串。
func sniff(payload []byte, name string) string {
	if ct := http.DetectContentType(payload); strings.HasPrefix(ct, "image/") {
		return ct
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if ct := mime.TypeByExtension(ext); strings.HasPrefix(ct, "image/") {
			return ct
		}
		switch ext {
		case ".webp", ".tif", ".tiff", ".bmp":
			return "image/" + strings.TrimPrefix(ext, ".")
		}
	}
	return ""
}

// Handle 是解码资源的引用计数句柄。最后一个引用释放后像素数据被丢弃，
// 释放回调恰好执行一次；之后的 Retain 返回 false。
type Handle struct {
	mu        sync.Mutex
	refs      int
	img       image.Image
	once      sync.Once
	onRelease func()
}

func newHandle(img image.Image, onRelease func()) *Handle {
	return &Handle{refs: 1, img: img, onRelease: onRelease}
}

// Retain 增加一个引用。句柄已释放时返回 false。
func (h *Handle) Retain() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs <= 0 {
		return false
	}
	h.refs++
	return true
}

// Release 释放一个引用；多余的 Release 被忽略。
func (h *Handle) Release() {
	h.mu.Lock()
	if h.refs <= 0 {
		h.mu.Unlock()
		return
	}
	h.refs--
	last := h.refs == 0
	if last {
		h.img = nil
	}
	h.mu.Unlock()
	if last {
		h.once.Do(func() {
			if h.onRelease != nil {
				h.onRelease()
			}
		})
	}
}

// Refs 返回当前引用数。
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// Image 返回解码后的像素；释放后返回 ErrReleased。
func (h *Handle) Image() (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs <= 0 || h.img == nil {
		return nil, ErrReleased
	}
	return h.img, nil
}
