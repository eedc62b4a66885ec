package layout

// 该文件定义预览场景与打样文档的结构，供预览、打样、渲染与调试 JSON 共用。

// Document 是打样导出的完整结果：每本书一页。
type Document struct {
	Pages     []Page       `json:"pages"`
	Resources ResourceSet  `json:"resources"`
	Meta      DocumentMeta `json:"meta"`
}

// ResourceSet 记录渲染所需的字体与原图。
type ResourceSet struct {
	Fonts  map[string]FontResource  `json:"fonts"`
	Images map[string]ImageResource `json:"images"`
}

// FontResource 描述字体资源，src 可以是文件路径或 embed:<name>。
type FontResource struct {
	Name  string `json:"name"`
	Src   string `json:"src"`
	Style string `json:"style"`
}

// ImageResource 记录原图引用；像素数据由 Source 提供，不参与 JSON。
type ImageResource struct {
	Name        string      `json:"name"`
	MimeType    string      `json:"mimeType"`
	PixelWidth  int         `json:"pixelWidth"`
	PixelHeight int         `json:"pixelHeight"`
	Source      ImageSource `json:"-"`
}

// Page 记录页面尺寸与可以直接渲染的元素，坐标单位为 mm，原点在左上角。
type Page struct {
	BookID string  `json:"bookId,omitempty"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	// Scale 是从屏幕像素基准放大到打印分辨率的倍数（pageScale）。
	Scale  float64    `json:"scale"`
	DPI    float64    `json:"dpi,omitempty"`
	Images []ImageBox `json:"images"`
	Rects  []Rect     `json:"rects,omitempty"`
	Lines  []Line     `json:"lines,omitempty"`
	Texts  []TextBox  `json:"texts"`
}

// TextBox 表示一个已经排好坐标的文本块。Rotate 以框中心为轴，单位为度（逆时针）。
type TextBox struct {
	Field      string   `json:"field"`
	BookID     string   `json:"bookId,omitempty"`
	Content    string   `json:"content"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	FontSize   float64  `json:"fontSize"`
	LineHeight float64  `json:"lineHeight"`
	Font       string   `json:"font"`
	Color      Color    `json:"color"`
	Lines      []string `json:"lines"`
	Align      string   `json:"align,omitempty"`
	Rotate     float64  `json:"rotate,omitempty"`
	Overflowed bool     `json:"overflowed,omitempty"`
}

// ImageBox 用于描述图片位置与尺寸。
type ImageBox struct {
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Line 表示一条参考线。Kind 取值 spine/cover/bleed/top。
type Line struct {
	Kind   string  `json:"kind"`
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	X2     float64 `json:"x2"`
	Y2     float64 `json:"y2"`
	Color  Color   `json:"color"`
	Width  float64 `json:"width"` // <=0 时由渲染器给默认值
	Dashed bool    `json:"dashed,omitempty"`
}

// Rect 表示一个矩形。Hidden 的矩形仅用于定位参考，不绘制。
type Rect struct {
	Kind        string  `json:"kind"`
	BookID      string  `json:"bookId,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	StrokeColor Color   `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
	FillColor   *Color  `json:"fillColor,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"` // 0 表示不透明
	Hidden      bool    `json:"hidden,omitempty"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}

// Warning 是非致命提示，例如文本溢出或包边余量不可达。
type Warning struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	BookID  string `json:"bookId,omitempty"`
	Message string `json:"message"`
}

// 常见的提示代码。
const (
	WarnTextOverflow      = "text-overflow"
	WarnCoverageCapped    = "wrap-coverage-unattainable"
	WarnLowResolution     = "artwork-low-resolution"
	WarnArtworkMissing    = "artwork-missing"
	WarnArtworkSuperseded = "artwork-superseded"
)
