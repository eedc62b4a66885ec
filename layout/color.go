package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Hex 返回 #rrggbb 形式。
func (c Color) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// 常用颜色。
var (
	ColorInk   = Color{R: 30, G: 30, B: 30}
	ColorGuide = Color{R: 0, G: 160, B: 220}
	ColorBleed = Color{R: 230, G: 0, B: 120}
	ColorPaper = Color{R: 255, G: 255, B: 255}
)

// namedColors 是书籍颜色令牌的别名表，其余令牌按十六进制解析。
var namedColors = map[string]Color{
	"black":  {R: 20, G: 20, B: 20},
	"white":  {R: 250, G: 250, B: 250},
	"red":    {R: 168, G: 50, B: 50},
	"blue":   {R: 40, G: 70, B: 150},
	"green":  {R: 40, G: 120, B: 70},
	"yellow": {R: 230, G: 190, B: 40},
	"gray":   {R: 128, G: 128, B: 128},
	"grey":   {R: 128, G: 128, B: 128},
	"navy":   {R: 20, G: 30, B: 80},
	"cream":  {R: 245, G: 235, B: 210},
}

// ParseColor 解析 #rgb / #rrggbb / #rrggbbaa 或颜色名称。
func ParseColor(value string) (Color, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if c, ok := namedColors[v]; ok {
		return c, nil
	}
	v = strings.TrimPrefix(v, "#")
	switch len(v) {
	case 3:
		v = string([]byte{v[0], v[0], v[1], v[1], v[2], v[2]})
	case 6, 8:
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	var out [3]int
	for i := range out {
		n, err := strconv.ParseUint(v[i*2:i*2+2], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("颜色值 %s 无法解析: %w", value, err)
		}
		out[i] = int(n)
	}
	return Color{R: out[0], G: out[1], B: out[2]}, nil
}

// ColorOrDefault 解析颜色令牌，失败时返回 fallback。
func ColorOrDefault(token string, fallback Color) Color {
	if c, err := ParseColor(token); err == nil {
		return c
	}
	return fallback
}
