package canvasrenderer

import (
	"math"
	"strings"
	"unicode"

	"github.com/ByLCY/jacket/layout"
)

// widthFunc 返回一段文本的排版宽度（mm）。
type widthFunc func(string) float64

// Measure 实现 layout.Measurer。输入输出均为像素；canvas 内部按 mm/pt 排版。
func (r *Renderer) Measure(text string, font layout.FontResource, fontSizePx, lineHeightPx, maxWidthPx float64) (layout.Measurement, error) {
	sizeMm := layout.PxToMm(fontSizePx)
	face, err := r.fontFace(font, layout.MmToPoints(sizeMm), layout.ColorInk)
	if err != nil {
		return layout.Measurement{}, err
	}
	if lineHeightPx <= 0 {
		lineHeightPx = fontSizePx * 1.2
	}
	lines := greedyWrap(text, layout.PxToMm(maxWidthPx), face.TextWidth)

	m := layout.Measurement{LineCount: len(lines), Lines: make([]string, 0, len(lines))}
	for _, ln := range lines {
		m.Lines = append(m.Lines, ln.content)
		m.WidthPx = math.Max(m.WidthPx, layout.MmToPx(ln.width))
	}
	m.HeightPx = float64(len(lines)) * lineHeightPx
	return m, nil
}

type wrappedLine struct {
	content string
	width   float64 // mm
}

// greedyWrap 优先在空白处断行，单词超宽时按字符拆分；显式换行始终生效。
func greedyWrap(content string, limit float64, width widthFunc) []wrappedLine {
	if limit <= 0 {
		limit = math.MaxFloat64
	}
	var lines []wrappedLine
	var builder strings.Builder

	emit := func() {
		s := strings.TrimRightFunc(builder.String(), unicode.IsSpace)
		lines = append(lines, wrappedLine{content: s, width: width(s)})
		builder.Reset()
	}
	// 行首空白不计入宽度
	fits := func(token string) bool {
		cand := strings.TrimRightFunc(builder.String()+token, unicode.IsSpace)
		return width(cand) <= limit
	}

	for _, token := range tokenize(content) {
		if token == "\n" {
			emit()
			continue
		}
		isSpace := strings.TrimSpace(token) == ""
		if isSpace {
			if builder.Len() > 0 {
				builder.WriteString(token)
			}
			continue
		}
		if builder.Len() > 0 && !fits(token) {
			emit()
		}
		if width(token) <= limit {
			builder.WriteString(token)
			continue
		}
		for _, chunk := range splitTokenByWidth(token, limit, width) {
			if builder.Len() > 0 && !fits(chunk) {
				emit()
			}
			builder.WriteString(chunk)
		}
	}
	emit()
	return lines
}

func tokenize(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			tokens = append(tokens, "\n")
			lastWasSpace = false
			continue
		}
		isSpace := unicode.IsSpace(r)
		if builder.Len() == 0 {
			lastWasSpace = isSpace
		} else if lastWasSpace != isSpace {
			flush()
			lastWasSpace = isSpace
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

func splitTokenByWidth(token string, limit float64, width widthFunc) []string {
	if limit <= 0 || limit == math.MaxFloat64 {
		return []string{token}
	}
	var parts []string
	var current []rune
	for _, r := range token {
		current = append(current, r)
		if len(current) > 1 && width(string(current)) > limit {
			parts = append(parts, string(current[:len(current)-1]))
			current = current[len(current)-1:]
		}
	}
	if len(current) > 0 {
		parts = append(parts, string(current))
	}
	return parts
}
