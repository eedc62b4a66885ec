package layout

import (
	"fmt"
	"math"
	"strings"
)

// measureEpsilon absorbs sub-pixel rounding from font metrics.
const measureEpsilon = 0.01

// Measurement is what a text measurement backend reports for one candidate size.
// LineCount is the number of distinct line fragments actually produced by
// wrapping, not an estimate derived from the height.
type Measurement struct {
	WidthPx   float64  `json:"widthPx"`
	HeightPx  float64  `json:"heightPx"`
	LineCount int      `json:"lineCount"`
	Lines     []string `json:"lines"`
}

// Measurer wraps and measures text at a given size inside maxWidthPx.
type Measurer interface {
	Measure(text string, font FontResource, fontSizePx, lineHeightPx, maxWidthPx float64) (Measurement, error)
}

// TextLimits bounds the autofit search for one text field.
type TextLimits struct {
	MinFontSizePx     int     `json:"minFontSizePx" mapstructure:"min_font_size_px"`
	DefaultFontSizePx int     `json:"defaultFontSizePx" mapstructure:"default_font_size_px"`
	MaxLines          int     `json:"maxLines" mapstructure:"max_lines"`
	LineHeight        float64 `json:"lineHeight" mapstructure:"line_height"` // multiplier
}

func (l TextLimits) normalized() TextLimits {
	if l.MinFontSizePx < 1 {
		l.MinFontSizePx = 1
	}
	if l.DefaultFontSizePx < l.MinFontSizePx {
		l.DefaultFontSizePx = l.MinFontSizePx
	}
	if l.MaxLines < 1 {
		l.MaxLines = 1
	}
	if l.LineHeight <= 0 {
		l.LineHeight = 1.2
	}
	return l
}

// BoxSize is a target box in reference pixels.
type BoxSize struct {
	WidthPx  float64 `json:"widthPx"`
	HeightPx float64 `json:"heightPx"`
}

// TextLayout is the autofit result for one text field.
type TextLayout struct {
	Text         string   `json:"text"`
	FontSizePx   float64  `json:"fontSizePx"`
	LineHeightPx float64  `json:"lineHeightPx"`
	LineCount    int      `json:"lineCount"`
	Overflowed   bool     `json:"overflowed"`
	Lines        []string `json:"lines,omitempty"`
	WidthPx      float64  `json:"widthPx"`
	HeightPx     float64  `json:"heightPx"`
}

// NormalizeText converts line endings to \n and folds line breaks past
// maxLines into spaces, so the text never asks for more lines than allowed.
func NormalizeText(text string, maxLines int) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if maxLines < 1 {
		maxLines = 1
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= maxLines {
		return text
	}
	head := lines[:maxLines-1]
	tail := strings.Join(lines[maxLines-1:], " ")
	return strings.Join(append(head, tail), "\n")
}

// Autofit picks the largest integer font size for which the wrapped text fits
// box and limits. The default size is tried first; otherwise the range
// [min, default-1] is bisected. When even the minimum size does not fit, the
// minimum is used and Overflowed is set.
func Autofit(m Measurer, text string, font FontResource, box BoxSize, limits TextLimits) (TextLayout, error) {
	if m == nil {
		return TextLayout{}, fmt.Errorf("layout: 缺少文本测量后端 Measurer")
	}
	lim := limits.normalized()
	text = NormalizeText(text, lim.MaxLines)
	if strings.TrimSpace(text) == "" {
		size := float64(lim.DefaultFontSizePx)
		return TextLayout{Text: text, FontSizePx: size, LineHeightPx: size * lim.LineHeight}, nil
	}

	try := func(size int) (TextLayout, bool, error) {
		fs := float64(size)
		lh := fs * lim.LineHeight
		meas, err := m.Measure(text, font, fs, lh, box.WidthPx)
		if err != nil {
			return TextLayout{}, false, fmt.Errorf("测量文本失败 (size=%dpx): %w", size, err)
		}
		limitH := math.Min(box.HeightPx, lh*float64(lim.MaxLines))
		ok := meas.WidthPx <= box.WidthPx+measureEpsilon &&
			meas.HeightPx <= limitH+measureEpsilon &&
			meas.LineCount <= lim.MaxLines
		return TextLayout{
			Text:         text,
			FontSizePx:   fs,
			LineHeightPx: lh,
			LineCount:    meas.LineCount,
			Lines:        meas.Lines,
			WidthPx:      meas.WidthPx,
			HeightPx:     meas.HeightPx,
		}, ok, nil
	}

	if res, ok, err := try(lim.DefaultFontSizePx); err != nil {
		return TextLayout{}, err
	} else if ok {
		return res, nil
	}

	var best *TextLayout
	lo, hi := lim.MinFontSizePx, lim.DefaultFontSizePx-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		res, ok, err := try(mid)
		if err != nil {
			return TextLayout{}, err
		}
		if ok {
			best = &res
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best != nil {
		return *best, nil
	}

	res, _, err := try(lim.MinFontSizePx)
	if err != nil {
		return TextLayout{}, err
	}
	res.Overflowed = true
	return res, nil
}
