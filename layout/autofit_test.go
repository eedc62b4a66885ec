package layout

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"
)

// fixedMeasurer 是测试用的确定性测量后端：每个字符宽度固定为 advance×字号，按空格贪心换行。
type fixedMeasurer struct {
	advance float64
	calls   int
}

func (m *fixedMeasurer) Measure(text string, _ FontResource, size, lineHeight, maxWidth float64) (Measurement, error) {
	m.calls++
	adv := size * m.advance
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		cur := ""
		for _, w := range strings.Fields(para) {
			cand := w
			if cur != "" {
				cand = cur + " " + w
			}
			if cur != "" && float64(utf8.RuneCountInString(cand))*adv > maxWidth {
				lines = append(lines, cur)
				cur = w
				continue
			}
			cur = cand
		}
		lines = append(lines, cur)
	}
	width := 0.0
	for _, l := range lines {
		width = math.Max(width, float64(utf8.RuneCountInString(l))*adv)
	}
	return Measurement{WidthPx: width, HeightPx: float64(len(lines)) * lineHeight, LineCount: len(lines), Lines: lines}, nil
}

var captionLimits = TextLimits{MinFontSizePx: 16, DefaultFontSizePx: 32, MaxLines: 3, LineHeight: 1.2}

// TestAutofitShortTextKeepsDefault 短文本直接使用默认字号，不进入二分。
func TestAutofitShortTextKeepsDefault(t *testing.T) {
	m := &fixedMeasurer{advance: 0.6}
	tl, err := Autofit(m, "Hi", FontResource{}, BoxSize{WidthPx: 200, HeightPx: 100}, captionLimits)
	if err != nil {
		t.Fatalf("autofit 失败: %v", err)
	}
	if tl.FontSizePx != 32 || tl.Overflowed {
		t.Fatalf("期望默认字号 32 且未溢出，实际 %+v", tl)
	}
	if m.calls != 1 {
		t.Fatalf("默认字号可用时只应测量一次，实际 %d 次", m.calls)
	}
}

// TestAutofitOverflowScenario 长文本在 200px 宽、40px 高的框内即使 16px 也放不下。
func TestAutofitOverflowScenario(t *testing.T) {
	m := &fixedMeasurer{advance: 0.6}
	text := "A very very very long caption that cannot possibly fit"
	tl, err := Autofit(m, text, FontResource{}, BoxSize{WidthPx: 200, HeightPx: 40}, captionLimits)
	if err != nil {
		t.Fatalf("autofit 失败: %v", err)
	}
	if !tl.Overflowed || tl.FontSizePx != 16 {
		t.Fatalf("期望 overflowed=true 且字号 16，实际 %+v", tl)
	}
}

// TestAutofitLargestFittingSize 返回的字号可用，且大一号不可用。
func TestAutofitLargestFittingSize(t *testing.T) {
	m := &fixedMeasurer{advance: 0.6}
	box := BoxSize{WidthPx: 240, HeightPx: 120}
	text := "Collected Stories of the Northern Coast"
	tl, err := Autofit(m, text, FontResource{}, box, captionLimits)
	if err != nil {
		t.Fatalf("autofit 失败: %v", err)
	}
	if tl.Overflowed {
		t.Fatalf("不应溢出: %+v", tl)
	}
	if tl.FontSizePx >= 32 {
		t.Fatalf("该文本在默认字号下不应放得下: %+v", tl)
	}
	fits := func(size float64) bool {
		lh := size * captionLimits.LineHeight
		meas, _ := m.Measure(text, FontResource{}, size, lh, box.WidthPx)
		return meas.WidthPx <= box.WidthPx && meas.HeightPx <= math.Min(box.HeightPx, lh*3) && meas.LineCount <= 3
	}
	if !fits(tl.FontSizePx) || fits(tl.FontSizePx+1) {
		t.Fatalf("字号 %g 不是最大可用字号", tl.FontSizePx)
	}
}

// TestAutofitIdempotent 相同输入两次运行结果一致。
func TestAutofitIdempotent(t *testing.T) {
	m := &fixedMeasurer{advance: 0.55}
	box := BoxSize{WidthPx: 180, HeightPx: 70}
	text := "The Complete Works\nVolume Two"
	a, err := Autofit(m, text, FontResource{}, box, captionLimits)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Autofit(m, text, FontResource{}, box, captionLimits)
	if err != nil {
		t.Fatal(err)
	}
	if a.FontSizePx != b.FontSizePx || a.LineCount != b.LineCount {
		t.Fatalf("两次结果不一致: %+v vs %+v", a, b)
	}
}

// TestAutofitBounds 字号不小于下限；未溢出时行数不超过上限。
func TestAutofitBounds(t *testing.T) {
	m := &fixedMeasurer{advance: 0.6}
	texts := []string{"x", "Short", "Two words", "A somewhat longer title for a spine", "Line one\nLine two\nLine three\nLine four"}
	boxes := []BoxSize{{60, 20}, {120, 60}, {300, 200}, {40, 400}}
	limits := []TextLimits{captionLimits, {MinFontSizePx: 8, DefaultFontSizePx: 28, MaxLines: 2, LineHeight: 1.15}, {MinFontSizePx: 6, DefaultFontSizePx: 14, MaxLines: 1, LineHeight: 1.2}}
	for _, text := range texts {
		for _, box := range boxes {
			for _, lim := range limits {
				tl, err := Autofit(m, text, FontResource{}, box, lim)
				if err != nil {
					t.Fatal(err)
				}
				if tl.FontSizePx < float64(lim.MinFontSizePx) {
					t.Fatalf("%q %v: 字号 %g 小于下限", text, box, tl.FontSizePx)
				}
				if !tl.Overflowed && tl.LineCount > lim.MaxLines {
					t.Fatalf("%q %v: 行数 %d 超过上限 %d", text, box, tl.LineCount, lim.MaxLines)
				}
			}
		}
	}
}

func TestNormalizeTextCapsLines(t *testing.T) {
	got := NormalizeText("one\r\ntwo\rthree\nfour", 2)
	if got != "one\ntwo three four" {
		t.Fatalf("换行截断错误: %q", got)
	}
	if got := NormalizeText("a\nb", 3); got != "a\nb" {
		t.Fatalf("未超限时不应修改: %q", got)
	}
}

func TestAutofitRequiresMeasurer(t *testing.T) {
	if _, err := Autofit(nil, "x", FontResource{}, BoxSize{WidthPx: 10, HeightPx: 10}, captionLimits); err == nil {
		t.Fatalf("缺少 Measurer 时应报错")
	}
}
