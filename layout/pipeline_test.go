package layout

import (
	"math"
	"testing"
)

func newTestPipeline() (*Pipeline, *fixedMeasurer) {
	m := &fixedMeasurer{advance: 0.6}
	p := NewPipeline(DefaultPipelineConfig(), m)
	p.SetBooks([]BookSpec{
		{ID: "a", SpineWidthMm: 30, CoverWidthMm: 150, HeightMm: 200, ColorToken: "#aa3333", ShortText: "Dune", SmallText: "Herbert"},
		{ID: "b", SpineWidthMm: 40, CoverWidthMm: 150, HeightMm: 210, ColorToken: "navy", ShortText: "Children of Dune"},
	})
	p.SetArtwork(ArtworkSize{PixelWidth: 3300, PixelHeight: 5100})
	p.SetCaption("The Dune Saga")
	return p, m
}

// TestPipelineMemoizes 未改变输入时不重算任何阶段。
func TestPipelineMemoizes(t *testing.T) {
	p, _ := newTestPipeline()
	if _, err := p.Frame(); err != nil {
		t.Fatal(err)
	}
	before := p.Stats()
	if _, err := p.Frame(); err != nil {
		t.Fatal(err)
	}
	if after := p.Stats(); after != before {
		t.Fatalf("输入未变时不应重算: before=%+v after=%+v", before, after)
	}

	// 只改视口：几何与文本不重算
	p.SetViewport(ViewportState{ZoomPercent: 150, OffsetXPercent: 30})
	if _, err := p.Frame(); err != nil {
		t.Fatal(err)
	}
	s := p.Stats()
	if s.Geometry != before.Geometry || s.Text != before.Text {
		t.Fatalf("视口变化不应触发几何/文本重算: %+v", s)
	}
	if s.Transform != before.Transform+1 {
		t.Fatalf("视口变化应恰好重算一次 transform: %+v", s)
	}
}

// TestPipelineTextRecomputedPerField 修改一本书的标题只重排该字段。
func TestPipelineTextRecomputedPerField(t *testing.T) {
	p, _ := newTestPipeline()
	if _, err := p.Frame(); err != nil {
		t.Fatal(err)
	}
	before := p.Stats().Text
	books := p.Books()
	books[1].ShortText = "God Emperor of Dune"
	p.SetBooks(books)
	f, err := p.Frame()
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Stats().Text - before; got != 1 {
		t.Fatalf("只应重排 1 个字段，实际 %d", got)
	}
	if len(f.Texts) != 4 {
		t.Fatalf("期望 4 个文本框（标题 + 3 个书脊文本），实际 %d", len(f.Texts))
	}
}

// TestPipelineReclampOnArtworkChange 更换原图后视口被重新收敛，而非重置。
func TestPipelineReclampOnArtworkChange(t *testing.T) {
	p, _ := newTestPipeline()
	state := p.SetViewport(ViewportState{ZoomPercent: 150, OffsetXPercent: -40, OffsetYPercent: 50})
	if state.ZoomPercent != 150 || state.OffsetXPercent != -40 {
		t.Fatalf("有效视口被修改: %+v", state)
	}
	// 极宽原图：最小缩放仍然较小，用户的 150% 保留
	p.SetArtwork(ArtworkSize{PixelWidth: 9000, PixelHeight: 3000})
	if got := p.Viewport(); got.ZoomPercent != 150 || got.OffsetXPercent != -40 {
		t.Fatalf("仍在范围内的视口不应被重置: %+v", got)
	}
	// 极窄原图：最小缩放变为 200，缩放被抬高
	p.SetArtwork(ArtworkSize{PixelWidth: 300, PixelHeight: 5000})
	if got := p.Viewport(); got.ZoomPercent != 200 {
		t.Fatalf("缩放应被收敛到 200，实际 %+v", got)
	}
	f, err := p.Frame()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, w := range f.Warnings {
		if w.Code == WarnCoverageCapped {
			found = true
		}
	}
	if !found {
		t.Fatalf("包边余量不可达时应给出提示: %+v", f.Warnings)
	}
}

// TestFrameSpineTextBoxes 每个书脊文本的目标宽度来自各自的书高，而非共享标题宽度。
func TestFrameSpineTextBoxes(t *testing.T) {
	p, _ := newTestPipeline()
	f, err := p.Frame()
	if err != nil {
		t.Fatal(err)
	}
	stack := p.Geometry()
	for _, tb := range f.Texts {
		switch tb.Field {
		case FieldCaption:
			_, _, box := CaptionBox(stack)
			if tb.Width != box.WidthPx {
				t.Fatalf("共享标题宽度错误: %g", tb.Width)
			}
		case FieldSpineTitle:
			place, _ := stack.Find(tb.BookID)
			if math.Abs(tb.X+tb.Width/2-place.CenterPx()) > 1e-9 {
				t.Fatalf("书脊标题应以书脊中心为轴: %+v", tb)
			}
			if tb.Rotate != -90 {
				t.Fatalf("书脊标题应旋转 -90°")
			}
		}
	}
}
