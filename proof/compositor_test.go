package proof

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/jacket/job"
	"github.com/ByLCY/jacket/layout"
)

type lineMeasurer struct{}

func (lineMeasurer) Measure(text string, _ layout.FontResource, size, lh, _ float64) (layout.Measurement, error) {
	lines := strings.Split(text, "\n")
	w := 0.0
	for _, l := range lines {
		w = math.Max(w, float64(len(l))*size*0.5)
	}
	return layout.Measurement{WidthPx: w, HeightPx: float64(len(lines)) * lh, LineCount: len(lines), Lines: lines}, nil
}

func newSession(t *testing.T) *job.Session {
	t.Helper()
	s, err := job.New(job.Options{
		Name:     "Shelf",
		Config:   job.DefaultConfig(),
		Measurer: lineMeasurer{},
		Books: []layout.BookSpec{
			{SpineWidthMm: 30, CoverWidthMm: 150, HeightMm: 200, ColorToken: "#aa3333", ShortText: "Dune", ISBN: "9780441013593"},
			{SpineWidthMm: 40, CoverWidthMm: 150, HeightMm: 210, ColorToken: "navy", ShortText: "Messiah"},
			{SpineWidthMm: 22, CoverWidthMm: 140, HeightMm: 190, ColorToken: "teal", SmallText: "Herbert"},
		},
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 330, 510))))
	require.NoError(t, (<-s.LoadArtwork(buf.Bytes(), "art.png")).Err)
	s.SetCaption("The ${job.name} Collection")
	return s
}

func compose(t *testing.T, s *job.Session) *layout.Document {
	t.Helper()
	snap, err := s.Snapshot()
	require.NoError(t, err)
	defer snap.Release()
	doc, err := NewCompositor(DefaultConfig(), nil).Compose(snap)
	require.NoError(t, err)
	return doc
}

func TestPageScaleIsDPIOverScreenDensity(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 300.0/96.0, cfg.PageScale(), 1e-12)
	assert.InDelta(t, 431.8, cfg.PageWidthMm(), 1e-9)
	assert.InDelta(t, 279.4, cfg.PageHeightMm(), 1e-9)
}

func TestPageCountEqualsBookCount(t *testing.T) {
	s := newSession(t)
	doc := compose(t, s)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, []string{"9780441013593"}, doc.Meta.Keywords)

	require.NoError(t, s.RemoveBook(s.Books()[1].ID))
	assert.Len(t, compose(t, s).Pages, 2, "删除一本书后恰好少一页")
}

func TestOwnSpineCenteredOtherSpinesHidden(t *testing.T) {
	s := newSession(t)
	doc := compose(t, s)
	for _, page := range doc.Pages {
		var own *layout.Rect
		for i, r := range page.Rects {
			if r.BookID == page.BookID {
				own = &page.Rects[i]
				continue
			}
			assert.True(t, r.Hidden, "其他书的书脊应隐藏: %s on %s", r.BookID, page.BookID)
		}
		require.NotNil(t, own)
		assert.False(t, own.Hidden)
		assert.Nil(t, own.FillColor)
		assert.InDelta(t, page.Width/2, own.X+own.Width/2, 1e-6, "书脊应位于页面中心")

		for _, tb := range page.Texts {
			assert.True(t, tb.BookID == "" || tb.BookID == page.BookID, "只保留本书的书脊文本")
		}
	}
}

func TestProofMatchesPreviewGeometry(t *testing.T) {
	s := newSession(t)
	doc := compose(t, s)
	frame, err := s.Frame()
	require.NoError(t, err)
	art, ok := frame.Artwork()
	require.True(t, ok)

	// 打样与屏幕保持同一物理比例：1 屏幕像素 = 25.4/96 mm
	for _, page := range doc.Pages {
		require.Len(t, page.Images, 1)
		assert.InDelta(t, layout.PxToMm(art.Width), page.Images[0].Width, 1e-6)
		assert.InDelta(t, layout.PxToMm(art.Height), page.Images[0].Height, 1e-6)
	}
	// 相邻两页原图的横向位移恰好等于两本书中心的距离
	b0, _ := frame.Stack.Find(doc.Pages[0].BookID)
	b1, _ := frame.Stack.Find(doc.Pages[1].BookID)
	shift := doc.Pages[0].Images[0].X - doc.Pages[1].Images[0].X
	assert.InDelta(t, b1.CenterMm-b0.CenterMm, shift, 1e-6)
}

func TestCoverGuidesAtSpineAndCoverEdges(t *testing.T) {
	s := newSession(t)
	doc := compose(t, s)
	page := doc.Pages[0]
	book := s.Books()[0]
	var xs []float64
	for _, l := range page.Lines {
		if l.Kind == "spine" || l.Kind == "cover" {
			xs = append(xs, l.X1)
		}
	}
	cx := page.Width / 2
	want := []float64{cx - book.SpineWidthMm/2, cx + book.SpineWidthMm/2, cx - book.SpineWidthMm/2 - book.CoverWidthMm, cx + book.SpineWidthMm/2 + book.CoverWidthMm}
	require.Len(t, xs, len(want))
	for i := range want {
		assert.InDelta(t, want[i], xs[i], 1e-6)
	}
}

type fakeRenderer struct {
	pages int
	err   error
}

func (f *fakeRenderer) Render(doc *layout.Document) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.pages = len(doc.Pages)
	return []byte("%PDF-fake"), nil
}

func TestExporterThroughSession(t *testing.T) {
	s := newSession(t)
	r := &fakeRenderer{}
	out, err := s.Export(context.Background(), &Exporter{Compositor: NewCompositor(DefaultConfig(), nil), Renderer: r})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fake", string(out))
	assert.Equal(t, 3, r.pages)

	r.err = errors.New("disk full")
	_, err = s.Export(context.Background(), &Exporter{Compositor: NewCompositor(DefaultConfig(), nil), Renderer: r})
	var ee *job.ExportError
	require.ErrorAs(t, err, &ee)
	assert.True(t, ee.Retryable)
}
