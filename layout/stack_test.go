package layout

import (
	"math"
	"testing"
)

// TestStackTwoBooks 两本书 30mm/40mm，间距 2mm ⇒ 总宽 72mm。
func TestStackTwoBooks(t *testing.T) {
	books := []BookSpec{
		{ID: "a", SpineWidthMm: 30, CoverWidthMm: 150, HeightMm: 200},
		{ID: "b", SpineWidthMm: 40, CoverWidthMm: 150, HeightMm: 210},
	}
	geo := ComputeStack(books, 2)
	if geo.TotalWidthMm != 72 {
		t.Fatalf("总宽期望 72mm，实际 %g", geo.TotalWidthMm)
	}
	if geo.MaxHeightMm != 210 {
		t.Fatalf("最大高度期望 210mm，实际 %g", geo.MaxHeightMm)
	}
	if geo.Books[0].CenterMm != 15 || geo.Books[1].CenterMm != 49 {
		t.Fatalf("中心位置错误: %g, %g", geo.Books[0].CenterMm, geo.Books[1].CenterMm)
	}
	if geo.Books[1].LeftMm != 32 {
		t.Fatalf("第二本书左边缘期望 32mm，实际 %g", geo.Books[1].LeftMm)
	}
}

// TestStackTotalWidthInvariant 验证 totalWidth = Σspine + gap×(n−1)。
func TestStackTotalWidthInvariant(t *testing.T) {
	spines := []float64{12.5, 30, 8, 44.25, 19, 27}
	for n := 1; n <= len(spines); n++ {
		var books []BookSpec
		sum := 0.0
		for i := 0; i < n; i++ {
			books = append(books, BookSpec{ID: string(rune('a' + i)), SpineWidthMm: spines[i], CoverWidthMm: 100, HeightMm: 150 + float64(i)})
			sum += spines[i]
		}
		for _, gap := range []float64{0, 1.5, 3} {
			geo := ComputeStack(books, gap)
			want := sum + gap*float64(n-1)
			if math.Abs(geo.TotalWidthMm-want) > 1e-9 {
				t.Fatalf("n=%d gap=%g: 总宽期望 %g，实际 %g", n, gap, want, geo.TotalWidthMm)
			}
			last := geo.Books[n-1]
			if math.Abs(last.LeftMm+last.SpineWidthMm-geo.TotalWidthMm) > 1e-9 {
				t.Fatalf("n=%d: 最后一本书之后不应再加间距", n)
			}
		}
	}
}

// TestStackMonotonic 任意一本书变宽或变高，总宽/总高不减。
func TestStackMonotonic(t *testing.T) {
	books := []BookSpec{
		{ID: "a", SpineWidthMm: 20, CoverWidthMm: 100, HeightMm: 180},
		{ID: "b", SpineWidthMm: 25, CoverWidthMm: 100, HeightMm: 200},
	}
	base := ComputeStack(books, 2)
	for i := range books {
		grown := append([]BookSpec(nil), books...)
		grown[i].SpineWidthMm += 5
		grown[i].HeightMm += 10
		geo := ComputeStack(grown, 2)
		if geo.TotalWidthMm < base.TotalWidthMm || geo.MaxHeightMm < base.MaxHeightMm {
			t.Fatalf("书 %d 变大后书堆尺寸反而减小", i)
		}
	}
}

// TestStackEmptyFloorsPixels n=0 时宽度为 0，像素尺寸至少 1。
func TestStackEmptyFloorsPixels(t *testing.T) {
	geo := ComputeStack(nil, 2)
	if geo.TotalWidthMm != 0 {
		t.Fatalf("空书堆宽度应为 0，实际 %g", geo.TotalWidthMm)
	}
	if geo.WidthPx != 1 || geo.HeightPx != 1 {
		t.Fatalf("像素尺寸应至少为 1，实际 %gx%g", geo.WidthPx, geo.HeightPx)
	}
}

func TestBookSpecValidate(t *testing.T) {
	cases := []struct {
		name  string
		book  BookSpec
		field string
	}{
		{"ok", BookSpec{SpineWidthMm: 30, CoverWidthMm: 150, HeightMm: 265}, ""},
		{"too tall", BookSpec{SpineWidthMm: 30, CoverWidthMm: 150, HeightMm: 265.5}, "heightMm"},
		{"too wide", BookSpec{SpineWidthMm: 30, CoverWidthMm: 186, HeightMm: 200}, "coverWidthMm"},
		{"zero spine", BookSpec{SpineWidthMm: 0, CoverWidthMm: 150, HeightMm: 200}, "spineWidthMm"},
	}
	for _, c := range cases {
		err := c.book.Validate(DefaultPhysicalLimits)
		if c.field == "" {
			if err != nil {
				t.Fatalf("%s: 不应报错: %v", c.name, err)
			}
			continue
		}
		de, ok := err.(*DimensionError)
		if !ok || de.Field != c.field {
			t.Fatalf("%s: 期望字段 %s 报错，实际 %v", c.name, c.field, err)
		}
	}
}
