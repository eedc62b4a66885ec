package binding

import (
	"testing"

	"github.com/ByLCY/jacket/layout"
)

func sampleBooks() []layout.BookSpec {
	return []layout.BookSpec{
		{ID: "book-1", SpineWidthMm: 30, CoverWidthMm: 150, HeightMm: 210, ISBN: "9780441013593", ShortText: "Dune"},
		{ID: "book-2", SpineWidthMm: 28.5, CoverWidthMm: 150, HeightMm: 210, ISBN: "9780593098233", ShortText: "Dune Messiah"},
	}
}

func TestInterpolateCaption(t *testing.T) {
	data := CaptionData("Shelf", sampleBooks())
	cases := []struct {
		in, want string
	}{
		{"The ${job.name} Collection", "The Shelf Collection"},
		{"${job.books} books", "2 books"},
		{"ISBN ${book.isbn}", "ISBN 9780441013593"},
		{"${books[2].short} #${books[2].index}", "Dune Messiah #2"},
		{"${books[2].spine}", "28.5mm"},
		{"${ book.short }", "Dune"},
		{"keep ${book.nope}", "keep ${book.nope}"},
		{"${books[3].isbn}", "${books[3].isbn}"},
		{"no placeholders", "no placeholders"},
	}
	for _, c := range cases {
		if got := Interpolate(c.in, data); got != c.want {
			t.Errorf("Interpolate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestInterpolateNilData(t *testing.T) {
	if got := Interpolate("${job.name}", nil); got != "${job.name}" {
		t.Fatalf("nil 数据时应保留占位符，实际 %q", got)
	}
}

func TestUnresolved(t *testing.T) {
	data := CaptionData("Shelf", sampleBooks())
	missing := Unresolved("${job.name} ${job.title} ${books[0].isbn}", data)
	if len(missing) != 2 || missing[0] != "job.title" || missing[1] != "books[0].isbn" {
		t.Fatalf("未解析的占位符错误: %v", missing)
	}
}
