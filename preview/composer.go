// Package preview 把书堆画面缩放进预览容器，并负责容器尺寸的推送式观察。
package preview

import (
	"fmt"
	"math"

	"github.com/ByLCY/jacket/layout"
)

// Container 是预览容器的可用尺寸（像素）。
type Container struct {
	WidthPx  float64 `json:"widthPx"`
	HeightPx float64 `json:"heightPx"`
}

// Valid 报告容器是否可以容纳画面。
func (c Container) Valid() bool { return c.WidthPx > 0 && c.HeightPx > 0 }

// Scene 是容器像素坐标下的预览画面。
type Scene struct {
	Container Container        `json:"container"`
	Scale     float64          `json:"scale"`
	Transform layout.Affine    `json:"transform"`
	Stack     layout.Rect      `json:"stack"`
	Artwork   *layout.ImageBox `json:"artwork,omitempty"`
	Spines    []layout.Rect    `json:"spines"`
	Guides    []layout.Line    `json:"guides"`
	Texts     []layout.TextBox `json:"texts"`
	Warnings  []layout.Warning `json:"warnings,omitempty"`
}

// Scale 返回 previewScale = min(cw/sw, ch/sh, 1)：只缩小，不放大。
func Scale(stack layout.StackGeometry, c Container) float64 {
	if !c.Valid() || stack.WidthPx <= 0 || stack.HeightPx <= 0 {
		return 1
	}
	return math.Min(math.Min(c.WidthPx/stack.WidthPx, c.HeightPx/stack.HeightPx), 1)
}

// Compose 将画面居中缩放到容器中。
func Compose(frame layout.Frame, c Container) (Scene, error) {
	if !c.Valid() {
		return Scene{}, fmt.Errorf("预览容器尺寸无效: %gx%g", c.WidthPx, c.HeightPx)
	}
	scale := Scale(frame.Stack, c)
	a := layout.Affine{
		Scale: scale,
		TX:    (c.WidthPx - frame.Stack.WidthPx*scale) / 2,
		TY:    (c.HeightPx - frame.Stack.HeightPx*scale) / 2,
	}
	s := Scene{
		Container: c,
		Scale:     scale,
		Transform: a,
		Stack:     a.ProjectRect(layout.Rect{Kind: "stack", Width: frame.Stack.WidthPx, Height: frame.Stack.HeightPx, StrokeColor: layout.ColorGuide}),
		Spines:    make([]layout.Rect, 0, len(frame.Spines)),
		Guides:    make([]layout.Line, 0, len(frame.Guides)),
		Texts:     make([]layout.TextBox, 0, len(frame.Texts)),
		Warnings:  append([]layout.Warning(nil), frame.Warnings...),
	}
	if img, ok := frame.Artwork(); ok {
		img = a.ProjectImage(img)
		s.Artwork = &img
	}
	for _, r := range frame.Spines {
		s.Spines = append(s.Spines, a.ProjectRect(r))
	}
	for _, l := range frame.Guides {
		s.Guides = append(s.Guides, a.ProjectLine(l))
	}
	for _, t := range frame.Texts {
		s.Texts = append(s.Texts, a.ProjectText(t))
	}
	return s, nil
}

// Page 把场景转换为毫米坐标的单页，供矢量渲染器输出。
func (s Scene) Page() layout.Page {
	toMm := layout.Affine{Scale: 1 / layout.PxPerMm}
	p := layout.Page{
		Width:  layout.PxToMm(s.Container.WidthPx),
		Height: layout.PxToMm(s.Container.HeightPx),
		Scale:  s.Scale,
		Rects:  make([]layout.Rect, 0, len(s.Spines)+1),
		Lines:  make([]layout.Line, 0, len(s.Guides)),
		Texts:  make([]layout.TextBox, 0, len(s.Texts)),
	}
	if s.Artwork != nil {
		p.Images = append(p.Images, toMm.ProjectImage(*s.Artwork))
	}
	for _, r := range s.Spines {
		p.Rects = append(p.Rects, toMm.ProjectRect(r))
	}
	p.Rects = append(p.Rects, toMm.ProjectRect(s.Stack))
	for _, l := range s.Guides {
		p.Lines = append(p.Lines, toMm.ProjectLine(l))
	}
	for _, t := range s.Texts {
		p.Texts = append(p.Texts, toMm.ProjectText(t))
	}
	return p
}
