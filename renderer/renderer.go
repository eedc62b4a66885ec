package renderer

import "github.com/ByLCY/jacket/layout"

// Renderer 将打样文档输出为最终文件，例如多页 PDF。
// Render 返回生成的二进制数据以及可能的错误；失败时不返回部分结果。
type Renderer interface {
	Render(doc *layout.Document) ([]byte, error)
}

// SceneRenderer 将单页画面（例如预览场景）输出为矢量图。
type SceneRenderer interface {
	RenderSVG(page layout.Page, res layout.ResourceSet) ([]byte, error)
}
