package preview

import (
	"github.com/ByLCY/jacket/artwork"
	"github.com/ByLCY/jacket/job"
	"github.com/ByLCY/jacket/renderer"
)

// DefaultThumbnailPx 是预览原图最长边的像素上限。
const DefaultThumbnailPx = 1600

// Render 由快照合成预览并输出 SVG。原图以缩略图嵌入，几何不变。
func Render(snap *job.Snapshot, c Container, r renderer.SceneRenderer, thumbnailPx int) ([]byte, Scene, error) {
	scene, err := Compose(snap.Frame, c)
	if err != nil {
		return nil, Scene{}, err
	}
	res := snap.Resources()
	if snap.Artwork != nil {
		if thumbnailPx <= 0 {
			thumbnailPx = DefaultThumbnailPx
		}
		img, err := artwork.ThumbnailResource(snap.Artwork, job.ArtworkResourceName, thumbnailPx)
		if err != nil {
			return nil, Scene{}, err
		}
		res.Images[job.ArtworkResourceName] = img
	}
	out, err := r.RenderSVG(scene.Page(), res)
	if err != nil {
		return nil, Scene{}, err
	}
	return out, scene, nil
}
