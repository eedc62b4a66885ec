package job

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ByLCY/jacket/artwork"
)

// ArtworkResourceName 是原图在渲染资源表中的名称。
const ArtworkResourceName = "artwork"

// LoadResult 报告一次异步原图加载的结果。
type LoadResult struct {
	Asset      *artwork.Asset
	Advisory   *artwork.Advisory
	Superseded bool // 被更新的加载或会话关闭取代，结果已丢弃
	Err        error
}

// LoadArtwork 异步解码上传的原图。完成后原子替换当前原图；
// 若期间有更新的加载开始或会话关闭，本次结果被丢弃。
// 非图片载荷是校验错误，解码失败是资源错误，两者都保留之前的原图。
func (s *Session) LoadArtwork(payload []byte, name string) <-chan LoadResult {
	return s.load(func() (*artwork.Asset, error) {
		return artwork.Accept(payload, name, artwork.WithMaxPixels(s.cfg.Advice.MaxPixels))
	})
}

// LoadArtworkRef 按引用获取并解码原图，其余语义同 LoadArtwork。
func (s *Session) LoadArtworkRef(ctx context.Context, f *artwork.Fetcher, ref string) <-chan LoadResult {
	return s.load(func() (*artwork.Asset, error) {
		return f.FetchAsset(ctx, ref, artwork.WithMaxPixels(s.cfg.Advice.MaxPixels))
	})
}

func (s *Session) load(acquire func() (*artwork.Asset, error)) <-chan LoadResult {
	out := make(chan LoadResult, 1)
	// closed 与 inflight.Add 在同一把锁下，Close 之后不会再有新的解码登记
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		out <- LoadResult{Superseded: true, Err: ErrClosed}
		close(out)
		return out
	}
	gen := s.gen.Add(1)
	s.inflight.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.inflight.Done()
		defer close(out)
		out <- s.finishLoad(gen, acquire)
	}()
	return out
}

func (s *Session) finishLoad(gen uint64, acquire func() (*artwork.Asset, error)) LoadResult {
	asset, err := acquire()
	if err != nil {
		if errors.Is(err, artwork.ErrNotImage) {
			err = &ValidationError{Field: "artwork", Message: "the uploaded file is not an image", Err: err}
		}
		if s.gen.Load() != gen || s.closed.Load() {
			return LoadResult{Superseded: true, Err: err}
		}
		s.logger.Warn("原图加载失败，保留之前的原图", zap.Error(err))
		return LoadResult{Err: err}
	}

	s.mu.Lock()
	if s.gen.Load() != gen || s.closed.Load() {
		s.mu.Unlock()
		asset.Handle().Release()
		s.logger.Debug("丢弃过期的原图加载", zap.String("asset", asset.ID))
		return LoadResult{Superseded: true}
	}
	prev := s.asset
	s.asset = asset
	s.advisory = nil
	if adv, ok := artwork.Advise(asset, s.cfg.Advice); ok {
		s.advisory = &adv
	}
	advisory := s.advisory
	s.pipeline.SetArtwork(asset.Dimensions())
	s.mu.Unlock()

	// 画面已经切换到新原图，旧句柄只剩仍在使用它的快照持有的引用
	if prev != nil {
		prev.Handle().Release()
	}
	if advisory != nil {
		s.logger.Warn("原图分辨率偏低", zap.Float64("effective_dpi", advisory.EffectiveDPI), zap.Float64("min_dpi", advisory.MinDPI))
	}
	s.logger.Info("原图已更新", zap.String("asset", asset.ID), zap.Int("width", asset.Width), zap.Int("height", asset.Height))
	return LoadResult{Asset: asset, Advisory: advisory}
}

// Artwork 返回当前原图，可能为 nil。返回值不增加引用。
func (s *Session) Artwork() *artwork.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset
}

// Advisory 返回当前原图的低分辨率提示。
func (s *Session) Advisory() (artwork.Advisory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advisory == nil {
		return artwork.Advisory{}, false
	}
	return *s.advisory, true
}
