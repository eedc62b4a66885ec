package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/jacket/artwork"
	"github.com/ByLCY/jacket/layout"
)

// Snapshot 是导出或预览时刻的不可变状态。它持有原图的一个引用，
// 用完必须 Release，原图句柄在最后一个引用释放后才会被回收。
type Snapshot struct {
	JobID    string
	Name     string
	Books    []layout.BookSpec
	Viewport layout.ViewportState
	Config   layout.PipelineConfig
	Frame    layout.Frame
	Artwork  *artwork.Asset

	release sync.Once
}

// Release 归还原图引用，可重复调用。
func (s *Snapshot) Release() {
	s.release.Do(func() {
		if s.Artwork != nil {
			s.Artwork.Handle().Release()
		}
	})
}

// Resources 返回渲染所需的字体与原图资源。
func (s *Snapshot) Resources() layout.ResourceSet {
	fonts := map[string]layout.FontResource{}
	for _, f := range []layout.FontResource{s.Config.Fonts.Caption, s.Config.Fonts.SpineTitle, s.Config.Fonts.SpineSmall} {
		if f.Name != "" {
			fonts[f.Name] = f
		}
	}
	images := map[string]layout.ImageResource{}
	if s.Artwork != nil {
		images[ArtworkResourceName] = s.Artwork.Resource(ArtworkResourceName)
	}
	return layout.ResourceSet{Fonts: fonts, Images: images}
}

// Snapshot 复制当前状态并获取原图引用。
func (s *Session) Snapshot() (*Snapshot, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	frame, err := s.frameLocked()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		JobID:    s.id,
		Name:     s.name,
		Books:    s.pipeline.Books(),
		Viewport: s.pipeline.Viewport(),
		Config:   s.pipeline.Config(),
		Frame:    frame,
	}
	if s.asset != nil && s.asset.Handle().Retain() {
		snap.Artwork = s.asset
	}
	return snap, nil
}

// Exporter 把快照编码为最终文件（例如多页 PDF）。
type Exporter interface {
	Export(ctx context.Context, snap *Snapshot) ([]byte, error)
}

// ExporterFunc 让普通函数实现 Exporter。
type ExporterFunc func(ctx context.Context, snap *Snapshot) ([]byte, error)

// Export 实现 Exporter。
func (f ExporterFunc) Export(ctx context.Context, snap *Snapshot) ([]byte, error) { return f(ctx, snap) }

// Export 串行导出：同一时刻最多一个导出，忙时立即返回 ErrExportInFlight。
// 导出基于调用时刻的快照，之后替换原图不影响本次结果。
// 失败时返回 *ExportError，不返回部分结果。
func (s *Session) Export(ctx context.Context, exp Exporter) ([]byte, error) {
	if !s.export.TryAcquire(1) {
		return nil, ErrExportInFlight
	}
	defer s.export.Release(1)

	snap, err := s.Snapshot()
	if err != nil {
		return nil, &ExportError{Err: err, Retryable: !errors.Is(err, ErrClosed)}
	}
	defer snap.Release()
	if snap.Artwork == nil {
		return nil, &ExportError{Err: ErrNoArtwork}
	}

	start := time.Now()
	out, err := exp.Export(ctx, snap)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.logger.Error("导出失败", zap.Error(err), zap.Int("books", len(snap.Books)))
		return nil, &ExportError{Err: err, Retryable: true}
	}
	s.logger.Info("导出完成",
		zap.Int("books", len(snap.Books)),
		zap.Int("bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}
