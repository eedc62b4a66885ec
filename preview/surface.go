package preview

import (
	"sync"

	"github.com/ByLCY/jacket/layout"
)

// Surface 观察预览容器尺寸，尺寸变化时推送给订阅者（不轮询）。
type Surface struct {
	mu        sync.Mutex
	size      Container
	next      int
	listeners map[int]func(Container)
}

// NewSurface 以初始尺寸创建容器观察者。
func NewSurface(initial Container) *Surface {
	return &Surface{size: initial, listeners: map[int]func(Container){}}
}

// Size 返回当前尺寸。
func (s *Surface) Size() Container {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Listeners 返回当前订阅者数量。
func (s *Surface) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Subscribe 注册回调，并立即以当前尺寸回调一次。返回的取消函数可重复调用。
func (s *Surface) Subscribe(fn func(Container)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	size := s.size
	s.mu.Unlock()

	if size.Valid() {
		fn(size)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Resize 更新尺寸；尺寸未变时不通知。
func (s *Surface) Resize(c Container) {
	s.mu.Lock()
	if c == s.size {
		s.mu.Unlock()
		return
	}
	s.size = c
	fns := make([]func(Container), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	if !c.Valid() {
		return
	}
	for _, fn := range fns {
		fn(c)
	}
}

// FrameSource 提供当前画面，job.Session 实现了它。
type FrameSource interface {
	Frame() (layout.Frame, error)
}

// Mount 在容器尺寸变化时重新合成预览并交给 onScene。
// 返回的 unmount 解除订阅，之后不会再有回调。
func Mount(surface *Surface, src FrameSource, onScene func(Scene, error)) (unmount func()) {
	return surface.Subscribe(func(c Container) {
		frame, err := src.Frame()
		if err != nil {
			onScene(Scene{}, err)
			return
		}
		onScene(Compose(frame, c))
	})
}
