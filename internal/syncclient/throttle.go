package syncclient

import (
	"sync"
	"time"

	"collaborative-coding/internal/domain"
)

// DefaultCursorWindow 是光标发送的默认节流窗口
const DefaultCursorWindow = 100 * time.Millisecond

// Throttle 是光标位置的首尾沿节流器。
// 窗口外的第一次移动立即发送；窗口内的移动只保留最新一个，在窗口结束时发送。
type Throttle struct {
	window time.Duration
	emit   func(domain.Position)

	mu      sync.Mutex
	last    time.Time
	pending *domain.Position
	timer   *time.Timer
	stopped bool
}

// NewThrottle 创建节流器，window <= 0 时使用 DefaultCursorWindow
func NewThrottle(window time.Duration, emit func(domain.Position)) *Throttle {
	if emit == nil {
		panic("emit func cannot be nil for Throttle")
	}
	if window <= 0 {
		window = DefaultCursorWindow
	}
	return &Throttle{window: window, emit: emit}
}

// Push 提交一次光标移动
func (t *Throttle) Push(pos domain.Position) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	now := time.Now()
	elapsed := now.Sub(t.last)
	if t.timer == nil && elapsed >= t.window {
		t.last = now
		t.mu.Unlock()
		t.emit(pos)
		return
	}

	t.pending = &pos
	if t.timer == nil {
		t.timer = time.AfterFunc(t.window-elapsed, t.flush)
	}
	t.mu.Unlock()
}

func (t *Throttle) flush() {
	t.mu.Lock()
	pos := t.pending
	t.pending = nil
	t.timer = nil
	if pos == nil || t.stopped {
		t.mu.Unlock()
		return
	}
	t.last = time.Now()
	t.mu.Unlock()
	t.emit(*pos)
}

// Stop 丢弃尚未发送的位置，之后的 Push 全部忽略
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
