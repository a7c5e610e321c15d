package syncclient

import (
	"sync"

	"collaborative-coding/internal/domain"
)

// Buffer 是一个纯内存的 Editor，供终端客户端使用
type Buffer struct {
	mu      sync.RWMutex
	value   string
	cursor  domain.Position
	markers map[string]domain.Cursor
}

func NewBuffer() *Buffer {
	return &Buffer{cursor: domain.Position{Line: 1, Column: 1}, markers: make(map[string]domain.Cursor)}
}

func (b *Buffer) GetValue() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value
}

func (b *Buffer) SetValue(content string) {
	b.mu.Lock()
	b.value = content
	b.mu.Unlock()
}

func (b *Buffer) GetCursor() domain.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cursor
}

// SetCursor 移动本地光标
func (b *Buffer) SetCursor(pos domain.Position) {
	b.mu.Lock()
	b.cursor = pos
	b.mu.Unlock()
}

func (b *Buffer) SetMarker(cursor domain.Cursor) {
	b.mu.Lock()
	b.markers[cursor.UserID] = cursor
	b.mu.Unlock()
}

// Marker 返回某个远程用户的光标标记
func (b *Buffer) Marker(userID string) (domain.Cursor, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.markers[userID]
	return c, ok
}
