// Package syncclient 是协作编码房间的客户端同步引擎。
// 它通过注入的 Editor、Channel、FileStore 与编辑器、实时通道、文件存储交互，
// 不依赖任何全局状态。
package syncclient

import (
	"context"

	"collaborative-coding/internal/domain"
)

// Editor 是同步引擎对编辑器控件的最小能力集合
type Editor interface {
	GetValue() string
	SetValue(content string)
	GetCursor() domain.Position
	// SetMarker 渲染 (或移动) 某个远程用户的光标标记
	SetMarker(cursor domain.Cursor)
}

// Channel 是实时通道的发送端，Emit 不等待任何确认
type Channel interface {
	Emit(event string, payload interface{}) error
}

// FileStore 是房间虚拟文件树的远程存储
type FileStore interface {
	ListFiles(ctx context.Context, roomID string) ([]domain.FileNode, error)
	UpsertFile(ctx context.Context, roomID string, node domain.FileNode) error
}
