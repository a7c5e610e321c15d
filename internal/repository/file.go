package repository

import (
	"context"

	"collaborative-coding/internal/domain"
)

// FileRepository 定义了房间虚拟文件树的存储操作。
// 所有按键查找都使用 domain.NodeKey，调用方负责传入规范化后的键。
type FileRepository interface {
	// FindByKey 按 (房间, 名称, 规范化路径) 查找节点，不存在时返回 ErrFileNotFound。
	FindByKey(ctx context.Context, roomPK uint, key domain.NodeKey) (*domain.FileNode, error)

	// Insert 插入新节点。若并发插入已抢先写入同一键，返回 ErrDuplicateEntry。
	Insert(ctx context.Context, node *domain.FileNode) error

	// UpdateContent 覆盖已有节点的内容 (后写者胜出，不做合并)。
	UpdateContent(ctx context.Context, node *domain.FileNode, content string) error

	// ListByRoom 返回房间内的全部节点，按创建顺序排列。
	ListByRoom(ctx context.Context, roomPK uint) ([]domain.FileNode, error)
}
