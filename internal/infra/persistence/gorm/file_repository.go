package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/repository"
)

// GormFileRepository 是 FileRepository 接口的 GORM 实现
type GormFileRepository struct {
	db *gorm.DB
}

// NewGormFileRepository 创建 GormFileRepository 实例
func NewGormFileRepository(db *gorm.DB) *GormFileRepository {
	if db == nil {
		panic("database connection cannot be nil for GormFileRepository")
	}
	return &GormFileRepository{db: db}
}

// FindByKey 实现按复合键查找节点
func (r *GormFileRepository) FindByKey(ctx context.Context, roomPK uint, key domain.NodeKey) (*domain.FileNode, error) {
	var node domain.FileNode
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND name = ? AND path = ?", roomPK, key.Name, key.Path).
		First(&node).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrFileNotFound
		}
		return nil, fmt.Errorf("gorm: find file %s in room %d: %w", key, roomPK, err)
	}
	return &node, nil
}

// Insert 实现插入新节点，唯一键冲突映射为 ErrDuplicateEntry
func (r *GormFileRepository) Insert(ctx context.Context, node *domain.FileNode) error {
	node.Path = domain.NormalizePath(node.Path)
	err := r.db.WithContext(ctx).Create(node).Error
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: insert file %s in room %d: %w", node.Key(), node.RoomID, err)
	}
	return nil
}

// UpdateContent 实现内容覆盖，只更新 content 与 updated_at
func (r *GormFileRepository) UpdateContent(ctx context.Context, node *domain.FileNode, content string) error {
	err := r.db.WithContext(ctx).Model(node).Update("content", content).Error
	if err != nil {
		return fmt.Errorf("gorm: update file %s (id: %d): %w", node.Key(), node.ID, err)
	}
	node.Content = content
	return nil
}

// ListByRoom 实现列出房间内全部节点，按插入顺序
func (r *GormFileRepository) ListByRoom(ctx context.Context, roomPK uint) ([]domain.FileNode, error) {
	var nodes []domain.FileNode
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomPK).
		Order("id ASC").
		Find(&nodes).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list files in room %d: %w", roomPK, err)
	}
	return nodes, nil
}
