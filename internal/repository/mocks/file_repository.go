package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"collaborative-coding/internal/domain"
)

// FileRepository 是 repository.FileRepository 的 Mock
type FileRepository struct {
	mock.Mock
}

func (m *FileRepository) FindByKey(ctx context.Context, roomPK uint, key domain.NodeKey) (*domain.FileNode, error) {
	args := m.Called(ctx, roomPK, key)
	node, _ := args.Get(0).(*domain.FileNode)
	return node, args.Error(1)
}

func (m *FileRepository) Insert(ctx context.Context, node *domain.FileNode) error {
	args := m.Called(ctx, node)
	return args.Error(0)
}

func (m *FileRepository) UpdateContent(ctx context.Context, node *domain.FileNode, content string) error {
	args := m.Called(ctx, node, content)
	return args.Error(0)
}

func (m *FileRepository) ListByRoom(ctx context.Context, roomPK uint) ([]domain.FileNode, error) {
	args := m.Called(ctx, roomPK)
	nodes, _ := args.Get(0).([]domain.FileNode)
	return nodes, args.Error(1)
}
