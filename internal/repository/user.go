package repository

import (
	"context"

	"collaborative-coding/internal/domain"
)

// UserRepository 定义了用户数据的存储和检索操作。
type UserRepository interface {
	// FindByID 根据用户 ID 查找用户，不存在时返回 ErrUserNotFound。
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// FindByExternalID 根据身份提供方的用户标识查找用户。
	FindByExternalID(ctx context.Context, externalID string) (*domain.User, error)

	// Save 保存用户信息。ID 为零时创建，否则更新。
	Save(ctx context.Context, user *domain.User) error
}
