package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/repository"
)

// GormUserRepository 按内部 ID 或身份提供方 ID 存取用户
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	if db == nil {
		panic("database connection cannot be nil for GormUserRepository")
	}
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	return r.first(ctx, fmt.Sprintf("id %d", id), "id = ?", id)
}

func (r *GormUserRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	return r.first(ctx, fmt.Sprintf("external id %q", externalID), "external_id = ?", externalID)
}

// first 执行单条查询，describe 只用于错误信息
func (r *GormUserRepository) first(ctx context.Context, describe string, query string, arg interface{}) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, repository.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("gorm: find user by %s: %w", describe, err)
	}
	return &user, nil
}

// Save 在 ID 为零时插入，否则整行更新。external_id 冲突映射为 ErrDuplicateEntry。
func (r *GormUserRepository) Save(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save user %q: %w", user.ExternalID, err)
	}
	return nil
}
