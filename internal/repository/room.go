package repository

import (
	"context"

	"collaborative-coding/internal/domain"
)

// RoomRepository 定义了房间与成员关系的存储操作 (Room Registry)。
type RoomRepository interface {
	// Create 创建房间并把创建者作为第一个成员写入，二者在同一事务中完成。
	Create(ctx context.Context, room *domain.Room, owner *domain.RoomMember) error

	// FindByRoomID 根据对外的房间 ID 查找房间，不存在时返回 ErrRoomNotFound。
	FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error)

	// AddMember 在成员不存在时追加成员关系。
	// 返回 true 表示本次新增，false 表示该用户已是成员 (幂等)。
	AddMember(ctx context.Context, member *domain.RoomMember) (bool, error)

	// IsMember 判断用户是否为房间成员。
	IsMember(ctx context.Context, roomPK uint, userID uint) (bool, error)

	// ListByMember 返回用户所在的全部房间，按创建时间倒序，并带出创建者展示名。
	ListByMember(ctx context.Context, userID uint) ([]domain.RoomSummary, error)

	// TouchActivity 更新房间最后活跃时间。
	TouchActivity(ctx context.Context, roomPK uint) error
}
