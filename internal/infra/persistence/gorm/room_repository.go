package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// Create 在一个事务中创建房间和创建者的成员关系
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room, owner *domain.RoomMember) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Owner").Create(room).Error; err != nil {
			return err
		}
		owner.RoomID = room.ID
		return tx.Create(owner).Error
	})
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room (room_id: %s): %w", room.RoomID, err)
	}
	return nil
}

// FindByRoomID 实现根据对外房间 ID 查找房间
func (r *GormRoomRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by room_id '%s': %w", roomID, err)
	}
	return &room, nil
}

// AddMember 使用 ON CONFLICT DO NOTHING 实现幂等的成员追加
func (r *GormRoomRepository) AddMember(ctx context.Context, member *domain.RoomMember) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(member)
	if result.Error != nil {
		if isDuplicateEntryError(result.Error) {
			return false, nil
		}
		return false, fmt.Errorf("gorm: add member (room: %d, user: %d): %w", member.RoomID, member.UserID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// IsMember 实现成员关系检查
func (r *GormRoomRepository) IsMember(ctx context.Context, roomPK uint, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomPK, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count membership (room: %d, user: %d): %w", roomPK, userID, err)
	}
	return count > 0, nil
}

// roomSummaryRow 是 ListByMember 联表查询的扫描目标
type roomSummaryRow struct {
	RoomID        string
	Name          string
	CreatedAt     time.Time
	LastActiveAt  time.Time
	OwnerID       uint
	OwnerUsername string
	OwnerDisplay  string
	MemberCount   int64
}

// ListByMember 实现 "我的活跃房间" 查询，按创建时间倒序
func (r *GormRoomRepository) ListByMember(ctx context.Context, userID uint) ([]domain.RoomSummary, error) {
	var rows []roomSummaryRow
	err := r.db.WithContext(ctx).
		Table("rooms").
		Select(`rooms.room_id, rooms.name, rooms.created_at, rooms.last_active_at, rooms.owner_id,
			users.username AS owner_username, users.display_name AS owner_display,
			(SELECT COUNT(*) FROM room_members m2 WHERE m2.room_id = rooms.id) AS member_count`).
		Joins("JOIN room_members ON room_members.room_id = rooms.id AND room_members.user_id = ?", userID).
		Joins("LEFT JOIN users ON users.id = rooms.owner_id").
		Order("rooms.created_at DESC, rooms.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list rooms for member %d: %w", userID, err)
	}

	summaries := make([]domain.RoomSummary, 0, len(rows))
	for _, row := range rows {
		owner := domain.User{ID: row.OwnerID, Username: row.OwnerUsername, DisplayName: row.OwnerDisplay}
		summaries = append(summaries, domain.RoomSummary{
			RoomID:       row.RoomID,
			Name:         row.Name,
			CreatedAt:    row.CreatedAt,
			LastActiveAt: row.LastActiveAt,
			Owner:        domain.OwnerRef{ID: row.OwnerID, DisplayName: owner.Name()},
			MemberCount:  row.MemberCount,
		})
	}
	return summaries, nil
}

// TouchActivity 更新房间最后活跃时间
func (r *GormRoomRepository) TouchActivity(ctx context.Context, roomPK uint) error {
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("id = ?", roomPK).
		Update("last_active_at", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("gorm: touch room activity %d: %w", roomPK, err)
	}
	return nil
}
