package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// RoomService 实现房间的访问控制 (Access Gate)：创建、加入、列出活跃房间。
type RoomService struct {
	roomRepo repository.RoomRepository
	hashCost int
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(roomRepo repository.RoomRepository) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo, hashCost: bcrypt.DefaultCost}
}

// WithHashCost 调整 bcrypt 成本，测试中用 bcrypt.MinCost 加速。
func (s *RoomService) WithHashCost(cost int) *RoomService {
	s.hashCost = cost
	return s
}

// CreateRoom 创建一个新房间，并把创建者写入成员列表。返回对外房间 ID。
func (s *RoomService) CreateRoom(ctx context.Context, name, password string, ownerID uint) (string, error) {
	logCtx := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "operation": "CreateRoom"})

	if ownerID == 0 {
		return "", ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return "", fmt.Errorf("%w: room name and password are required", ErrBadRequest)
	}

	hash, err := hashPassword(password, s.hashCost)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash room password")
		return "", ErrInternalServer
	}

	now := time.Now().UTC()
	room := &domain.Room{
		RoomID:       uuid.NewString(),
		Name:         name,
		PasswordHash: hash,
		OwnerID:      ownerID,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	owner := &domain.RoomMember{UserID: ownerID, JoinedAt: now}

	if err := s.roomRepo.Create(ctx, room, owner); err != nil {
		// UUID 冲突几乎不可能，统一视为内部错误
		logCtx.WithError(err).Error("Failed to save new room")
		return "", ErrInternalServer
	}

	logCtx.WithField("room_id", room.RoomID).Info("Room created successfully")
	return room.RoomID, nil
}

// JoinRoom 校验密码并把用户加入房间。重复加入不会产生第二条成员记录。
func (s *RoomService) JoinRoom(ctx context.Context, roomID, password string, userID uint) (string, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "operation": "JoinRoom"})

	if userID == 0 {
		return "", ErrUnauthorized
	}
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return "", err
	}

	if !checkPassword(password, room.PasswordHash) {
		logCtx.Warn("Join rejected: invalid room password")
		return "", ErrUnauthorized
	}

	added, err := s.roomRepo.AddMember(ctx, &domain.RoomMember{
		RoomID:   room.ID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to add room member")
		return "", ErrInternalServer
	}
	logCtx.WithField("new_member", added).Info("User joined room successfully")
	return room.RoomID, nil
}

// ListActiveRooms 返回用户所在的全部房间，按创建时间倒序。
func (s *RoomService) ListActiveRooms(ctx context.Context, userID uint) ([]domain.RoomSummary, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	rooms, err := s.roomRepo.ListByMember(ctx, userID)
	if err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to list active rooms")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

// CheckMembership 确认房间存在且用户是成员，供实时通道的 join-room 使用。
func (s *RoomService) CheckMembership(ctx context.Context, roomID string, userID uint) error {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}
	ok, err := s.roomRepo.IsMember(ctx, room.ID, userID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).WithError(err).Error("Failed to check membership")
		return ErrInternalServer
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// FindRoom 根据对外房间 ID 查找房间
func (s *RoomService) FindRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return s.findRoom(ctx, roomID)
}

func (s *RoomService) findRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrBadRequest)
	}
	room, err := s.roomRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to find room")
		return nil, ErrInternalServer
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// hashPassword 使用 bcrypt 对密码进行加盐哈希
func hashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

// checkPassword 验证提供的密码是否与存储的哈希匹配
func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TouchActivity 更新房间最后活跃时间
func (s *RoomService) TouchActivity(ctx context.Context, roomID string) error {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := s.roomRepo.TouchActivity(ctx, room.ID); err != nil {
		return fmt.Errorf("touch activity for room %s: %w", roomID, err)
	}
	return nil
}

// NotifyActivity 以内联方式记录房间活动，未配置任务队列时作为 ActivityNotifier 使用。
func (s *RoomService) NotifyActivity(ctx context.Context, roomID string) error {
	return s.TouchActivity(ctx, roomID)
}
