package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"collaborative-coding/internal/domain"
)

// RoomRepository 是 repository.RoomRepository 的 Mock
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) Create(ctx context.Context, room *domain.Room, owner *domain.RoomMember) error {
	args := m.Called(ctx, room, owner)
	return args.Error(0)
}

func (m *RoomRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *RoomRepository) AddMember(ctx context.Context, member *domain.RoomMember) (bool, error) {
	args := m.Called(ctx, member)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) IsMember(ctx context.Context, roomPK uint, userID uint) (bool, error) {
	args := m.Called(ctx, roomPK, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) ListByMember(ctx context.Context, userID uint) ([]domain.RoomSummary, error) {
	args := m.Called(ctx, userID)
	rooms, _ := args.Get(0).([]domain.RoomSummary)
	return rooms, args.Error(1)
}

func (m *RoomRepository) TouchActivity(ctx context.Context, roomPK uint) error {
	args := m.Called(ctx, roomPK)
	return args.Error(0)
}
