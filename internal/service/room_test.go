package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/infra/persistence/memory"
	"collaborative-coding/internal/repository"
	"collaborative-coding/internal/repository/mocks"
	"collaborative-coding/internal/service"
)

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// --- 测试 CreateRoom 方法 ---

func TestRoomService_CreateRoom_Success(t *testing.T) {
	// Arrange
	mockRoomRepo := new(mocks.RoomRepository)
	roomService := service.NewRoomService(mockRoomRepo).WithHashCost(bcrypt.MinCost)
	ctx := context.Background()

	mockRoomRepo.On("Create", ctx,
		mock.MatchedBy(func(room *domain.Room) bool {
			return room.Name == "demo" && room.OwnerID == 3 && room.RoomID != "" &&
				bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte("secret")) == nil &&
				!room.LastActiveAt.IsZero()
		}),
		mock.MatchedBy(func(owner *domain.RoomMember) bool { return owner.UserID == 3 }),
	).Return(nil).Once()

	// Act
	roomID, err := roomService.CreateRoom(ctx, "  demo ", "secret", 3)

	// Assert
	require.NoError(t, err)
	assert.Len(t, roomID, 36, "房间 ID 应为 UUID")
	mockRoomRepo.AssertExpectations(t)
}

func TestRoomService_CreateRoom_Validation(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	roomService := service.NewRoomService(mockRoomRepo)
	ctx := context.Background()

	_, err := roomService.CreateRoom(ctx, "demo", "secret", 0)
	assert.ErrorIs(t, err, service.ErrUnauthorized, "未登录用户不能创建房间")

	_, err = roomService.CreateRoom(ctx, " ", "secret", 1)
	assert.ErrorIs(t, err, service.ErrBadRequest)

	_, err = roomService.CreateRoom(ctx, "demo", "", 1)
	assert.ErrorIs(t, err, service.ErrBadRequest)

	mockRoomRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_CreateRoom_RepositoryFailure(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	roomService := service.NewRoomService(mockRoomRepo).WithHashCost(bcrypt.MinCost)
	ctx := context.Background()
	mockRoomRepo.On("Create", ctx, mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	_, err := roomService.CreateRoom(ctx, "demo", "secret", 1)
	assert.ErrorIs(t, err, service.ErrInternalServer)
}

// --- 测试 JoinRoom 方法 ---

func TestRoomService_JoinRoom(t *testing.T) {
	ctx := context.Background()
	room := &domain.Room{ID: 11, RoomID: "r-1", PasswordHash: hashed(t, "secret")}

	t.Run("correct password", func(t *testing.T) {
		mockRoomRepo := new(mocks.RoomRepository)
		roomService := service.NewRoomService(mockRoomRepo)
		mockRoomRepo.On("FindByRoomID", ctx, "r-1").Return(room, nil).Once()
		mockRoomRepo.On("AddMember", ctx, mock.MatchedBy(func(m *domain.RoomMember) bool {
			return m.RoomID == 11 && m.UserID == 4
		})).Return(true, nil).Once()

		roomID, err := roomService.JoinRoom(ctx, "r-1", "secret", 4)
		require.NoError(t, err)
		assert.Equal(t, "r-1", roomID)
		mockRoomRepo.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		mockRoomRepo := new(mocks.RoomRepository)
		roomService := service.NewRoomService(mockRoomRepo)
		mockRoomRepo.On("FindByRoomID", ctx, "r-1").Return(room, nil).Once()

		_, err := roomService.JoinRoom(ctx, "r-1", "guess", 4)
		assert.ErrorIs(t, err, service.ErrUnauthorized)
		mockRoomRepo.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything)
	})

	t.Run("missing room", func(t *testing.T) {
		mockRoomRepo := new(mocks.RoomRepository)
		roomService := service.NewRoomService(mockRoomRepo)
		mockRoomRepo.On("FindByRoomID", ctx, "nope").Return(nil, repository.ErrRoomNotFound).Once()

		_, err := roomService.JoinRoom(ctx, "nope", "secret", 4)
		assert.ErrorIs(t, err, service.ErrRoomNotFound)
	})

	t.Run("anonymous", func(t *testing.T) {
		roomService := service.NewRoomService(new(mocks.RoomRepository))
		_, err := roomService.JoinRoom(ctx, "r-1", "secret", 0)
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})
}

// --- 测试 CheckMembership / ListActiveRooms / TouchActivity ---

func TestRoomService_CheckMembership(t *testing.T) {
	ctx := context.Background()
	mockRoomRepo := new(mocks.RoomRepository)
	roomService := service.NewRoomService(mockRoomRepo)
	room := &domain.Room{ID: 2, RoomID: "r-2"}

	mockRoomRepo.On("FindByRoomID", ctx, "r-2").Return(room, nil)
	mockRoomRepo.On("IsMember", ctx, uint(2), uint(1)).Return(true, nil).Once()
	mockRoomRepo.On("IsMember", ctx, uint(2), uint(9)).Return(false, nil).Once()
	mockRoomRepo.On("IsMember", ctx, uint(2), uint(5)).Return(false, errors.New("db down")).Once()

	assert.NoError(t, roomService.CheckMembership(ctx, "r-2", 1))
	assert.ErrorIs(t, roomService.CheckMembership(ctx, "r-2", 9), service.ErrUnauthorized)
	assert.ErrorIs(t, roomService.CheckMembership(ctx, "r-2", 5), service.ErrInternalServer)
	assert.ErrorIs(t, roomService.CheckMembership(ctx, "", 1), service.ErrBadRequest)
	mockRoomRepo.AssertExpectations(t)
}

func TestRoomService_ListActiveRooms(t *testing.T) {
	ctx := context.Background()
	mockRoomRepo := new(mocks.RoomRepository)
	roomService := service.NewRoomService(mockRoomRepo)
	summaries := []domain.RoomSummary{{RoomID: "b"}, {RoomID: "a"}}
	mockRoomRepo.On("ListByMember", ctx, uint(1)).Return(summaries, nil).Once()

	got, err := roomService.ListActiveRooms(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, summaries, got)

	_, err = roomService.ListActiveRooms(ctx, 0)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	mockRoomRepo.AssertExpectations(t)
}

func TestRoomService_TouchActivity(t *testing.T) {
	ctx := context.Background()
	mockRoomRepo := new(mocks.RoomRepository)
	roomService := service.NewRoomService(mockRoomRepo)
	mockRoomRepo.On("FindByRoomID", ctx, "r-3").Return(&domain.Room{ID: 3, RoomID: "r-3"}, nil).Once()
	mockRoomRepo.On("TouchActivity", ctx, uint(3)).Return(nil).Once()
	mockRoomRepo.On("FindByRoomID", ctx, "gone").Return(nil, repository.ErrRoomNotFound).Once()

	assert.NoError(t, roomService.NotifyActivity(ctx, "r-3"))
	assert.ErrorIs(t, roomService.TouchActivity(ctx, "gone"), service.ErrRoomNotFound)
	mockRoomRepo.AssertExpectations(t)
}

// **Property: 正确密码加入房间总是成功且幂等**
// 对任意密码和任意重复次数，加入后成员记录只有一条；错误密码总是失败且不改变成员关系。
func TestRoomService_JoinIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)
	ctx := context.Background()

	properties.Property("repeated joins leave exactly one membership", prop.ForAll(
		func(password string, repeats int) bool {
			store := memory.NewStore()
			roomService := service.NewRoomService(store.Rooms()).WithHashCost(bcrypt.MinCost)

			roomID, err := roomService.CreateRoom(ctx, "r", password, 1)
			if err != nil {
				return false
			}
			if _, err := roomService.JoinRoom(ctx, roomID, password+"x", 2); !errors.Is(err, service.ErrUnauthorized) {
				return false
			}
			if roomService.CheckMembership(ctx, roomID, 2) == nil {
				return false
			}
			for i := 0; i < repeats; i++ {
				if _, err := roomService.JoinRoom(ctx, roomID, password, 2); err != nil {
					return false
				}
			}
			rooms, err := roomService.ListActiveRooms(ctx, 2)
			return err == nil && len(rooms) == 1 && rooms[0].MemberCount == 2
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 && len(s) <= 40 }),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
