package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/repository"
	"collaborative-coding/internal/repository/mocks"
	"collaborative-coding/internal/service"
)

const (
	testJWTSecret      = "very-secret-key"
	testIdentitySecret = "idp-shared-secret"
)

func newAuthService(t *testing.T, repo repository.UserRepository) *service.AuthService {
	t.Helper()
	authService, err := service.NewAuthService(repo, testJWTSecret, 1, testIdentitySecret)
	require.NoError(t, err, "创建 AuthService 不应失败")
	return authService
}

func TestNewAuthService_Validation(t *testing.T) {
	repo := new(mocks.UserRepository)

	_, err := service.NewAuthService(repo, "", 1, testIdentitySecret)
	assert.Error(t, err, "JWT 密钥为空时应失败")

	_, err = service.NewAuthService(repo, testJWTSecret, 1, "")
	assert.Error(t, err, "回调密钥为空时应失败")

	assert.Panics(t, func() { _, _ = service.NewAuthService(nil, testJWTSecret, 1, testIdentitySecret) })
}

// --- 测试 SignIn 方法 ---

func TestAuthService_SignIn_NewUser(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(t, mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("FindByExternalID", ctx, "gh-1").
		Return(nil, repository.ErrUserNotFound).
		Once()
	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		return user.ID == 0 && user.ExternalID == "gh-1" && user.Username == "alice" && user.DisplayName == "Alice"
	})).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = 5 // 模拟数据库分配 ID
		}).
		Return(nil).
		Once()

	// Act
	token, user, err := authService.SignIn(ctx, testIdentitySecret, service.Identity{
		ExternalID:  " gh-1 ",
		Username:    "alice",
		DisplayName: "Alice",
		AvatarURL:   "https://example.com/a.png",
	})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, uint(5), user.ID)
	assert.Equal(t, "https://example.com/a.png", user.AvatarURL)

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte(testJWTSecret), nil })
	require.NoError(t, err, "签发的 token 应能用同一密钥验证")
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(5), claims["user_id"])
	assert.Contains(t, claims, "exp")

	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_SignIn_ExistingUserUpdated(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(t, mockUserRepo)
	ctx := context.Background()

	existing := &domain.User{ID: 9, ExternalID: "gh-9", Username: "old", DisplayName: "Old Name"}
	mockUserRepo.On("FindByExternalID", ctx, "gh-9").Return(existing, nil).Once()
	mockUserRepo.On("Save", ctx, existing).Return(nil).Once()

	_, user, err := authService.SignIn(ctx, testIdentitySecret, service.Identity{ExternalID: "gh-9", Username: "new", DisplayName: "New Name"})

	require.NoError(t, err)
	assert.Equal(t, uint(9), user.ID, "同一外部身份不应产生新用户")
	assert.Equal(t, "new", user.Username)
	assert.Equal(t, "New Name", user.DisplayName)
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_SignIn_Rejections(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(t, mockUserRepo)
	ctx := context.Background()

	_, _, err := authService.SignIn(ctx, "wrong-secret", service.Identity{ExternalID: "x", Username: "y"})
	assert.ErrorIs(t, err, service.ErrUnauthorized, "回调密钥错误应返回 ErrUnauthorized")

	_, _, err = authService.SignIn(ctx, testIdentitySecret, service.Identity{ExternalID: "x"})
	assert.ErrorIs(t, err, service.ErrBadRequest, "缺少 username 应返回 ErrBadRequest")

	_, _, err = authService.SignIn(ctx, testIdentitySecret, service.Identity{Username: "y"})
	assert.ErrorIs(t, err, service.ErrBadRequest, "缺少 externalId 应返回 ErrBadRequest")

	mockUserRepo.AssertNotCalled(t, "FindByExternalID", mock.Anything, mock.Anything)
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_SignIn_RepositoryFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("lookup fails", func(t *testing.T) {
		mockUserRepo := new(mocks.UserRepository)
		authService := newAuthService(t, mockUserRepo)
		mockUserRepo.On("FindByExternalID", ctx, "x").Return(nil, errors.New("db down")).Once()

		_, _, err := authService.SignIn(ctx, testIdentitySecret, service.Identity{ExternalID: "x", Username: "y"})
		assert.ErrorIs(t, err, service.ErrInternalServer)
		mockUserRepo.AssertExpectations(t)
	})

	t.Run("concurrent insert", func(t *testing.T) {
		mockUserRepo := new(mocks.UserRepository)
		authService := newAuthService(t, mockUserRepo)
		mockUserRepo.On("FindByExternalID", ctx, "x").Return(nil, repository.ErrUserNotFound).Once()
		mockUserRepo.On("Save", ctx, mock.AnythingOfType("*domain.User")).Return(repository.ErrDuplicateEntry).Once()

		_, _, err := authService.SignIn(ctx, testIdentitySecret, service.Identity{ExternalID: "x", Username: "y"})
		assert.ErrorIs(t, err, service.ErrConflict, "保存冲突时应返回 ErrConflict")
		mockUserRepo.AssertExpectations(t)
	})
}

// --- 测试 CurrentUser 方法 ---

func TestAuthService_CurrentUser(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(t, mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("FindByID", ctx, uint(1)).Return(&domain.User{ID: 1, Username: "alice"}, nil).Once()
	mockUserRepo.On("FindByID", ctx, uint(2)).Return(nil, repository.ErrUserNotFound).Once()
	mockUserRepo.On("FindByID", ctx, uint(3)).Return(nil, errors.New("db down")).Once()

	user, err := authService.CurrentUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = authService.CurrentUser(ctx, 2)
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	_, err = authService.CurrentUser(ctx, 3)
	assert.ErrorIs(t, err, service.ErrInternalServer)

	mockUserRepo.AssertExpectations(t)
}
