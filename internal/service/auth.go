package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// Identity 是身份提供方回调中携带的用户信息
type Identity struct {
	ExternalID  string
	Username    string
	DisplayName string
	AvatarURL   string
}

// AuthService 负责身份提供方适配和 JWT 签发。
// 本服务不处理密码登录，用户身份完全由外部提供方确认。
type AuthService struct {
	userRepo       repository.UserRepository
	jwtSecret      []byte
	jwtExpiry      time.Duration
	identitySecret []byte
}

// NewAuthService 创建 AuthService 实例。
// identitySecret 是身份提供方回调时必须携带的共享密钥。
func NewAuthService(userRepo repository.UserRepository, jwtSecretKey string, jwtExpiryHours int, identitySecret string) (*AuthService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if identitySecret == "" {
		return nil, fmt.Errorf("identity secret cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24 // 默认 24 小时
	}
	return &AuthService{
		userRepo:       userRepo,
		jwtSecret:      []byte(jwtSecretKey),
		jwtExpiry:      time.Duration(jwtExpiryHours) * time.Hour,
		identitySecret: []byte(identitySecret),
	}, nil
}

// SignIn 校验回调密钥，按 ExternalID 新建或更新用户，并签发 JWT。
func (s *AuthService) SignIn(ctx context.Context, secret string, identity Identity) (string, *domain.User, error) {
	logCtx := logrus.WithFields(logrus.Fields{"external_id": identity.ExternalID, "operation": "SignIn"})

	if subtle.ConstantTimeCompare([]byte(secret), s.identitySecret) != 1 {
		logCtx.Warn("Identity callback rejected: bad secret")
		return "", nil, ErrUnauthorized
	}
	identity.ExternalID = strings.TrimSpace(identity.ExternalID)
	identity.Username = strings.TrimSpace(identity.Username)
	if identity.ExternalID == "" || identity.Username == "" {
		return "", nil, fmt.Errorf("%w: externalId and username are required", ErrBadRequest)
	}

	user, err := s.userRepo.FindByExternalID(ctx, identity.ExternalID)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		user = &domain.User{ExternalID: identity.ExternalID}
	case err != nil:
		logCtx.WithError(err).Error("Failed to look up user by external id")
		return "", nil, ErrInternalServer
	}
	user.Username = identity.Username
	user.DisplayName = identity.DisplayName
	user.AvatarURL = identity.AvatarURL

	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 并发回调抢先创建了同一个用户
			logCtx.WithError(err).Warn("Concurrent identity upsert detected")
			return "", nil, ErrConflict
		}
		logCtx.WithError(err).Error("Failed to save user")
		return "", nil, ErrInternalServer
	}

	token, err := s.generateJWT(user.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token")
		return "", nil, ErrInternalServer
	}
	logCtx.WithField("user_id", user.ID).Info("User signed in via identity provider")
	return token, user, nil
}

// CurrentUser 返回当前登录用户
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to load current user")
		return nil, ErrInternalServer
	}
	return user, nil
}

// generateJWT 为指定用户 ID 生成 JWT Token
func (s *AuthService) generateJWT(userID uint) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(s.jwtExpiry).Unix(),
		"iat":     now.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
