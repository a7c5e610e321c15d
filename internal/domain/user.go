// Package domain 定义了房间服务的核心数据结构 (同时也是 GORM 模型)。
package domain

import "time"

// User 表示由外部身份提供方认证过的用户。
// 本服务不保存任何凭据，只保存展示用信息。
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExternalID  string    `gorm:"type:varchar(191);uniqueIndex:idx_users_external_id;not null" json:"-"` // 身份提供方中的用户标识
	Username    string    `gorm:"type:varchar(191);not null" json:"username"`
	DisplayName string    `gorm:"type:varchar(191)" json:"displayName"`
	AvatarURL   string    `gorm:"type:text" json:"avatar,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"-"`
}

// Name 返回用于展示的名称，DisplayName 为空时退回 Username。
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
