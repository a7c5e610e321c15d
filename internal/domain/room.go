package domain

import "time"

// Room 表示一个带密码保护的协作编码房间。
type Room struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	RoomID       string    `gorm:"type:varchar(64);uniqueIndex:idx_rooms_room_id;not null" json:"roomId"` // 对外暴露的稳定 ID (UUID)
	Name         string    `gorm:"type:varchar(191);not null" json:"name"`
	PasswordHash string    `gorm:"type:text;not null" json:"-"` // bcrypt 哈希，永远不返回给客户端
	OwnerID      uint      `gorm:"index;not null" json:"ownerId"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	LastActiveAt time.Time `gorm:"index" json:"lastActiveAt"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

// RoomMember 是用户与房间之间的多对多关系，只追加不删除。
// (RoomID, UserID) 唯一，重复加入不会产生第二条记录。
type RoomMember struct {
	ID       uint      `gorm:"primaryKey"`
	RoomID   uint      `gorm:"uniqueIndex:idx_room_members_room_user;not null"` // 关联 Room.ID
	UserID   uint      `gorm:"uniqueIndex:idx_room_members_room_user;index;not null"`
	JoinedAt time.Time `gorm:"not null"`
}

// RoomSummary 是 "我的活跃房间" 列表中的一项。
type RoomSummary struct {
	RoomID       string    `json:"roomId"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	Owner        OwnerRef  `json:"owner"`
	MemberCount  int64     `json:"memberCount"`
}

// OwnerRef 是房间创建者的展示信息。
type OwnerRef struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"displayName"`
}
