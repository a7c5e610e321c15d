package gormpersistence

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/infra/setup"
	"collaborative-coding/internal/repository"
)

// newTestDB 为每个测试创建独立的 SQLite 内存数据库并迁移表结构
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := setup.InitDB(setup.DBConfig{
		Driver: setup.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	require.NoError(t, setup.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, repo *GormUserRepository, externalID, username, display string) *domain.User {
	t.Helper()
	u := &domain.User{ExternalID: externalID, Username: username, DisplayName: display}
	require.NoError(t, repo.Save(context.Background(), u))
	return u
}

func createRoom(t *testing.T, repo *GormRoomRepository, roomID string, ownerID uint, createdAt time.Time) *domain.Room {
	t.Helper()
	room := &domain.Room{RoomID: roomID, Name: "room " + roomID, PasswordHash: "hash", OwnerID: ownerID, CreatedAt: createdAt, LastActiveAt: createdAt}
	require.NoError(t, repo.Create(context.Background(), room, &domain.RoomMember{UserID: ownerID, JoinedAt: createdAt}))
	return room
}

func TestGormUserRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormUserRepository(db)
	ctx := context.Background()

	alice := createUser(t, repo, "gh-1", "alice", "Alice")
	require.NotZero(t, alice.ID)

	found, err := repo.FindByExternalID(ctx, "gh-1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, found.ID)

	found.DisplayName = "Alice B."
	require.NoError(t, repo.Save(ctx, found))
	byID, err := repo.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", byID.DisplayName)

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	_, err = repo.FindByExternalID(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	err = repo.Save(ctx, &domain.User{ExternalID: "gh-1", Username: "dup"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
}

func TestGormRoomRepository_CreateAndMembership(t *testing.T) {
	db := newTestDB(t)
	users := NewGormUserRepository(db)
	repo := NewGormRoomRepository(db)
	ctx := context.Background()

	owner := createUser(t, users, "gh-1", "alice", "")
	guest := createUser(t, users, "gh-2", "bob", "Bob")
	room := createRoom(t, repo, "r-1", owner.ID, time.Now().UTC())

	found, err := repo.FindByRoomID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, room.ID, found.ID)
	_, err = repo.FindByRoomID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	isOwnerMember, err := repo.IsMember(ctx, room.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, isOwnerMember, "创建者自动成为成员")

	added, err := repo.AddMember(ctx, &domain.RoomMember{RoomID: room.ID, UserID: guest.ID, JoinedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.AddMember(ctx, &domain.RoomMember{RoomID: room.ID, UserID: guest.ID, JoinedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, added, "重复加入是幂等的")

	var count int64
	require.NoError(t, db.Model(&domain.RoomMember{}).Where("room_id = ?", room.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	err = repo.Create(ctx, &domain.Room{RoomID: "r-1", Name: "dup", PasswordHash: "h", OwnerID: owner.ID},
		&domain.RoomMember{UserID: owner.ID, JoinedAt: time.Now()})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
}

func TestGormRoomRepository_ListByMember(t *testing.T) {
	db := newTestDB(t)
	users := NewGormUserRepository(db)
	repo := NewGormRoomRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "gh-1", "alice", "Alice")
	bob := createUser(t, users, "gh-2", "bob", "")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	older := createRoom(t, repo, "older", alice.ID, base)
	newer := createRoom(t, repo, "newer", bob.ID, base.Add(time.Hour))
	createRoom(t, repo, "other", bob.ID, base.Add(2*time.Hour))
	_, err := repo.AddMember(ctx, &domain.RoomMember{RoomID: newer.ID, UserID: alice.ID, JoinedAt: base})
	require.NoError(t, err)

	rooms, err := repo.ListByMember(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "newer", rooms[0].RoomID, "按创建时间倒序")
	assert.Equal(t, "older", rooms[1].RoomID)
	assert.Equal(t, "bob", rooms[0].Owner.DisplayName, "没有展示名时使用用户名")
	assert.Equal(t, "Alice", rooms[1].Owner.DisplayName)
	assert.Equal(t, int64(2), rooms[0].MemberCount)
	assert.Equal(t, int64(1), rooms[1].MemberCount)
	assert.Equal(t, older.Name, rooms[1].Name)

	require.NoError(t, repo.TouchActivity(ctx, older.ID))
	touched, err := repo.FindByRoomID(ctx, "older")
	require.NoError(t, err)
	assert.True(t, touched.LastActiveAt.After(base))
}

func TestGormFileRepository(t *testing.T) {
	db := newTestDB(t)
	users := NewGormUserRepository(db)
	rooms := NewGormRoomRepository(db)
	repo := NewGormFileRepository(db)
	ctx := context.Background()

	owner := createUser(t, users, "gh-1", "alice", "")
	room := createRoom(t, rooms, "r-1", owner.ID, time.Now().UTC())

	node := &domain.FileNode{RoomID: room.ID, Name: "a.js", Path: "/src/", Content: "one", Language: "node"}
	require.NoError(t, repo.Insert(ctx, node))
	assert.Equal(t, "/src", node.Path, "路径在写入前规范化")

	found, err := repo.FindByKey(ctx, room.ID, domain.NewNodeKey("a.js", "/src//"))
	require.NoError(t, err)
	assert.Equal(t, node.ID, found.ID)

	require.NoError(t, repo.UpdateContent(ctx, found, "two"))
	assert.Equal(t, "two", found.Content)

	err = repo.Insert(ctx, &domain.FileNode{RoomID: room.ID, Name: "a.js", Path: "/src", Content: "dup"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)

	require.NoError(t, repo.Insert(ctx, &domain.FileNode{RoomID: room.ID, Name: "lib", Path: "/", IsFolder: true, Language: domain.DefaultLanguage}))

	nodes, err := repo.ListByRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "a.js", nodes[0].Name, "按插入顺序返回")
	assert.Equal(t, "two", nodes[0].Content)
	assert.True(t, nodes[1].IsFolder)

	_, err = repo.FindByKey(ctx, room.ID, domain.NewNodeKey("b.js", "/"))
	assert.ErrorIs(t, err, repository.ErrFileNotFound)
}
