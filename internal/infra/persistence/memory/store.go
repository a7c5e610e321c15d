// Package memory 提供基于进程内存的存储库实现，用于 DB_DRIVER=memory 的本地开发和测试。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/repository"
)

type memberKey struct {
	roomPK uint
	userID uint
}

type fileKey struct {
	roomPK uint
	key    domain.NodeKey
}

// Store 在内存中同时实现 UserRepository、RoomRepository 和 FileRepository。
// 文件节点既按插入顺序保存，也按复合键建立索引，查找从不依赖遍历顺序。
type Store struct {
	mu sync.RWMutex

	nextUserID   uint
	nextRoomID   uint
	nextMemberID uint
	nextFileID   uint

	users      map[uint]*domain.User
	byExternal map[string]uint

	rooms     map[uint]*domain.Room
	byRoomID  map[string]uint
	members   map[memberKey]*domain.RoomMember
	roomOrder []uint

	files     map[fileKey]*domain.FileNode
	fileOrder map[uint][]fileKey
}

// NewStore 创建一个空的内存存储
func NewStore() *Store {
	return &Store{
		users:      make(map[uint]*domain.User),
		byExternal: make(map[string]uint),
		rooms:      make(map[uint]*domain.Room),
		byRoomID:   make(map[string]uint),
		members:    make(map[memberKey]*domain.RoomMember),
		files:      make(map[fileKey]*domain.FileNode),
		fileOrder:  make(map[uint][]fileKey),
	}
}

// Users 返回 UserRepository 视图
func (s *Store) Users() repository.UserRepository { return (*userRepo)(s) }

// Rooms 返回 RoomRepository 视图
func (s *Store) Rooms() repository.RoomRepository { return (*roomRepo)(s) }

// Files 返回 FileRepository 视图
func (s *Store) Files() repository.FileRepository { return (*fileRepo)(s) }

// --- users ---

type userRepo Store

func (r *userRepo) FindByID(_ context.Context, id uint) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) FindByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byExternal[externalID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *r.users[id]
	return &cp, nil
}

func (r *userRepo) Save(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.byExternal[user.ExternalID]; ok && existing != user.ID {
		return repository.ErrDuplicateEntry
	}
	if user.ID == 0 {
		r.nextUserID++
		user.ID = r.nextUserID
		user.CreatedAt = now
	} else if old, ok := r.users[user.ID]; ok && old.ExternalID != user.ExternalID {
		delete(r.byExternal, old.ExternalID)
	}
	user.UpdatedAt = now
	cp := *user
	r.users[user.ID] = &cp
	r.byExternal[user.ExternalID] = user.ID
	return nil
}

// --- rooms ---

type roomRepo Store

func (r *roomRepo) Create(_ context.Context, room *domain.Room, owner *domain.RoomMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRoomID[room.RoomID]; ok {
		return repository.ErrDuplicateEntry
	}
	r.nextRoomID++
	room.ID = r.nextRoomID
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	cp := *room
	cp.Owner = domain.User{}
	r.rooms[room.ID] = &cp
	r.byRoomID[room.RoomID] = room.ID
	r.roomOrder = append(r.roomOrder, room.ID)

	owner.RoomID = room.ID
	r.addMemberLocked(owner)
	return nil
}

func (r *roomRepo) FindByRoomID(_ context.Context, roomID string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRoomID[roomID]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	cp := *r.rooms[id]
	return &cp, nil
}

func (r *roomRepo) AddMember(_ context.Context, member *domain.RoomMember) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addMemberLocked(member), nil
}

func (r *roomRepo) addMemberLocked(member *domain.RoomMember) bool {
	k := memberKey{roomPK: member.RoomID, userID: member.UserID}
	if _, ok := r.members[k]; ok {
		return false
	}
	r.nextMemberID++
	member.ID = r.nextMemberID
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	cp := *member
	r.members[k] = &cp
	return true
}

func (r *roomRepo) IsMember(_ context.Context, roomPK uint, userID uint) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[memberKey{roomPK: roomPK, userID: userID}]
	return ok, nil
}

func (r *roomRepo) ListByMember(_ context.Context, userID uint) ([]domain.RoomSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[uint]int64)
	for k := range r.members {
		counts[k.roomPK]++
	}

	summaries := make([]domain.RoomSummary, 0)
	order := make([]uint, 0)
	for _, id := range r.roomOrder {
		if _, ok := r.members[memberKey{roomPK: id, userID: userID}]; ok {
			order = append(order, id)
		}
	}
	// 按创建时间倒序，同一时间按插入顺序倒序
	sort.SliceStable(order, func(i, j int) bool {
		ri, rj := r.rooms[order[i]], r.rooms[order[j]]
		if ri.CreatedAt.Equal(rj.CreatedAt) {
			return ri.ID > rj.ID
		}
		return ri.CreatedAt.After(rj.CreatedAt)
	})
	for _, id := range order {
		room := r.rooms[id]
		ownerName := ""
		if u, ok := r.users[room.OwnerID]; ok {
			ownerName = u.Name()
		}
		summaries = append(summaries, domain.RoomSummary{
			RoomID:       room.RoomID,
			Name:         room.Name,
			CreatedAt:    room.CreatedAt,
			LastActiveAt: room.LastActiveAt,
			Owner:        domain.OwnerRef{ID: room.OwnerID, DisplayName: ownerName},
			MemberCount:  counts[id],
		})
	}
	return summaries, nil
}

func (r *roomRepo) TouchActivity(_ context.Context, roomPK uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomPK]; ok {
		room.LastActiveAt = time.Now().UTC()
	}
	return nil
}

// --- files ---

type fileRepo Store

func (r *fileRepo) FindByKey(_ context.Context, roomPK uint, key domain.NodeKey) (*domain.FileNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.files[fileKey{roomPK: roomPK, key: domain.NewNodeKey(key.Name, key.Path)}]
	if !ok {
		return nil, repository.ErrFileNotFound
	}
	cp := *node
	return &cp, nil
}

func (r *fileRepo) Insert(_ context.Context, node *domain.FileNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	node.Path = domain.NormalizePath(node.Path)
	k := fileKey{roomPK: node.RoomID, key: node.Key()}
	if _, ok := r.files[k]; ok {
		return repository.ErrDuplicateEntry
	}
	r.nextFileID++
	node.ID = r.nextFileID
	now := time.Now().UTC()
	node.CreatedAt, node.UpdatedAt = now, now
	cp := *node
	r.files[k] = &cp
	r.fileOrder[node.RoomID] = append(r.fileOrder[node.RoomID], k)
	return nil
}

func (r *fileRepo) UpdateContent(_ context.Context, node *domain.FileNode, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.files[fileKey{roomPK: node.RoomID, key: node.Key()}]
	if !ok {
		return repository.ErrFileNotFound
	}
	stored.Content = content
	stored.UpdatedAt = time.Now().UTC()
	node.Content = content
	node.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *fileRepo) ListByRoom(_ context.Context, roomPK uint) ([]domain.FileNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := r.fileOrder[roomPK]
	nodes := make([]domain.FileNode, 0, len(keys))
	for _, k := range keys {
		nodes = append(nodes, *r.files[k])
	}
	return nodes, nil
}
