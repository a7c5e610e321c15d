package syncclient

import (
	"hash/fnv"
	"sort"
	"sync"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/dto"
)

var cursorPalette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#008080",
}

// ColorFor 根据用户 ID 稳定地选出光标颜色
func ColorFor(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return cursorPalette[h.Sum32()%uint32(len(cursorPalette))]
}

// Presence 保存远程用户的最新光标，按用户 ID 覆盖写入 (后写者胜出)。
// 没有离开事件，条目一直保留到被覆盖或 Reset。
type Presence struct {
	mu      sync.RWMutex
	cursors map[string]domain.Cursor
}

func NewPresence() *Presence {
	return &Presence{cursors: make(map[string]domain.Cursor)}
}

// Apply 用收到的 cursor-update 覆盖该用户之前的位置
func (p *Presence) Apply(update dto.CursorUpdate) domain.Cursor {
	cursor := domain.Cursor{
		Position:    update.Position,
		UserID:      update.UserID,
		DisplayName: update.Username,
		Color:       ColorFor(update.UserID),
	}
	p.mu.Lock()
	p.cursors[update.UserID] = cursor
	p.mu.Unlock()
	return cursor
}

func (p *Presence) Get(userID string) (domain.Cursor, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.cursors[userID]
	return c, ok
}

// Snapshot 返回按用户 ID 排序的全部光标
func (p *Presence) Snapshot() []domain.Cursor {
	p.mu.RLock()
	out := make([]domain.Cursor, 0, len(p.cursors))
	for _, c := range p.cursors {
		out = append(out, c)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (p *Presence) Reset() {
	p.mu.Lock()
	p.cursors = make(map[string]domain.Cursor)
	p.mu.Unlock()
}
