package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/dto"
)

// Options 配置一个房间会话
type Options struct {
	RoomID   string
	UserID   string
	Username string

	// Strategy 为空时使用 BroadcastFirst
	Strategy PersistStrategy
	// CursorWindow 为零时使用 DefaultCursorWindow
	CursorWindow time.Duration
	// OnEvent 可选，每处理完一条服务端消息后调用
	OnEvent func(RemoteEvent)
}

// RemoteEvent 描述一条已处理的服务端消息
type RemoteEvent struct {
	Event   string
	Payload interface{}
	// Applied 对 code-update 表示是否替换了本地缓冲区
	Applied bool
}

// Session 是某个用户在一个房间内的同步会话。
// 编辑器的读写都在 mu 保护下进行，因此远程编辑的路径比较与替换是原子的。
type Session struct {
	opts     Options
	editor   Editor
	channel  Channel
	store    FileStore
	strategy PersistStrategy
	presence *Presence
	cursor   *Throttle

	mu      sync.Mutex
	current *domain.NodeKey
	states  map[domain.NodeKey]FileState
	closed  bool

	inflight sync.WaitGroup
}

// NewSession 创建会话，此时所有文件都处于 StateUnloaded
func NewSession(opts Options, editor Editor, channel Channel, store FileStore) *Session {
	if editor == nil || channel == nil || store == nil {
		panic("editor, channel and store cannot be nil for Session")
	}
	if opts.Strategy == nil {
		opts.Strategy = BroadcastFirst{}
	}
	s := &Session{
		opts:     opts,
		editor:   editor,
		channel:  channel,
		store:    store,
		strategy: opts.Strategy,
		presence: NewPresence(),
		states:   make(map[domain.NodeKey]FileState),
	}
	s.cursor = NewThrottle(opts.CursorWindow, s.emitCursor)
	return s
}

func (s *Session) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"room_id": s.opts.RoomID, "user_id": s.opts.UserID})
}

// Join 订阅房间的实时事件
func (s *Session) Join() error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.channel.Emit(dto.EventJoinRoom, dto.JoinRoom{RoomID: s.opts.RoomID})
}

// OpenFile 从文件树取回文件内容并替换本地缓冲区。
// 之前打开的文件回到 StateLoaded；之后到达的旧文件远程编辑会因路径不匹配被丢弃。
func (s *Session) OpenFile(ctx context.Context, name, path string) (*domain.FileNode, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	key := domain.NewNodeKey(name, path)

	files, err := s.store.ListFiles(ctx, s.opts.RoomID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	var found *domain.FileNode
	for i := range files {
		if files[i].Key() == key {
			found = &files[i]
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, key)
	}
	if found.IsFolder {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.current != nil && *s.current != key {
		s.states[*s.current] = StateLoaded
	}
	s.current = &key
	s.states[key] = StateLoaded
	s.editor.SetValue(found.Content)

	s.logCtx().WithField("file", key.String()).Debug("Session.OpenFile: file loaded")
	node := *found
	return &node, nil
}

// LocalEdit 应用一次本地编辑：立即更新缓冲区，然后按策略广播和持久化
func (s *Session) LocalEdit(ctx context.Context, content string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.current == nil {
		s.mu.Unlock()
		return ErrNoOpenFile
	}
	key := *s.current
	s.editor.SetValue(content)
	s.states[key] = StateEditing
	s.mu.Unlock()

	return s.strategy.Apply(ctx, &editEffects{session: s, key: key, content: content})
}

// HandleCodeUpdate 处理远程编辑。只有路径 (以及存在时的文件名) 与当前文件一致才整体替换缓冲区。
// 远程编辑总是覆盖本地尚未发送的内容。
func (s *Session) HandleCodeUpdate(update dto.CodeUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.current == nil {
		return false
	}
	if domain.NormalizePath(update.FilePath) != s.current.Path {
		return false
	}
	if update.FileName != "" && update.FileName != s.current.Name {
		return false
	}
	s.editor.SetValue(update.Code)
	s.states[*s.current] = StateEditing
	return true
}

// HandleCursorUpdate 覆盖该用户的光标位置并重新渲染全部远程光标
func (s *Session) HandleCursorUpdate(update dto.CursorUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.presence.Apply(update)
	for _, c := range s.presence.Snapshot() {
		s.editor.SetMarker(c)
	}
}

// HandleFrame 解码一条服务端消息并分发
func (s *Session) HandleFrame(raw []byte) error {
	var frame dto.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	event := RemoteEvent{Event: frame.Event}
	switch frame.Event {
	case dto.EventCodeUpdate:
		var update dto.CodeUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Event, err)
		}
		event.Payload = update
		event.Applied = s.HandleCodeUpdate(update)
	case dto.EventCursorUpdate:
		var update dto.CursorUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Event, err)
		}
		event.Payload = update
		s.HandleCursorUpdate(update)
	case dto.EventJoined:
		var joined dto.Joined
		if err := json.Unmarshal(frame.Data, &joined); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Event, err)
		}
		event.Payload = joined
	case dto.EventError:
		var msg dto.ErrorMessage
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Event, err)
		}
		event.Payload = msg
		s.logCtx().WithField("message", msg.Message).Warn("Session: server reported error")
	default:
		s.logCtx().WithField("event", frame.Event).Debug("Session: ignoring unknown event")
		return nil
	}

	if s.opts.OnEvent != nil {
		s.opts.OnEvent(event)
	}
	return nil
}

// MoveCursor 提交一次本地光标移动，经节流后发送
func (s *Session) MoveCursor(pos domain.Position) {
	if s.isClosed() {
		return
	}
	s.cursor.Push(pos)
}

// SyncCursor 读取编辑器当前光标并提交
func (s *Session) SyncCursor() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	pos := s.editor.GetCursor()
	s.mu.Unlock()
	s.cursor.Push(pos)
}

func (s *Session) emitCursor(pos domain.Position) {
	err := s.channel.Emit(dto.EventCursorPosition, dto.CursorPosition{
		RoomID:   s.opts.RoomID,
		Position: pos,
		UserID:   s.opts.UserID,
		Username: s.opts.Username,
	})
	if err != nil {
		s.logCtx().WithError(err).Debug("Session: cursor emit dropped")
	}
}

// Exit 退出房间：所有文件回到 StateUnloaded，远程光标清空，未发送的光标丢弃
func (s *Session) Exit() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.current = nil
	s.states = make(map[domain.NodeKey]FileState)
	s.mu.Unlock()

	s.cursor.Stop()
	s.presence.Reset()
	s.logCtx().Info("Session: exited room")
}

// State 返回文件的当前状态，未见过的文件为 StateUnloaded
func (s *Session) State(name, path string) FileState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[domain.NewNodeKey(name, path)]
}

// Current 返回当前打开文件的键
func (s *Session) Current() (domain.NodeKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.NodeKey{}, false
	}
	return *s.current, true
}

func (s *Session) Presence() *Presence { return s.presence }

func (s *Session) StrategyName() string { return s.strategy.Name() }

// Wait 等待所有异步持久化完成
func (s *Session) Wait() { s.inflight.Wait() }

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// editEffects 把一次本地编辑绑定到会话的通道与文件存储
type editEffects struct {
	session *Session
	key     domain.NodeKey
	content string
}

func (e *editEffects) Broadcast() error {
	s := e.session
	err := s.channel.Emit(dto.EventCodeChange, dto.CodeChange{
		RoomID:   s.opts.RoomID,
		Code:     e.content,
		FilePath: e.key.Path,
		FileName: e.key.Name,
	})
	if err != nil {
		s.logCtx().WithError(err).WithField("file", e.key.String()).Warn("Session: edit broadcast failed")
	}
	return err
}

func (e *editEffects) Persist(ctx context.Context) error {
	s := e.session
	err := s.store.UpsertFile(ctx, s.opts.RoomID, domain.FileNode{
		Name:    e.key.Name,
		Path:    e.key.Path,
		Content: e.content,
	})
	if err != nil {
		s.logCtx().WithError(err).WithField("file", e.key.String()).Error("Session: edit persist failed")
	}
	return err
}

func (e *editEffects) Async(fn func()) {
	e.session.inflight.Add(1)
	go func() {
		defer e.session.inflight.Done()
		fn()
	}()
}
