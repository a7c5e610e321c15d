package hub

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"collaborative-coding/internal/dto"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 单条消息最大长度，需要容纳整份文件内容
	maxMessageSize = 1 << 20

	// 每个连接的发送缓冲
	sendBufferSize = 256

	// join-room 成员校验与跨实例发布的超时
	gateTimeout    = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// MembershipChecker 校验用户是否可以订阅房间 (由 RoomService 实现)
type MembershipChecker interface {
	CheckMembership(ctx context.Context, roomID string, userID uint) error
}

// Relay 在多个服务实例之间转发已编码的房间事件
type Relay interface {
	Publish(ctx context.Context, roomID string, payload []byte) error
	Subscribe(ctx context.Context, handler func(roomID string, payload []byte)) error
}

// relayEnvelope 是跨实例转发时的外层结构，Origin 用于丢弃本实例自己发出的事件
type relayEnvelope struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

// Hub 维护房间 ID 到订阅连接集合的映射，并负责房间内的事件扇出。
// 每个连接的读 goroutine 直接调用 Hub 方法，因此同一发送者的事件按到达顺序转发。
type Hub struct {
	// map[roomID]map[*Client]bool
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	gate       MembershipChecker
	relay      Relay // 可以为 nil，此时 Hub 只在本进程内扇出
	instanceID string
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(gate MembershipChecker, relay Relay) *Hub {
	if gate == nil {
		panic("MembershipChecker cannot be nil for Hub")
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		gate:       gate,
		relay:      relay,
		instanceID: uuid.NewString(),
	}
}

// Run 消费跨实例转发的事件，直到 ctx 结束。没有 Relay 时只等待 ctx。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run(ctx context.Context) {
	log := logrus.WithFields(logrus.Fields{"component": "hub", "instance_id": h.instanceID})
	if h.relay == nil {
		log.Info("Hub is running (local only)")
		<-ctx.Done()
		log.Info("Hub is shutting down...")
		return
	}

	log.Info("Hub is running with relay")
	backoff := time.Second
	for {
		err := h.relay.Subscribe(ctx, h.deliverRelayed)
		if ctx.Err() != nil {
			log.Info("Hub is shutting down...")
			return
		}
		log.WithError(err).Warnf("Relay subscription ended, retrying in %s", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// JoinChannel 把连接订阅到房间。一个连接同一时间只属于一个房间，
// 加入新房间会先离开旧房间。
func (h *Hub) JoinChannel(client *Client, roomID string) {
	if client == nil {
		logrus.Error("Hub: Attempted to join a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": client.userID,
		"conn_id": client.id,
	})

	h.roomsMu.Lock()
	if client.closed {
		h.roomsMu.Unlock()
		return
	}
	if client.room != "" && client.room != roomID {
		h.removeLocked(client)
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
		logCtx.Debug("Subscriber set created for room")
	}
	h.rooms[roomID][client] = true
	client.room = roomID
	h.roomsMu.Unlock()

	logCtx.Info("Client joined room channel")
}

// PublishEdit 把编辑内容转发给房间内除发送者以外的所有订阅者。
// 不做确认也不落库，持久化由发送方另行调用文件树 Upsert。
func (h *Hub) PublishEdit(roomID string, sender *Client, edit dto.CodeUpdate) {
	frame, err := dto.NewFrame(dto.EventCodeUpdate, edit)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to encode code-update")
		return
	}
	h.broadcast(roomID, frame, sender)
	h.relayOut(roomID, frame)
}

// PublishCursor 把光标位置转发给房间内除发送者以外的所有订阅者
func (h *Hub) PublishCursor(roomID string, sender *Client, cursor dto.CursorUpdate) {
	frame, err := dto.NewFrame(dto.EventCursorUpdate, cursor)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to encode cursor-update")
		return
	}
	h.broadcast(roomID, frame, sender)
	h.relayOut(roomID, frame)
}

// Disconnect 把连接从其房间的订阅集合中移除并关闭发送通道。
// 不会向其他成员发送离开事件。
func (h *Hub) Disconnect(client *Client) {
	if client == nil {
		return
	}
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	if client.closed {
		return
	}
	roomID := client.room
	h.removeLocked(client)
	client.closed = true
	close(client.send)

	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": client.userID,
		"conn_id": client.id,
	}).Info("Client disconnected from Hub")
}

// ActiveRoomIDs 返回当前至少有一个订阅者的房间 (已排序)
func (h *Hub) ActiveRoomIDs() []string {
	h.roomsMu.RLock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	h.roomsMu.RUnlock()
	sort.Strings(ids)
	return ids
}

// SubscriberCount 返回房间当前的订阅者数量
func (h *Hub) SubscriberCount(roomID string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[roomID])
}

// removeLocked 把连接从当前房间移除，调用方必须持有写锁
func (h *Hub) removeLocked(client *Client) {
	roomID := client.room
	if roomID == "" {
		return
	}
	if roomClients, ok := h.rooms[roomID]; ok {
		delete(roomClients, client)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
			logrus.WithField("room_id", roomID).Debug("Room empty, removed from Hub")
		}
	}
	client.room = ""
}

// broadcast 将消息发送给指定房间的所有客户端，排除发送者。
// 发送在读锁内进行且不阻塞，保证不会向已关闭的通道写入。
func (h *Hub) broadcast(roomID string, message []byte, sender *Client) {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()

	roomClients, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for client := range roomClients {
		if client == sender {
			continue
		}
		select {
		case client.send <- message:
		default:
			// 慢客户端只丢弃这一条
			logrus.WithFields(logrus.Fields{
				"room_id": roomID,
				"conn_id": client.id,
				"user_id": client.userID,
			}).Warn("Client send channel full during broadcast, frame dropped")
		}
	}
}

// sendTo 向单个连接发送消息 (用于 joined / error 回执)
func (h *Hub) sendTo(client *Client, message []byte) {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	if client.closed {
		return
	}
	select {
	case client.send <- message:
	default:
		logrus.WithField("conn_id", client.id).Warn("Client send channel full, reply dropped")
	}
}

// relayOut 把本实例产生的事件发布给其他实例
func (h *Hub) relayOut(roomID string, frame []byte) {
	if h.relay == nil {
		return
	}
	payload, err := json.Marshal(relayEnvelope{Origin: h.instanceID, Frame: frame})
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to encode relay envelope")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.relay.Publish(ctx, roomID, payload); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Relay publish failed, remote peers miss this event")
	}
}

// deliverRelayed 把其他实例转发来的事件交给本地订阅者
func (h *Hub) deliverRelayed(roomID string, payload []byte) {
	var env relayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Dropping malformed relay payload")
		return
	}
	if env.Origin == h.instanceID {
		return
	}
	h.broadcast(roomID, env.Frame, nil)
}
