package syncclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collaborative-coding/internal/dto"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 1 << 20
	sendBufferSize = 64
)

// WSChannel 是基于 gorilla/websocket 的 Channel 实现。
// Emit 只把消息放入发送缓冲区，由 writePump 写出。
type WSChannel struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// WebSocketURL 把房间服务的 HTTP 地址转换为 /ws 地址，token 放在查询参数中
func WebSocketURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DialChannel 连接房间服务的实时通道
func DialChannel(ctx context.Context, serverURL, token string) (*WSChannel, error) {
	wsURL, err := WebSocketURL(serverURL, token)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", serverURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}
	return NewWSChannel(conn), nil
}

// NewWSChannel 包装已建立的连接并启动 writePump
func NewWSChannel(conn *websocket.Conn) *WSChannel {
	c := &WSChannel{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Emit 实现 Channel。缓冲区满时丢弃消息并返回 ErrChannelFull。
func (c *WSChannel) Emit(event string, payload interface{}) error {
	msg, err := dto.NewFrame(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrChannelClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrChannelFull
	}
}

// Listen 读取服务端消息并交给 handle，直到连接断开或 ctx 取消
func (c *WSChannel) Listen(ctx context.Context, handle func(raw []byte) error) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPingHandler(func(appData string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		err := c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := handle(message); err != nil {
			logrus.WithError(err).Warn("WSChannel: failed to handle frame")
		}
	}
}

// Close 关闭发送缓冲区，writePump 发送 close 帧后关闭连接
func (c *WSChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

// Done 在连接关闭后关闭
func (c *WSChannel) Done() <-chan struct{} { return c.done }

func (c *WSChannel) writePump() {
	defer func() {
		c.conn.Close()
		close(c.done)
	}()
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logrus.WithError(err).Warn("WSChannel: write failed")
			c.mu.Lock()
			if !c.closed {
				c.closed = true
				close(c.send)
			}
			c.mu.Unlock()
			// 排空剩余消息
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
