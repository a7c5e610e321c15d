package syncclient

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOpenFile 表示当前没有打开的文件
	ErrNoOpenFile = errors.New("syncclient: no file is open")
	// ErrFileNotFound 表示房间文件树中不存在请求的文件
	ErrFileNotFound = errors.New("syncclient: file not found")
	// ErrNotAFile 表示请求打开的节点是文件夹
	ErrNotAFile = errors.New("syncclient: node is a folder")
	// ErrSessionClosed 表示会话已经退出房间
	ErrSessionClosed = errors.New("syncclient: session closed")
	// ErrChannelClosed 表示实时通道已关闭
	ErrChannelClosed = errors.New("syncclient: channel closed")
	// ErrChannelFull 表示发送缓冲区已满，本条消息被丢弃
	ErrChannelFull = errors.New("syncclient: channel send buffer full")
	// ErrUnknownStrategy 表示无法识别的持久化策略名称
	ErrUnknownStrategy = errors.New("syncclient: unknown persist strategy")
)

// APIError 是房间服务返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("room service responded %d", e.StatusCode)
	}
	return fmt.Sprintf("room service responded %d: %s", e.StatusCode, e.Message)
}
