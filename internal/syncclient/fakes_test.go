package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"collaborative-coding/internal/domain"
)

type emitted struct {
	Event   string
	Payload interface{}
}

// recordingChannel 记录全部 Emit 调用
type recordingChannel struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (c *recordingChannel) Emit(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, emitted{Event: event, Payload: payload})
	return nil
}

func (c *recordingChannel) byEvent(event string) []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []interface{}
	for _, e := range c.events {
		if e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

// memoryFileStore 是测试用的 FileStore，upsert 直接覆盖同键节点
type memoryFileStore struct {
	mu        sync.Mutex
	files     []domain.FileNode
	upserts   []domain.FileNode
	upsertErr error
	listErr   error
}

var errStoreDown = errors.New("store unavailable")

func (s *memoryFileStore) ListFiles(ctx context.Context, roomID string) ([]domain.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.FileNode, len(s.files))
	copy(out, s.files)
	return out, nil
}

func (s *memoryFileStore) UpsertFile(ctx context.Context, roomID string, node domain.FileNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, node)
	for i := range s.files {
		if s.files[i].Key() == node.Key() {
			s.files[i].Content = node.Content
			return nil
		}
	}
	s.files = append(s.files, node)
	return nil
}

func (s *memoryFileStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

func mustFrame(event string, data interface{}) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	msg, err := json.Marshal(map[string]json.RawMessage{"event": json.RawMessage(`"` + event + `"`), "data": raw})
	if err != nil {
		panic(err)
	}
	return msg
}
