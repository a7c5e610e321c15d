package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"collaborative-coding/internal/domain"
)

// HTTPFileStore 是通过房间服务 HTTP 接口实现的 FileStore
type HTTPFileStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPFileStore 创建 HTTPFileStore，timeout <= 0 时使用 15 秒
func NewHTTPFileStore(baseURL, token string, timeout time.Duration) *HTTPFileStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFileStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type upsertFileBody struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	IsFolder bool   `json:"isFolder"`
}

// ListFiles 实现 FileStore
func (s *HTTPFileStore) ListFiles(ctx context.Context, roomID string) ([]domain.FileNode, error) {
	var files []domain.FileNode
	if err := s.do(ctx, http.MethodGet, s.roomPath(roomID, "files"), nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// UpsertFile 实现 FileStore
func (s *HTTPFileStore) UpsertFile(ctx context.Context, roomID string, node domain.FileNode) error {
	body := upsertFileBody{Name: node.Name, Path: node.Path, Content: node.Content, IsFolder: node.IsFolder}
	return s.do(ctx, http.MethodPost, s.roomPath(roomID, "files"), body, nil)
}

// JoinRoom 用密码加入房间，之后才能订阅实时事件
func (s *HTTPFileStore) JoinRoom(ctx context.Context, roomID, password string) error {
	body := map[string]string{"password": password}
	return s.do(ctx, http.MethodPost, s.roomPath(roomID, "join"), body, nil)
}

func (s *HTTPFileStore) roomPath(roomID, action string) string {
	return "/api/rooms/" + url.PathEscape(roomID) + "/" + action
}

func (s *HTTPFileStore) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
