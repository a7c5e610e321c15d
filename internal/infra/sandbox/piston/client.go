// Package piston 是 Piston 代码执行 API 的客户端。
package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"collaborative-coding/internal/domain"
)

// maxErrorBody 限制读取错误响应体的长度
const maxErrorBody = 4 << 10

// Client 调用 Piston 的 /execute 接口
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建 Client。baseURL 形如 https://emkc.org/api/v2/piston
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		panic("sandbox base URL cannot be empty")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type executeFile struct {
	Content string `json:"content"`
}

type executeRequest struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []executeFile `json:"files"`
	Stdin    string        `json:"stdin"`
}

type executeResponse struct {
	Run struct {
		Output string `json:"output"`
		Code   *int   `json:"code"`
	} `json:"run"`
	Message string `json:"message"`
}

// Run 实现 service.CodeRunner
func (c *Client) Run(ctx context.Context, req domain.ExecutionRequest) (string, error) {
	body, err := json.Marshal(executeRequest{
		Language: req.Runtime,
		Version:  req.Version,
		Files:    []executeFile{{Content: req.Code}},
		Stdin:    req.Stdin,
	})
	if err != nil {
		return "", fmt.Errorf("piston: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("piston: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("piston: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("piston: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("piston: decode response: %w", err)
	}
	return out.Run.Output, nil
}
