package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-coding/internal/domain"
)

func TestHTTPFileStore(t *testing.T) {
	var upserted upsertFileBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/rooms/r1/files":
			_, _ = w.Write([]byte(`[{"name":"main.py","path":"/","content":"print(1)","language":"python","isFolder":false}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/rooms/r1/files":
			_ = json.NewDecoder(r.Body).Decode(&upserted)
			_, _ = w.Write([]byte(`{"success":true}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/rooms/r1/join":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Invalid room password"}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"roomId":"r1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Room not found"}`))
		}
	}))
	defer srv.Close()

	store := NewHTTPFileStore(srv.URL+"/", "tok", 0)
	ctx := context.Background()

	files, err := store.ListFiles(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "python", files[0].Language)
	assert.Equal(t, "print(1)", files[0].Content)

	require.NoError(t, store.UpsertFile(ctx, "r1", domain.FileNode{Name: "a.js", Path: "/", Content: "x"}))
	assert.Equal(t, upsertFileBody{Name: "a.js", Path: "/", Content: "x"}, upserted)

	require.NoError(t, store.JoinRoom(ctx, "r1", "secret"))

	err = store.JoinRoom(ctx, "r1", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid room password", apiErr.Message)

	_, err = store.ListFiles(ctx, "missing")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = NewHTTPFileStore(srv.URL, "bad", 0).ListFiles(ctx, "r1")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
