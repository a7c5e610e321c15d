package piston

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-coding/internal/domain"
)

func TestClient_Run(t *testing.T) {
	var got executeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"language":"python","version":"3.10.0","run":{"stdout":"1\n","stderr":"","code":0,"output":"1\n"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second)
	out, err := client.Run(context.Background(), domain.ExecutionRequest{Runtime: "python", Version: "3.10.0", Code: "print(1)", Stdin: "x"})

	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
	assert.Equal(t, executeRequest{Language: "python", Version: "3.10.0", Files: []executeFile{{Content: "print(1)"}}, Stdin: "x"}, got)
}

func TestClient_Run_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"runtime is unknown"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Run(context.Background(), domain.ExecutionRequest{Runtime: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "runtime is unknown")

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()
	_, err = NewClient(slow.URL, 50*time.Millisecond).Run(context.Background(), domain.ExecutionRequest{})
	assert.Error(t, err, "超时视为上游失败")

	assert.Panics(t, func() { NewClient("", time.Second) })
}
