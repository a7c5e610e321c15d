package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-coding/internal/service"
	"collaborative-coding/internal/tasks"
)

type fakeRecorder struct {
	mu      sync.Mutex
	touched []string
	errs    map[string]error
}

func (f *fakeRecorder) TouchActivity(_ context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[roomID]; err != nil {
		return err
	}
	f.touched = append(f.touched, roomID)
	return nil
}

type staticRooms []string

func (s staticRooms) ActiveRoomIDs() []string { return s }

func touchTask(t *testing.T, roomID string) *asynq.Task {
	t.Helper()
	payload, err := tasks.NewRoomTouchTask(roomID)
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeRoomTouch, payload)
}

func TestRoomTouchHandler(t *testing.T) {
	recorder := &fakeRecorder{errs: map[string]error{
		"gone":  service.ErrRoomNotFound,
		"flaky": errors.New("db timeout"),
	}}
	handler := NewRoomTouchHandler(recorder)
	ctx := context.Background()

	require.NoError(t, handler.ProcessTask(ctx, touchTask(t, "r-1")))
	assert.Equal(t, []string{"r-1"}, recorder.touched)

	err := handler.ProcessTask(ctx, touchTask(t, "gone"))
	assert.ErrorIs(t, err, asynq.SkipRetry, "房间已不存在时不重试")

	err = handler.ProcessTask(ctx, touchTask(t, "flaky"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry, "临时错误交给 asynq 重试")

	err = handler.ProcessTask(ctx, asynq.NewTask(tasks.TypeRoomTouch, []byte("{bad")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestActiveRoomSweepHandler(t *testing.T) {
	recorder := &fakeRecorder{errs: map[string]error{"b": errors.New("db timeout")}}
	handler := NewActiveRoomSweepHandler(staticRooms{"a", "b", "c"}, recorder)

	payload, err := tasks.NewActiveRoomSweepTask()
	require.NoError(t, err)
	require.NoError(t, handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeActiveRoomSweep, payload)),
		"单个房间失败不影响整个任务")

	sort.Strings(recorder.touched)
	assert.Equal(t, []string{"a", "c"}, recorder.touched)

	empty := NewActiveRoomSweepHandler(staticRooms{}, recorder)
	assert.NoError(t, empty.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeActiveRoomSweep, payload)))
}

func TestNewServeMux_RoutesTaskTypes(t *testing.T) {
	recorder := &fakeRecorder{}
	mux := NewServeMux(staticRooms{"x"}, recorder)

	require.NoError(t, mux.ProcessTask(context.Background(), touchTask(t, "r-9")))
	payload, _ := tasks.NewActiveRoomSweepTask()
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeActiveRoomSweep, payload)))

	assert.ElementsMatch(t, []string{"r-9", "x"}, recorder.touched)
}
