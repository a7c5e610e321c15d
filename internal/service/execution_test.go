package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/service"
)

// fakeRunner 记录收到的请求并返回预设结果
type fakeRunner struct {
	calls  []domain.ExecutionRequest
	output string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, req domain.ExecutionRequest) (string, error) {
	f.calls = append(f.calls, req)
	return f.output, f.err
}

func TestExecutionService_Execute(t *testing.T) {
	runner := &fakeRunner{output: "1\n"}
	executionService := service.NewExecutionService(runner)

	result, err := executionService.Execute(context.Background(), "print(1)", "python", "in")

	require.NoError(t, err)
	assert.Equal(t, &domain.ExecutionResult{Output: "1\n", Language: "Python", Version: "3.10.0"}, result)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, domain.ExecutionRequest{Runtime: "python", Version: "3.10.0", Code: "print(1)", Stdin: "in"}, runner.calls[0])
}

func TestExecutionService_AllowList(t *testing.T) {
	runner := &fakeRunner{}
	executionService := service.NewExecutionService(runner)

	assert.Equal(t, []string{"cpp", "java", "node", "python"}, service.SupportedLanguages())
	for _, lang := range []string{"ruby", "", "plaintext", "Python"} {
		_, err := executionService.Execute(context.Background(), "x", lang, "")
		assert.ErrorIs(t, err, service.ErrBadRequest, lang)
	}
	assert.Empty(t, runner.calls, "不支持的语言不应调用沙箱")

	result, err := executionService.Execute(context.Background(), "console.log(1)", "node", "")
	require.NoError(t, err)
	assert.Equal(t, "JavaScript", result.Language)
	assert.Equal(t, "18.15.0", result.Version)
}

func TestExecutionService_UpstreamFailure(t *testing.T) {
	executionService := service.NewExecutionService(&fakeRunner{err: errors.New("connection refused")})

	_, err := executionService.Execute(context.Background(), "x", "java", "")
	assert.ErrorIs(t, err, service.ErrUpstreamFailure)
	assert.Contains(t, err.Error(), "connection refused")
}
