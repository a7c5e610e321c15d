package service

import (
	"context"
	"fmt"
	"sort"

	"collaborative-coding/internal/domain"

	"github.com/sirupsen/logrus"
)

// CodeRunner 是外部执行沙箱的抽象
type CodeRunner interface {
	Run(ctx context.Context, req domain.ExecutionRequest) (string, error)
}

// runtimeSpec 描述允许执行的语言在沙箱中的运行时
type runtimeSpec struct {
	name        string
	version     string
	displayName string
}

// allowedRuntimes 是执行语言白名单，键为编辑器语言标签
var allowedRuntimes = map[string]runtimeSpec{
	"python": {name: "python", version: "3.10.0", displayName: "Python"},
	"node":   {name: "node", version: "18.15.0", displayName: "JavaScript"},
	"cpp":    {name: "cpp", version: "10.2.0", displayName: "C++"},
	"java":   {name: "java", version: "15.0.2", displayName: "Java"},
}

// SupportedLanguages 返回白名单中的语言标签 (已排序)
func SupportedLanguages() []string {
	langs := make([]string, 0, len(allowedRuntimes))
	for lang := range allowedRuntimes {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// ExecutionService 在白名单检查通过后把代码交给沙箱执行
type ExecutionService struct {
	runner CodeRunner
}

// NewExecutionService 创建 ExecutionService 实例
func NewExecutionService(runner CodeRunner) *ExecutionService {
	if runner == nil {
		panic("CodeRunner cannot be nil for ExecutionService")
	}
	return &ExecutionService{runner: runner}
}

// Execute 执行代码。不支持的语言在调用沙箱之前就以 ErrBadRequest 拒绝。
func (s *ExecutionService) Execute(ctx context.Context, code, language, stdin string) (*domain.ExecutionResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"language": language, "operation": "Execute"})

	rt, ok := allowedRuntimes[language]
	if !ok {
		logCtx.Warn("Execution rejected: unsupported language")
		return nil, fmt.Errorf("%w: unsupported language %q", ErrBadRequest, language)
	}

	output, err := s.runner.Run(ctx, domain.ExecutionRequest{
		Runtime: rt.name,
		Version: rt.version,
		Code:    code,
		Stdin:   stdin,
	})
	if err != nil {
		logCtx.WithError(err).Error("Execution sandbox call failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	logCtx.WithField("output_size", len(output)).Info("Code executed")
	return &domain.ExecutionResult{
		Output:   output,
		Language: rt.displayName,
		Version:  rt.version,
	}, nil
}
