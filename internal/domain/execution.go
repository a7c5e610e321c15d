package domain

// ExecutionRequest 是交给执行沙箱的一次运行请求
type ExecutionRequest struct {
	Runtime string // 沙箱中的运行时名称，如 "python"
	Version string
	Code    string
	Stdin   string
}

// ExecutionResult 是返回给客户端的执行结果
type ExecutionResult struct {
	Output   string `json:"output"`
	Language string `json:"language"` // 展示用名称，如 "Python"
	Version  string `json:"version"`
}
