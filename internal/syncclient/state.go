package syncclient

// FileState 是客户端观察到的单个文件的状态
type FileState int

const (
	// StateUnloaded 初始状态，或已退出房间
	StateUnloaded FileState = iota
	// StateLoaded 内容已从文件树加载
	StateLoaded
	// StateEditing 收到过本地或远程编辑
	StateEditing
)

func (s FileState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateEditing:
		return "editing"
	default:
		return "unknown"
	}
}
