package domain

import (
	"strings"
	"time"
)

// FileNode 表示房间虚拟文件树中的一个文件或文件夹。
// (RoomID, Name, Path) 构成唯一键，Path 总是以 NormalizePath 规范化后的形式存储。
type FileNode struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	RoomID    uint      `gorm:"uniqueIndex:idx_file_nodes_key;not null" json:"-"`
	Name      string    `gorm:"type:varchar(191);uniqueIndex:idx_file_nodes_key;not null" json:"name"`
	Path      string    `gorm:"type:varchar(191);uniqueIndex:idx_file_nodes_key;not null" json:"path"`
	Content   string    `gorm:"size:16777216" json:"content"` // 文件夹永远为空 (MySQL 映射为 longtext)
	Language  string    `gorm:"type:varchar(32)" json:"language"`
	IsFolder  bool      `gorm:"not null;default:false" json:"isFolder"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Key 返回节点在房间内的唯一键。
func (f *FileNode) Key() NodeKey {
	return NodeKey{Name: f.Name, Path: NormalizePath(f.Path)}
}

// NodeKey 是文件树的复合唯一键，查找与去重都必须使用它。
type NodeKey struct {
	Name string
	Path string
}

// NewNodeKey 使用规范化后的路径构造键。
func NewNodeKey(name, path string) NodeKey {
	return NodeKey{Name: name, Path: NormalizePath(path)}
}

// String 返回键的可读形式，用于日志。
func (k NodeKey) String() string {
	if strings.HasSuffix(k.Path, "/") {
		return k.Path + k.Name
	}
	return k.Path + "/" + k.Name
}

// NormalizePath 去掉路径末尾的所有 "/"。
// 根路径保持为 "/"，因此 "/src/" 与 "/src" 等价，"/" 与 "//" 等价。
func NormalizePath(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" && path != "" {
		return "/"
	}
	return trimmed
}

// DefaultLanguage 是未映射扩展名使用的语言标签。
const DefaultLanguage = "plaintext"

// languageByExtension 是扩展名到编辑器/执行语言标签的静态映射。
// js 映射为 "node"，与执行沙箱的运行时名称保持一致。
var languageByExtension = map[string]string{
	"js":   "node",
	"py":   "python",
	"java": "java",
	"cpp":  "cpp",
	"html": "html",
	"css":  "css",
	"json": "json",
	"md":   "markdown",
}

// DetectLanguage 根据文件名的扩展名推断语言标签。
func DetectLanguage(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return DefaultLanguage
	}
	if lang, ok := languageByExtension[name[idx+1:]]; ok {
		return lang
	}
	return DefaultLanguage
}
