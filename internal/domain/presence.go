package domain

// Position 是编辑器中的光标位置 (行列均从 1 开始)。
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Cursor 是某个用户在接收端展示的光标状态，只存在于内存，不持久化。
type Cursor struct {
	Position
	UserID      string `json:"userId"`
	DisplayName string `json:"username"`
	Color       string `json:"color"`
}
