package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collaborative-coding/internal/service"
)

// FileHandler 封装了房间虚拟文件树的 HTTP 处理逻辑
type FileHandler struct {
	fileService *service.FileService
}

// NewFileHandler 创建 FileHandler 实例
func NewFileHandler(fileService *service.FileService) *FileHandler {
	if fileService == nil {
		panic("FileService cannot be nil for FileHandler")
	}
	return &FileHandler{fileService: fileService}
}

// UpsertFileRequest 定义新建/覆盖文件请求的结构体
type UpsertFileRequest struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	IsFolder bool   `json:"isFolder"`
}

// UpsertFile 新建或覆盖文件/文件夹
func (h *FileHandler) UpsertFile(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	var req UpsertFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Name and path are required")
		return
	}

	err := h.fileService.Upsert(c.Request.Context(), service.UpsertInput{
		RoomID:   c.Param("roomId"),
		Name:     req.Name,
		Path:     req.Path,
		Content:  req.Content,
		IsFolder: req.IsFolder,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"success": true})
}

// ListFiles 返回房间内的全部文件与文件夹
func (h *FileHandler) ListFiles(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	files, err := h.fileService.List(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, files)
}
