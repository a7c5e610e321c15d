package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/repository"

	"github.com/sirupsen/logrus"
)

// ActivityNotifier 在房间文件发生变化后记录房间活动。
// 实现可以是内联写库，也可以是投递后台任务。
type ActivityNotifier interface {
	NotifyActivity(ctx context.Context, roomID string) error
}

// FileService 实现房间的虚拟文件树：按 (名称, 规范化路径) 新建或覆盖节点，列出节点。
type FileService struct {
	roomRepo repository.RoomRepository
	fileRepo repository.FileRepository
	notifier ActivityNotifier
}

// NewFileService 创建 FileService 实例。notifier 可以为 nil。
func NewFileService(roomRepo repository.RoomRepository, fileRepo repository.FileRepository, notifier ActivityNotifier) *FileService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for FileService")
	}
	if fileRepo == nil {
		panic("FileRepository cannot be nil for FileService")
	}
	return &FileService{roomRepo: roomRepo, fileRepo: fileRepo, notifier: notifier}
}

// UpsertInput 是 Upsert 的参数
type UpsertInput struct {
	RoomID   string
	Name     string
	Path     string
	Content  string
	IsFolder bool
}

// Upsert 新建或覆盖文件/文件夹。
// 已存在的节点只替换内容 (后写者胜出)；文件夹的内容始终为空。
func (s *FileService) Upsert(ctx context.Context, in UpsertInput) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": in.RoomID, "operation": "UpsertFile"})

	name := strings.TrimSpace(in.Name)
	if name == "" || in.Path == "" {
		return fmt.Errorf("%w: name and path are required", ErrBadRequest)
	}
	key := domain.NewNodeKey(name, in.Path)
	logCtx = logCtx.WithField("file", key.String())

	room, err := s.findRoom(ctx, in.RoomID)
	if err != nil {
		return err
	}

	existing, err := s.fileRepo.FindByKey(ctx, room.ID, key)
	switch {
	case err == nil:
		content := in.Content
		if existing.IsFolder {
			content = ""
		}
		if err := s.fileRepo.UpdateContent(ctx, existing, content); err != nil {
			logCtx.WithError(err).Error("Failed to update file content")
			return ErrInternalServer
		}
		logCtx.Debug("File content replaced")
	case errors.Is(err, repository.ErrFileNotFound):
		node := &domain.FileNode{
			RoomID:   room.ID,
			Name:     key.Name,
			Path:     key.Path,
			IsFolder: in.IsFolder,
			Language: domain.DefaultLanguage,
		}
		if !in.IsFolder {
			node.Content = in.Content
			node.Language = domain.DetectLanguage(key.Name)
		}
		if err := s.fileRepo.Insert(ctx, node); err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				logCtx.Warn("Concurrent insert of the same file won first")
				return fmt.Errorf("%w: file/folder already exists", ErrConflict)
			}
			logCtx.WithError(err).Error("Failed to insert file")
			return ErrInternalServer
		}
		logCtx.WithFields(logrus.Fields{"language": node.Language, "is_folder": node.IsFolder}).Info("File node created")
	default:
		logCtx.WithError(err).Error("Failed to look up file")
		return ErrInternalServer
	}

	s.notify(ctx, room.RoomID)
	return nil
}

// List 返回房间内的全部节点
func (s *FileService) List(ctx context.Context, roomID string) ([]domain.FileNode, error) {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	nodes, err := s.fileRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to list files")
		return nil, ErrInternalServer
	}
	return nodes, nil
}

// notify 记录房间活动，失败只记日志
func (s *FileService) notify(ctx context.Context, roomID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyActivity(ctx, roomID); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to record room activity")
	}
}

func (s *FileService) findRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrBadRequest)
	}
	room, err := s.roomRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to find room")
		return nil, ErrInternalServer
	}
	return room, nil
}
