package service

import "errors"

// 业务错误，Handler 层通过 errors.Is 映射为 HTTP 状态码
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUserNotFound    = errors.New("user not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrFileNotFound    = errors.New("file not found")
	ErrBadRequest      = errors.New("bad request")
	ErrConflict        = errors.New("conflict")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrInternalServer  = errors.New("internal server error")
)
