package service

import "errors"

// 业务层通用错误，handler 可根据错误类型映射到合适的 HTTP 状态码。
// 任一错误返回时整个事务回滚，不会留下部分写入。
var (
	ErrUnknownUser    = errors.New("unknown user")
	ErrInvalidRoomKey = errors.New("room key is not valid")
	ErrEmptyName      = errors.New("names cannot be empty")
	ErrNotInRoom      = errors.New("user not in a room")
	ErrUnauthorized   = errors.New("sweep may not be invoked by clients")
)
