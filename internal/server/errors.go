package server

import "github.com/mjguynn/a15kb/internal/errors"

const (
	// Socket setup errors
	ErrSocketDirCreate   = errors.ErrorCode("server_socket_dir_create_failed")
	ErrStaleSocketRemove = errors.ErrorCode("server_stale_socket_remove_failed")
	ErrSocketBind        = errors.ErrorCode("server_socket_bind_failed")
	ErrSocketChmod       = errors.ErrorCode("server_socket_chmod_failed")
)
