package ec

import "github.com/mjguynn/a15kb/internal/errors"

const (
	// Startup Errors
	ErrUnsupportedHardware = errors.ErrorCode("ec_unsupported_hardware")
	ErrModuleLoadFailed    = errors.ErrorCode("ec_module_load_failed")
	ErrDeviceOpenFailed    = errors.ErrorCode("ec_device_open_failed")

	// Register I/O Faults
	ErrDeviceSeek  = errors.ErrorCode("ec_device_seek_failed")
	ErrDeviceRead  = errors.ErrorCode("ec_device_read_failed")
	ErrDeviceWrite = errors.ErrorCode("ec_device_write_failed")
	ErrDeviceClose = errors.ErrorCode("ec_device_close_failed")
)
