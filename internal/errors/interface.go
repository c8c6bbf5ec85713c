package errors

// ErrorCode identifies one failure class. Shared codes live in codes.go;
// packages with their own failure surface (ec, server, telemetry) declare
// prefixed codes next to the code that returns them.
type ErrorCode string

// Error is the error type returned by every package in this module. Code
// survives wrapping, so callers branch on it instead of matching message
// text.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory builds Errors. The convention is one `errFactory := errors.New()`
// at the top of a function that can fail, then New/Wrap/WithData at each
// return site.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
