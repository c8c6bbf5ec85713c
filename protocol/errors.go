package protocol

import "errors"

// Codec errors. ReadRequest and the response readers return these when a
// frame is structurally invalid; stream-level failures surface as the
// underlying I/O errors instead.
var (
	ErrUnknownOpcode          = errors.New("unknown request opcode")
	ErrUnknownFanMode         = errors.New("unknown fan mode")
	ErrInvalidPercent         = errors.New("fan speed fraction outside [0.0, 1.0]")
	ErrInvalidOption          = errors.New("option tag is neither 0 nor 1")
	ErrUnknownStatus          = errors.New("unknown response status")
	ErrUnknownFanChangeStatus = errors.New("unknown fan change status")
)

// Error response headers, as seen by a client.
var (
	ErrServerInternal      = errors.New("server reported an internal error")
	ErrServerRejectedFrame = errors.New("server could not decode the request")
)
