package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Request opcodes.
const (
	opGetThermalInfo byte = 0x01
	opSetFanState    byte = 0x02
)

// Status is a response frame header. StatusSuccess is followed by the
// payload the request asked for; the error statuses are complete frames
// on their own.
type Status byte

const (
	StatusSuccess          Status = 0x00
	StatusInternalError    Status = 0x01
	StatusMalformedRequest Status = 0x02
)

// Request is one decoded client request frame. The set of implementations
// is closed: GetThermalInfo and SetFanState.
type Request interface {
	appendWire(b []byte) []byte
}

// GetThermalInfo requests one ThermalInfo snapshot.
type GetThermalInfo struct{}

// SetFanState requests a fan control state change. The response is a
// FanChangeResponse.
type SetFanState struct {
	State FanState
}

func (GetThermalInfo) appendWire(b []byte) []byte {
	return append(b, opGetThermalInfo)
}

func (q SetFanState) appendWire(b []byte) []byte {
	return appendFanState(append(b, opSetFanState), q.State)
}

// WriteRequest writes one request frame.
func WriteRequest(w io.Writer, req Request) error {
	_, err := w.Write(req.appendWire(nil))
	return err
}

// ReadRequest reads and decodes one request frame. A stream that ends
// before the first byte of a frame yields io.EOF; one that ends inside a
// frame yields io.ErrUnexpectedEOF, and an undecodable frame yields a
// coded error.
func ReadRequest(r io.Reader) (Request, error) {
	op, err := readByte(r)
	if err != nil {
		return nil, err
	}

	switch op {
	case opGetThermalInfo:
		return GetThermalInfo{}, nil
	case opSetFanState:
		state, err := readFanState(r)
		if err != nil {
			return nil, err
		}
		return SetFanState{State: state}, nil
	default:
		return nil, ErrUnknownOpcode
	}
}

// WriteError writes a bare error response frame.
func WriteError(w io.Writer, status Status) error {
	_, err := w.Write([]byte{byte(status)})
	return err
}

// WriteThermalInfo writes a success response carrying a thermal snapshot.
func WriteThermalInfo(w io.Writer, info ThermalInfo) error {
	b := []byte{byte(StatusSuccess), byte(info.CPUTemp)}
	if info.GPUTemp != nil {
		b = append(b, 1, byte(*info.GPUTemp))
	} else {
		b = append(b, 0)
	}
	b = binary.BigEndian.AppendUint16(b, info.RPMLeft)
	b = binary.BigEndian.AppendUint16(b, info.RPMRight)
	b = appendPercent(b, info.FanSpeedRange.Min)
	b = appendPercent(b, info.FanSpeedRange.Max)
	b = appendPercent(b, info.FixedSpeed)
	if info.FanState != nil {
		b = appendFanState(append(b, 1), *info.FanState)
	} else {
		b = append(b, 0)
	}

	_, err := w.Write(b)
	return err
}

// ReadThermalInfo reads the response to a GetThermalInfo request. An error
// response frame is returned as ErrServerInternal or ErrServerRejectedFrame.
func ReadThermalInfo(r io.Reader) (ThermalInfo, error) {
	if err := readSuccess(r); err != nil {
		return ThermalInfo{}, err
	}

	var info ThermalInfo

	cpu, err := readByte(r)
	if err != nil {
		return ThermalInfo{}, eofToUnexpected(err)
	}
	info.CPUTemp = Celsius(cpu)

	present, err := readOption(r)
	if err != nil {
		return ThermalInfo{}, err
	}
	if present {
		gpu, err := readByte(r)
		if err != nil {
			return ThermalInfo{}, eofToUnexpected(err)
		}
		temp := Celsius(gpu)
		info.GPUTemp = &temp
	}

	if info.RPMLeft, err = readUint16(r); err != nil {
		return ThermalInfo{}, err
	}
	if info.RPMRight, err = readUint16(r); err != nil {
		return ThermalInfo{}, err
	}
	if info.FanSpeedRange.Min, err = readPercent(r); err != nil {
		return ThermalInfo{}, err
	}
	if info.FanSpeedRange.Max, err = readPercent(r); err != nil {
		return ThermalInfo{}, err
	}
	if info.FixedSpeed, err = readPercent(r); err != nil {
		return ThermalInfo{}, err
	}

	present, err = readOption(r)
	if err != nil {
		return ThermalInfo{}, err
	}
	if present {
		state, err := readFanState(r)
		if err != nil {
			return ThermalInfo{}, err
		}
		info.FanState = &state
	}

	return info, nil
}

// WriteFanChange writes a success response carrying a fan change outcome.
func WriteFanChange(w io.Writer, resp FanChangeResponse) error {
	b := []byte{byte(StatusSuccess), byte(resp.Status)}
	if resp.Status == FanChangeUnsafeSpeed {
		b = appendPercent(b, resp.Allowed.Min)
		b = appendPercent(b, resp.Allowed.Max)
	}

	_, err := w.Write(b)
	return err
}

// ReadFanChange reads the response to a SetFanState request. An error
// response frame is returned as ErrServerInternal or ErrServerRejectedFrame.
func ReadFanChange(r io.Reader) (FanChangeResponse, error) {
	if err := readSuccess(r); err != nil {
		return FanChangeResponse{}, err
	}

	tag, err := readByte(r)
	if err != nil {
		return FanChangeResponse{}, eofToUnexpected(err)
	}

	switch FanChangeStatus(tag) {
	case FanChangeAccepted:
		return FanChangeResponse{Status: FanChangeAccepted}, nil
	case FanChangeUnsafeSpeed:
		var allowed SpeedRange
		if allowed.Min, err = readPercent(r); err != nil {
			return FanChangeResponse{}, err
		}
		if allowed.Max, err = readPercent(r); err != nil {
			return FanChangeResponse{}, err
		}
		return FanChangeResponse{Status: FanChangeUnsafeSpeed, Allowed: allowed}, nil
	default:
		return FanChangeResponse{}, ErrUnknownFanChangeStatus
	}
}

func readSuccess(r io.Reader) error {
	status, err := readByte(r)
	if err != nil {
		return err
	}

	switch Status(status) {
	case StatusSuccess:
		return nil
	case StatusInternalError:
		return ErrServerInternal
	case StatusMalformedRequest:
		return ErrServerRejectedFrame
	default:
		return ErrUnknownStatus
	}
}

func appendFanState(b []byte, s FanState) []byte {
	b = append(b, byte(s.Mode))
	if s.Mode == FanFixed {
		b = appendPercent(b, s.FixedSpeed)
	}

	return b
}

func readFanState(r io.Reader) (FanState, error) {
	tag, err := readByte(r)
	if err != nil {
		return FanState{}, eofToUnexpected(err)
	}

	mode := FanMode(tag)
	if mode > FanFixed {
		return FanState{}, ErrUnknownFanMode
	}
	if mode != FanFixed {
		return FanState{Mode: mode}, nil
	}

	speed, err := readPercent(r)
	if err != nil {
		return FanState{}, err
	}

	return FanState{Mode: FanFixed, FixedSpeed: speed}, nil
}

func appendPercent(b []byte, p Percent) []byte {
	return binary.BigEndian.AppendUint64(b, math.Float64bits(float64(p)))
}

func readPercent(r io.Reader) (Percent, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, eofToUnexpected(err)
	}

	return NewPercent(math.Float64frombits(binary.BigEndian.Uint64(buf[:])))
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, eofToUnexpected(err)
	}

	return binary.BigEndian.Uint16(buf[:]), nil
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}

	return buf[0], nil
}

// eofToUnexpected rewrites end-of-stream inside a frame as
// io.ErrUnexpectedEOF. Bare io.EOF is reserved for a stream that ends
// between frames.
func eofToUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}

	return err
}

func readOption(r io.Reader) (bool, error) {
	tag, err := readByte(r)
	if err != nil {
		return false, eofToUnexpected(err)
	}

	switch tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidOption
	}
}
