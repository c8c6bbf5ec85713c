// Package protocol defines the wire vocabulary shared by the a15kb server
// and its clients: the request and response frames exchanged over the
// server's unix socket, the domain value types they carry, and the binary
// codec for both.
//
// The protocol is a strict request/response exchange. A client sends one
// request frame and the server answers with exactly one response frame
// before reading the next request; there is no pipelining. Frames have no
// explicit length prefix: the frame structure itself (opcodes, variant tags,
// presence bytes) determines how many bytes belong to it. All multi-byte
// integers are big-endian; fractions travel as IEEE-754 float64 bits.
package protocol

import (
	"fmt"
	"math"
	"path/filepath"
)

const (
	// SocketDir is the directory the server creates its listening
	// sockets in.
	SocketDir = "/run/a15kb"

	// DefaultSocketName is the socket file name used when none is
	// configured.
	DefaultSocketName = "default.sock"
)

// SocketPath returns the full path of the server socket with the given
// file name.
func SocketPath(name string) string {
	return filepath.Join(SocketDir, name)
}

// Percent is a fan speed fraction in [0.0, 1.0].
type Percent float64

// NewPercent validates v as a fan speed fraction. Non-finite values and
// values outside [0.0, 1.0] are rejected.
func NewPercent(v float64) (Percent, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0.0 || v > 1.0 {
		return 0, ErrInvalidPercent
	}

	return Percent(v), nil
}

func (p Percent) String() string {
	return fmt.Sprintf("%.1f%%", float64(p)*100)
}

// Celsius is an unscaled 8-bit embedded-controller temperature reading.
type Celsius uint8

func (c Celsius) String() string {
	return fmt.Sprintf("%d°C", uint8(c))
}

// SpeedRange is an inclusive fan speed interval.
type SpeedRange struct {
	Min Percent
	Max Percent
}

func (r SpeedRange) String() string {
	return fmt.Sprintf("%v..%v", r.Min, r.Max)
}

// Contains reports whether p falls inside the interval.
func (r SpeedRange) Contains(p Percent) bool {
	return p >= r.Min && p <= r.Max
}

// FanMode identifies one of the embedded controller's fan control modes.
type FanMode uint8

const (
	// FanNormal is the firmware's default automatic fan curve.
	FanNormal FanMode = iota
	// FanQuiet is the firmware's low-noise automatic fan curve.
	FanQuiet
	// FanAggressive is the firmware's high-cooling ("gaming") fan curve.
	FanAggressive
	// FanFixed holds both fans at a user-specified fraction of their
	// maximum speed.
	FanFixed
)

func (m FanMode) String() string {
	switch m {
	case FanNormal:
		return "normal"
	case FanQuiet:
		return "quiet"
	case FanAggressive:
		return "aggressive"
	case FanFixed:
		return "fixed"
	default:
		return fmt.Sprintf("fan_mode(%d)", uint8(m))
	}
}

// ParseFanMode maps a mode name, as produced by FanMode.String, back to
// its FanMode.
func ParseFanMode(s string) (FanMode, error) {
	switch s {
	case "normal":
		return FanNormal, nil
	case "quiet":
		return FanQuiet, nil
	case "aggressive":
		return FanAggressive, nil
	case "fixed":
		return FanFixed, nil
	default:
		return 0, ErrUnknownFanMode
	}
}

// FanState is one complete fan control setting. FixedSpeed is meaningful
// only when Mode is FanFixed; for every other mode it is zero. The zero
// value is the firmware default, FanNormal.
type FanState struct {
	Mode       FanMode
	FixedSpeed Percent
}

// FixedFanState returns the fan state holding both fans at the given
// fraction of their maximum speed.
func FixedFanState(speed Percent) FanState {
	return FanState{Mode: FanFixed, FixedSpeed: speed}
}

func (s FanState) String() string {
	if s.Mode == FanFixed {
		return fmt.Sprintf("%v (%v)", s.Mode, s.FixedSpeed)
	}

	return s.Mode.String()
}

// ThermalInfo is one self-consistent snapshot of the embedded controller's
// thermal state, produced fresh for every query.
type ThermalInfo struct {
	// CPUTemp is the CPU package temperature.
	CPUTemp Celsius
	// GPUTemp is the discrete GPU temperature, or nil while the GPU is
	// powered off.
	GPUTemp *Celsius
	// RPMLeft and RPMRight are the measured speeds of the two fans.
	RPMLeft  uint16
	RPMRight uint16
	// FanSpeedRange is the server's safe range for fixed fan speeds.
	// Fixed-speed requests outside it are rejected.
	FanSpeedRange SpeedRange
	// FixedSpeed is the fixed speed currently stored in the controller's
	// speed registers, regardless of whether fixed mode is active.
	FixedSpeed Percent
	// FanState is the classified fan control state, or nil when the
	// controller reports a bit combination that maps to no known state.
	FanState *FanState
}

// FanChangeStatus is the outcome of a fan state change request.
type FanChangeStatus uint8

const (
	// FanChangeAccepted means the requested state was written to the
	// controller.
	FanChangeAccepted FanChangeStatus = iota
	// FanChangeUnsafeSpeed means the requested fixed speed fell outside
	// the safe range and the controller was left untouched.
	FanChangeUnsafeSpeed
)

// FanChangeResponse reports whether a fan state change was applied.
// Allowed carries the server's safe speed range when the status is
// FanChangeUnsafeSpeed and is zero otherwise. A rejected speed is never
// clamped into range on the caller's behalf.
type FanChangeResponse struct {
	Status  FanChangeStatus
	Allowed SpeedRange
}

func (r FanChangeResponse) String() string {
	if r.Status == FanChangeUnsafeSpeed {
		return fmt.Sprintf("unsafe speed, allowed %v", r.Allowed)
	}

	return "accepted"
}
