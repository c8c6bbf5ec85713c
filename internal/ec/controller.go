package ec

import (
	"math"
	"sync"

	"github.com/mjguynn/a15kb/internal/errors"
	"github.com/mjguynn/a15kb/internal/logger"
	"github.com/mjguynn/a15kb/protocol"
)

// Safe bounds for fixed fan speeds. Speeds under the floor are presumed
// thermally unsafe, so change requests below it are rejected rather than
// clamped.
const (
	FixedSpeedMin = 0.30
	FixedSpeedMax = 1.00
)

// SafeSpeedRange returns the inclusive range of accepted fixed fan speeds.
func SafeSpeedRange() protocol.SpeedRange {
	return protocol.SpeedRange{Min: FixedSpeedMin, Max: FixedSpeedMax}
}

// Controller is the hardware model. It owns the process's only handle to
// the EC register space and serializes every register transaction behind
// one lock, so concurrent callers always observe whole transactions.
type Controller struct {
	mu  sync.Mutex
	dev Device
}

// NewController wraps the given device. The controller takes ownership;
// no other code may touch the device afterwards.
func NewController(dev Device) *Controller {
	return &Controller{dev: dev}
}

// ThermalInfo reads one self-consistent thermal snapshot. All registers
// are read under a single lock acquisition, so no concurrent change can
// interleave between the fields.
func (c *Controller) ThermalInfo() (protocol.ThermalInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cpu, err := readReg(c.dev, regTempCPU)
	if err != nil {
		return protocol.ThermalInfo{}, err
	}

	gpu, err := readReg(c.dev, regTempGPU)
	if err != nil {
		return protocol.ThermalInfo{}, err
	}

	rpmLeft, err := readWordReg(c.dev, regFanRPM0)
	if err != nil {
		return protocol.ThermalInfo{}, err
	}

	rpmRight, err := readWordReg(c.dev, regFanRPM1)
	if err != nil {
		return protocol.ThermalInfo{}, err
	}

	fixedSpeed, err := c.fixedSpeedLocked()
	if err != nil {
		return protocol.ThermalInfo{}, err
	}

	state, err := c.fanStateLocked(fixedSpeed)
	if err != nil {
		return protocol.ThermalInfo{}, err
	}

	info := protocol.ThermalInfo{
		CPUTemp:       protocol.Celsius(cpu),
		RPMLeft:       rpmLeft,
		RPMRight:      rpmRight,
		FanSpeedRange: SafeSpeedRange(),
		FixedSpeed:    fixedSpeed,
		FanState:      state,
	}

	// The EC reports 0 while the dGPU is powered down; that is absence
	// of a reading, not a temperature.
	if gpu != 0 {
		temp := protocol.Celsius(gpu)
		info.GPUTemp = &temp
	}

	return info, nil
}

// SetFanState validates and applies a fan state change. A fixed speed
// outside the safe range is refused before any register is touched and
// reported as an unsafe-speed outcome, not an error.
func (c *Controller) SetFanState(state protocol.FanState) (protocol.FanChangeResponse, error) {
	if state.Mode > protocol.FanFixed {
		return protocol.FanChangeResponse{}, errors.New().WithData(errors.ErrInvalidArgument, struct {
			Mode uint8
		}{uint8(state.Mode)})
	}

	if state.Mode == protocol.FanFixed && !SafeSpeedRange().Contains(state.FixedSpeed) {
		return protocol.FanChangeResponse{
			Status:  protocol.FanChangeUnsafeSpeed,
			Allowed: SafeSpeedRange(),
		}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Write the numeric speed before raising the fixed bit so there is
	// no interval where the bit is set but a stale speed is stored.
	if state.Mode == protocol.FanFixed {
		if err := c.writeFixedSpeedLocked(state.FixedSpeed); err != nil {
			return protocol.FanChangeResponse{}, err
		}
	}

	quiet := state.Mode == protocol.FanQuiet
	gaming := state.Mode == protocol.FanAggressive
	fixed := state.Mode == protocol.FanFixed
	if err := c.writeFanModesLocked(quiet, gaming, fixed); err != nil {
		return protocol.FanChangeResponse{}, err
	}

	return protocol.FanChangeResponse{Status: protocol.FanChangeAccepted}, nil
}

// Close releases the device handle. Only called on process exit.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dev.Close()
}

// fixedSpeedLocked reads both fans' stored fixed speeds and averages them
// into one fraction.
func (c *Controller) fixedSpeedLocked() (protocol.Percent, error) {
	hw0, err := readReg(c.dev, regFanFixedSpeed0)
	if err != nil {
		return 0, err
	}

	hw1, err := readReg(c.dev, regFanFixedSpeed1)
	if err != nil {
		return 0, err
	}

	speed := (float64(fanSpeedFromHW(hw0)) + float64(fanSpeedFromHW(hw1))) / 2

	return protocol.Percent(speed), nil
}

// fanStateLocked reads the three mode bits and classifies them.
func (c *Controller) fanStateLocked(fixedSpeed protocol.Percent) (*protocol.FanState, error) {
	quiet, err := readBitReg(c.dev, bitFanQuiet)
	if err != nil {
		return nil, err
	}

	gaming, err := readBitReg(c.dev, bitFanGaming)
	if err != nil {
		return nil, err
	}

	fixed, err := readBitReg(c.dev, bitFanFixed)
	if err != nil {
		return nil, err
	}

	state := classifyFanState(quiet, gaming, fixed, fixedSpeed)
	if state == nil {
		logger.Warn().
			Bool("quiet", quiet).
			Bool("gaming", gaming).
			Msg("EC reports an unclassifiable fan mode combination")
	}

	return state, nil
}

// writeFixedSpeedLocked stores the same converted speed into both fans'
// fixed speed registers; independent per-fan control is not exposed.
func (c *Controller) writeFixedSpeedLocked(speed protocol.Percent) error {
	hw := fanSpeedToHW(speed)

	if err := writeReg(c.dev, regFanFixedSpeed0, hw); err != nil {
		return err
	}

	return writeReg(c.dev, regFanFixedSpeed1, hw)
}

// writeFanModesLocked stores the three mode bits. Quiet and gaming are
// mutually exclusive curves; requesting both is a programmer error, since
// no legitimate caller can derive that combination.
func (c *Controller) writeFanModesLocked(quiet, gaming, fixed bool) error {
	if quiet && gaming {
		panic("ec: quiet and gaming fan modes are mutually exclusive")
	}

	if err := writeBitReg(c.dev, bitFanQuiet, quiet); err != nil {
		return err
	}

	if err := writeBitReg(c.dev, bitFanGaming, gaming); err != nil {
		return err
	}

	return writeBitReg(c.dev, bitFanFixed, fixed)
}

// classifyFanState maps a raw mode bit triple to a fan state. The mapping
// is total: the fixed bit wins regardless of the curve bits, and the
// quiet-and-gaming combination with fixed clear maps to no known state,
// reported as nil rather than fabricated.
func classifyFanState(quiet, gaming, fixed bool, fixedSpeed protocol.Percent) *protocol.FanState {
	var state protocol.FanState

	switch {
	case fixed:
		state = protocol.FixedFanState(fixedSpeed)
	case quiet && gaming:
		return nil
	case quiet:
		state = protocol.FanState{Mode: protocol.FanQuiet}
	case gaming:
		state = protocol.FanState{Mode: protocol.FanAggressive}
	default:
		state = protocol.FanState{Mode: protocol.FanNormal}
	}

	return &state
}

// fanSpeedToHW converts a speed fraction to the hardware integer,
// rounding up so a request is never weakened by truncation.
func fanSpeedToHW(speed protocol.Percent) uint8 {
	hw := math.Ceil(float64(speed) * maxHWFanSpeed)
	if hw > maxHWFanSpeed {
		hw = maxHWFanSpeed
	}
	if hw < 0 {
		hw = 0
	}

	return uint8(hw)
}

// fanSpeedFromHW converts a stored hardware speed to a fraction. Stored
// values above the hardware maximum are clamped so the result is always a
// legal fraction.
func fanSpeedFromHW(hw uint8) protocol.Percent {
	if hw > maxHWFanSpeed {
		hw = maxHWFanSpeed
	}

	return protocol.Percent(float64(hw) / maxHWFanSpeed)
}
