package ec

import (
	"sync"

	"github.com/mjguynn/a15kb/internal/errors"
)

// Mock is an in-memory Device for tests and for running the server
// without EC hardware. It records the offset of every write so callers
// can assert transaction ordering, and can be told to fail reads or
// writes to exercise fault paths.
type Mock struct {
	mu        sync.Mutex
	regs      [256]byte
	writes    []int64
	failRead  bool
	failWrite bool
}

// NewMock returns a mock device seeded with plausible idle registers:
// warm CPU, dGPU powered off, both fans spinning, fixed speed at half,
// all mode bits clear (normal mode).
func NewMock() *Mock {
	m := &Mock{}
	m.regs[regTempCPU] = 51
	m.regs[regTempGPU] = 0
	m.regs[regFanRPM0] = 0x0A
	m.regs[regFanRPM0+1] = 0xAA
	m.regs[regFanRPM1] = 0x0B
	m.regs[regFanRPM1+1] = 0x28
	m.regs[regFanFixedSpeed0] = 115
	m.regs[regFanFixedSpeed1] = 115

	return m
}

func (m *Mock) ReadBytes(off int64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failRead {
		return errors.New().WithData(ErrDeviceRead, struct {
			Offset int64
		}{off})
	}
	if off < 0 || off+int64(len(buf)) > int64(len(m.regs)) {
		return errors.New().WithData(ErrDeviceSeek, struct {
			Offset int64
		}{off})
	}

	copy(buf, m.regs[off:])

	return nil
}

func (m *Mock) WriteBytes(off int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrite {
		return errors.New().WithData(ErrDeviceWrite, struct {
			Offset int64
		}{off})
	}
	if off < 0 || off+int64(len(data)) > int64(len(m.regs)) {
		return errors.New().WithData(ErrDeviceSeek, struct {
			Offset int64
		}{off})
	}

	copy(m.regs[off:], data)
	m.writes = append(m.writes, off)

	return nil
}

func (m *Mock) Close() error {
	return nil
}

// GetReg returns the current value of one register.
func (m *Mock) GetReg(off int64) byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.regs[off]
}

// SetReg stores a register value without recording a write.
func (m *Mock) SetReg(off int64, value byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.regs[off] = value
}

// Writes returns the offsets of all writes in the order they happened.
func (m *Mock) Writes() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]int64(nil), m.writes...)
}

// ResetWrites clears the recorded write log.
func (m *Mock) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes = nil
}

// SetFailRead makes subsequent reads fault.
func (m *Mock) SetFailRead(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failRead = fail
}

// SetFailWrite makes subsequent writes fault.
func (m *Mock) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failWrite = fail
}
