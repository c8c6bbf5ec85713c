package ec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjguynn/a15kb/internal/errors"
)

// newTestDevice backs an ecFile with a 256 byte temp file, the size of
// the EC's register space.
func newTestDevice(t *testing.T) Device {
	t.Helper()

	path := filepath.Join(t.TempDir(), "io")
	require.NoError(t, os.WriteFile(path, make([]byte, 256), 0o600))

	dev, err := OpenDevice(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	return dev
}

func TestOpenDeviceMissing(t *testing.T) {
	_, err := OpenDevice(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)

	var appErr errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrDeviceOpenFailed, appErr.Code())
}

func TestDeviceReadWrite(t *testing.T) {
	dev := newTestDevice(t)

	require.NoError(t, dev.WriteBytes(0x60, []byte{0x33, 0x2F}))

	buf := make([]byte, 2)
	require.NoError(t, dev.ReadBytes(0x60, buf))
	assert.Equal(t, []byte{0x33, 0x2F}, buf)

	// Neighbouring registers stay untouched.
	one := make([]byte, 1)
	require.NoError(t, dev.ReadBytes(0x62, one))
	assert.Equal(t, byte(0), one[0])
}

func TestDeviceShortReadFaults(t *testing.T) {
	dev := newTestDevice(t)

	buf := make([]byte, 10)
	err := dev.ReadBytes(250, buf)
	require.Error(t, err, "a short read is a fault, not a partial result")

	var appErr errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrDeviceRead, appErr.Code())
}

func TestBitRegMaskPanicsOutOfRange(t *testing.T) {
	assert.Panics(t, func() {
		bitReg{0x06, 8}.mask()
	})
}

func TestWriteBitPreservesSiblings(t *testing.T) {
	mock := NewMock()
	mock.SetReg(bitFanQuiet.off, 0b1000_0001)

	require.NoError(t, writeBitReg(mock, bitFanQuiet, true))
	assert.Equal(t, byte(0b1100_0001), mock.GetReg(bitFanQuiet.off))

	require.NoError(t, writeBitReg(mock, bitFanQuiet, false))
	assert.Equal(t, byte(0b1000_0001), mock.GetReg(bitFanQuiet.off))
}

func TestReadBitReg(t *testing.T) {
	mock := NewMock()

	on, err := readBitReg(mock, bitFanFixed)
	require.NoError(t, err)
	assert.False(t, on)

	mock.SetReg(bitFanFixed.off, bitFanFixed.mask())

	on, err = readBitReg(mock, bitFanFixed)
	require.NoError(t, err)
	assert.True(t, on)
}
