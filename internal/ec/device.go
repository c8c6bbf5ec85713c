// Package ec models the AERO 15 KB embedded controller: raw register
// access over the ec_sys debugfs file, translation of registers into the
// protocol's thermal vocabulary, and the fan state change policy.
//
// All register traffic in the process flows through one Controller holding
// one Device. The device file must never have two live handles from the
// same process, and sharing it with another EC-writing process is
// unsupported.
package ec

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/mjguynn/a15kb/internal/errors"
)

// Device is raw access to the embedded controller's register space. Every
// operation performs exactly the requested I/O at the requested offset or
// returns a fault; there are no partial results, no retries, and no
// caching. Faults carry an error code and the offending offset, never the
// expectation of being retried.
type Device interface {
	// ReadBytes fills buf with the registers starting at off.
	ReadBytes(off int64, buf []byte) error
	// WriteBytes stores data into the registers starting at off.
	WriteBytes(off int64, data []byte) error
	Close() error
}

// DevicePath is the EC register file exposed by the ec_sys kernel module.
const DevicePath = "/sys/kernel/debug/ec/ec0/io"

// ecFile is the real Device over the debugfs register file.
type ecFile struct {
	f *os.File
}

// OpenDevice opens the EC register file read-write. The caller owns the
// returned handle for the rest of the process lifetime.
func OpenDevice(path string) (Device, error) {
	errFactory := errors.New()

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errFactory.Wrap(ErrDeviceOpenFailed, err)
	}

	return &ecFile{f: f}, nil
}

func (d *ecFile) ReadBytes(off int64, buf []byte) error {
	if err := d.seek(off); err != nil {
		return err
	}

	if _, err := io.ReadFull(d.f, buf); err != nil {
		return errors.New().Wrap(ErrDeviceRead, err).WithData(struct {
			Offset int64
			Len    int
		}{off, len(buf)})
	}

	return nil
}

func (d *ecFile) WriteBytes(off int64, data []byte) error {
	if err := d.seek(off); err != nil {
		return err
	}

	if _, err := d.f.Write(data); err != nil {
		return errors.New().Wrap(ErrDeviceWrite, err).WithData(struct {
			Offset int64
			Len    int
		}{off, len(data)})
	}

	return nil
}

// seek positions the file at off and faults if the file ends up anywhere
// else, so a bad offset can never silently touch the wrong register.
func (d *ecFile) seek(off int64) error {
	errFactory := errors.New()

	pos, err := d.f.Seek(off, io.SeekStart)
	if err != nil {
		return errFactory.Wrap(ErrDeviceSeek, err).WithData(struct {
			Offset int64
		}{off})
	}
	if pos != off {
		return errFactory.WithData(ErrDeviceSeek, struct {
			Offset int64
			Landed int64
		}{off, pos})
	}

	return nil
}

func (d *ecFile) Close() error {
	if err := d.f.Close(); err != nil {
		return errors.New().Wrap(ErrDeviceClose, err)
	}

	return nil
}

// readReg reads one register byte.
func readReg(d Device, off int64) (byte, error) {
	var buf [1]byte
	if err := d.ReadBytes(off, buf[:]); err != nil {
		return 0, err
	}

	return buf[0], nil
}

// writeReg stores one register byte.
func writeReg(d Device, off int64, value byte) error {
	return d.WriteBytes(off, []byte{value})
}

// readWordReg reads a big-endian 16-bit register pair.
func readWordReg(d Device, off int64) (uint16, error) {
	var buf [2]byte
	if err := d.ReadBytes(off, buf[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(buf[:]), nil
}

// readBitReg reads a single register bit.
func readBitReg(d Device, reg bitReg) (bool, error) {
	b, err := readReg(d, reg.off)
	if err != nil {
		return false, err
	}

	return b&reg.mask() != 0, nil
}

// writeBitReg read-modify-writes a single register bit, leaving the rest
// of the byte untouched.
func writeBitReg(d Device, reg bitReg, on bool) error {
	b, err := readReg(d, reg.off)
	if err != nil {
		return err
	}

	if on {
		b |= reg.mask()
	} else {
		b &^= reg.mask()
	}

	return writeReg(d, reg.off, b)
}
