package ec

import (
	"os"
	"os/exec"
	"strings"

	"github.com/mjguynn/a15kb/internal/errors"
	"github.com/mjguynn/a15kb/internal/logger"
)

const (
	// productNamePath is the DMI product name exported by the kernel.
	productNamePath = "/sys/class/dmi/id/product_name"
	// supportedProduct is the only machine the register map is known to
	// be correct for.
	supportedProduct = "AERO 15 KB"
)

// CheckHardware verifies the host is a supported machine. The register
// map is board specific; on another board the same offsets could command
// unrelated EC functions.
func CheckHardware() error {
	errFactory := errors.New()

	raw, err := os.ReadFile(productNamePath)
	if err != nil {
		return errFactory.Wrap(ErrUnsupportedHardware, err)
	}

	product := strings.TrimSpace(string(raw))
	if product != supportedProduct {
		return errFactory.WithData(ErrUnsupportedHardware, struct {
			Product string
			Want    string
		}{product, supportedProduct})
	}

	return nil
}

// LoadModule loads the ec_sys kernel module with write support enabled,
// which makes DevicePath available. Requires root.
func LoadModule() error {
	errFactory := errors.New()

	out, err := exec.Command("modprobe", "ec_sys", "write_support=1").CombinedOutput()
	if err != nil {
		return errFactory.Wrap(ErrModuleLoadFailed, err).WithData(struct {
			Output string
		}{strings.TrimSpace(string(out))})
	}

	return nil
}

// Open runs the startup sequence against real hardware: verify the
// machine, load the kernel module, open the register file. Any failure
// aborts startup; the server must never come up half-working.
func Open() (*Controller, error) {
	if err := CheckHardware(); err != nil {
		return nil, err
	}

	if err := LoadModule(); err != nil {
		return nil, err
	}

	dev, err := OpenDevice(DevicePath)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("device", DevicePath).Msg("EC register file opened")

	return NewController(dev), nil
}

// OpenMock returns a controller over an in-memory mock device. Used by
// the --mock flag and by tests.
func OpenMock() *Controller {
	logger.Info().Msg("Using mock EC device")

	return NewController(NewMock())
}
