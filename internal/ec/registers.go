package ec

// Register map for the AERO 15 KB embedded controller. Offsets address
// bytes in the EC's space as exposed by the ec_sys debugfs file. The map
// is fixed at compile time and is the only place raw offsets appear.
const (
	// regTempCPU holds the CPU temperature in whole degrees Celsius.
	regTempCPU int64 = 0x60
	// regTempGPU holds the dGPU temperature in whole degrees Celsius.
	// It reads 0 while the dGPU is powered down.
	regTempGPU int64 = 0x61
	// regFanFixedSpeed0 and regFanFixedSpeed1 store each fan's fixed
	// hardware speed, 0..=maxHWFanSpeed. They stay populated even while
	// fixed mode is inactive.
	regFanFixedSpeed0 int64 = 0xB0
	regFanFixedSpeed1 int64 = 0xB1
	// regFanRPM0 and regFanRPM1 report each fan's measured speed as a
	// big-endian 16-bit word.
	regFanRPM0 int64 = 0xFC
	regFanRPM1 int64 = 0xFE
)

// maxHWFanSpeed is the largest value the fixed speed registers accept.
const maxHWFanSpeed = 229

// bitReg addresses a single bit within an EC register.
type bitReg struct {
	off int64
	bit uint8
}

// mask returns the bit's mask within its byte. A bit index above 7 is a
// programmer error: call sites address the fixed table above, so it can
// never occur at runtime.
func (r bitReg) mask() byte {
	if r.bit > 7 {
		panic("ec: bit index out of range")
	}

	return 1 << r.bit
}

var (
	// bitFanQuiet is set while the quiet fan curve is enabled.
	bitFanQuiet = bitReg{0x08, 6}
	// bitFanGaming is set while the aggressive ("gaming") fan curve is
	// enabled.
	bitFanGaming = bitReg{0x0C, 4}
	// bitFanFixed is set while the fans are held at the speed stored in
	// the fixed speed registers.
	bitFanFixed = bitReg{0x06, 4}
)
