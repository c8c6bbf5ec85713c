package ec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjguynn/a15kb/internal/errors"
	"github.com/mjguynn/a15kb/protocol"
)

// conversionTolerance is the worst-case error of one hardware speed step.
const conversionTolerance = 1.0 / maxHWFanSpeed

func TestClassifyFanState(t *testing.T) {
	speed := protocol.Percent(0.5)
	state := func(mode protocol.FanMode) *protocol.FanState {
		s := protocol.FanState{Mode: mode}
		return &s
	}
	fixed := protocol.FixedFanState(speed)

	tests := []struct {
		name   string
		quiet  bool
		gaming bool
		fixed  bool
		want   *protocol.FanState
	}{
		{"all clear", false, false, false, state(protocol.FanNormal)},
		{"quiet only", true, false, false, state(protocol.FanQuiet)},
		{"gaming only", false, true, false, state(protocol.FanAggressive)},
		{"fixed only", false, false, true, &fixed},
		{"fixed with quiet", true, false, true, &fixed},
		{"fixed with gaming", false, true, true, &fixed},
		{"fixed with both curves", true, true, true, &fixed},
		{"quiet and gaming", true, true, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyFanState(tt.quiet, tt.gaming, tt.fixed, speed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFanSpeedConversionRoundTrip(t *testing.T) {
	for i := 0; i <= 100; i++ {
		want := float64(i) / 100
		got := fanSpeedFromHW(fanSpeedToHW(protocol.Percent(want)))
		assert.InDelta(t, want, float64(got), conversionTolerance, "fraction %v", want)
	}
}

func TestFanSpeedToHW(t *testing.T) {
	assert.Equal(t, uint8(0), fanSpeedToHW(0))
	assert.Equal(t, uint8(115), fanSpeedToHW(0.5), "ceil(114.5)")
	assert.Equal(t, uint8(229), fanSpeedToHW(1.0))
}

func TestFanSpeedFromHWClampsOverrange(t *testing.T) {
	assert.Equal(t, protocol.Percent(1.0), fanSpeedFromHW(255))
}

func TestThermalInfoSnapshot(t *testing.T) {
	ctrl := NewController(NewMock())

	info, err := ctrl.ThermalInfo()
	require.NoError(t, err)

	assert.Equal(t, protocol.Celsius(51), info.CPUTemp)
	assert.Nil(t, info.GPUTemp, "powered-off dGPU reads as absent")
	assert.Equal(t, uint16(2730), info.RPMLeft)
	assert.Equal(t, uint16(2856), info.RPMRight)
	assert.Equal(t, SafeSpeedRange(), info.FanSpeedRange)
	assert.InDelta(t, 0.5, float64(info.FixedSpeed), conversionTolerance)
	require.NotNil(t, info.FanState)
	assert.Equal(t, protocol.FanNormal, info.FanState.Mode)
}

func TestThermalInfoGPUPowered(t *testing.T) {
	mock := NewMock()
	mock.SetReg(regTempGPU, 47)
	ctrl := NewController(mock)

	info, err := ctrl.ThermalInfo()
	require.NoError(t, err)
	require.NotNil(t, info.GPUTemp)
	assert.Equal(t, protocol.Celsius(47), *info.GPUTemp)
}

func TestThermalInfoUnclassifiableState(t *testing.T) {
	mock := NewMock()
	mock.SetReg(bitFanQuiet.off, bitFanQuiet.mask())
	mock.SetReg(bitFanGaming.off, bitFanGaming.mask())
	ctrl := NewController(mock)

	info, err := ctrl.ThermalInfo()
	require.NoError(t, err, "an unclassifiable state is not a fault")
	assert.Nil(t, info.FanState)
}

func TestSetFanStateFixedThenRead(t *testing.T) {
	mock := NewMock()
	ctrl := NewController(mock)

	resp, err := ctrl.SetFanState(protocol.FixedFanState(0.5))
	require.NoError(t, err)
	assert.Equal(t, protocol.FanChangeAccepted, resp.Status)

	info, err := ctrl.ThermalInfo()
	require.NoError(t, err)
	require.NotNil(t, info.FanState)
	assert.Equal(t, protocol.FanFixed, info.FanState.Mode)
	assert.InDelta(t, 0.5, float64(info.FanState.FixedSpeed), conversionTolerance)
	assert.NotZero(t, mock.GetReg(bitFanFixed.off)&bitFanFixed.mask())
}

func TestSetFanStateWriteOrder(t *testing.T) {
	mock := NewMock()
	ctrl := NewController(mock)

	_, err := ctrl.SetFanState(protocol.FixedFanState(0.5))
	require.NoError(t, err)

	// Both speed registers must be written before any mode bit so the
	// fixed bit is never raised over a stale speed.
	want := []int64{
		regFanFixedSpeed0, regFanFixedSpeed1,
		bitFanQuiet.off, bitFanGaming.off, bitFanFixed.off,
	}
	assert.Equal(t, want, mock.Writes())
}

func TestSetFanStateUnsafeSpeed(t *testing.T) {
	mock := NewMock()
	ctrl := NewController(mock)

	resp, err := ctrl.SetFanState(protocol.FixedFanState(0.1))
	require.NoError(t, err, "a policy rejection is not an error")
	assert.Equal(t, protocol.FanChangeUnsafeSpeed, resp.Status)
	assert.Equal(t, SafeSpeedRange(), resp.Allowed)

	assert.Empty(t, mock.Writes(), "rejected requests must not touch registers")
	assert.Equal(t, byte(115), mock.GetReg(regFanFixedSpeed0))
	assert.Equal(t, byte(115), mock.GetReg(regFanFixedSpeed1))
}

func TestSetFanStateBoundarySpeeds(t *testing.T) {
	tests := []struct {
		speed float64
		want  protocol.FanChangeStatus
	}{
		{0.29, protocol.FanChangeUnsafeSpeed},
		{0.30, protocol.FanChangeAccepted},
		{1.00, protocol.FanChangeAccepted},
	}

	for _, tt := range tests {
		ctrl := NewController(NewMock())

		resp, err := ctrl.SetFanState(protocol.FixedFanState(protocol.Percent(tt.speed)))
		require.NoError(t, err)
		assert.Equal(t, tt.want, resp.Status, "speed %v", tt.speed)
	}
}

func TestSetFanStateModes(t *testing.T) {
	tests := []struct {
		mode       protocol.FanMode
		wantQuiet  bool
		wantGaming bool
	}{
		{protocol.FanNormal, false, false},
		{protocol.FanQuiet, true, false},
		{protocol.FanAggressive, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			mock := NewMock()
			ctrl := NewController(mock)

			resp, err := ctrl.SetFanState(protocol.FanState{Mode: tt.mode})
			require.NoError(t, err)
			assert.Equal(t, protocol.FanChangeAccepted, resp.Status)

			assert.Equal(t, tt.wantQuiet, mock.GetReg(bitFanQuiet.off)&bitFanQuiet.mask() != 0)
			assert.Equal(t, tt.wantGaming, mock.GetReg(bitFanGaming.off)&bitFanGaming.mask() != 0)
			assert.Zero(t, mock.GetReg(bitFanFixed.off)&bitFanFixed.mask())

			info, err := ctrl.ThermalInfo()
			require.NoError(t, err)
			require.NotNil(t, info.FanState)
			assert.Equal(t, tt.mode, info.FanState.Mode)
		})
	}
}

func TestSetFanStateInvalidMode(t *testing.T) {
	mock := NewMock()
	ctrl := NewController(mock)

	_, err := ctrl.SetFanState(protocol.FanState{Mode: protocol.FanMode(9)})
	require.Error(t, err)

	var appErr errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrInvalidArgument, appErr.Code())
	assert.Empty(t, mock.Writes())
}

func TestFixedSpeedSurvivesModeChange(t *testing.T) {
	ctrl := NewController(NewMock())

	_, err := ctrl.SetFanState(protocol.FixedFanState(0.75))
	require.NoError(t, err)

	_, err = ctrl.SetFanState(protocol.FanState{Mode: protocol.FanQuiet})
	require.NoError(t, err)

	info, err := ctrl.ThermalInfo()
	require.NoError(t, err)
	require.NotNil(t, info.FanState)
	assert.Equal(t, protocol.FanQuiet, info.FanState.Mode)
	assert.InDelta(t, 0.75, float64(info.FixedSpeed), conversionTolerance,
		"stored fixed speed stays readable in other modes")
}

func TestReadFaultSurfacesCode(t *testing.T) {
	mock := NewMock()
	ctrl := NewController(mock)
	mock.SetFailRead(true)

	_, err := ctrl.ThermalInfo()
	require.Error(t, err)

	var appErr errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrDeviceRead, appErr.Code())
}

func TestWriteFaultSurfacesCode(t *testing.T) {
	mock := NewMock()
	ctrl := NewController(mock)
	mock.SetFailWrite(true)

	_, err := ctrl.SetFanState(protocol.FanState{Mode: protocol.FanQuiet})
	require.Error(t, err)

	var appErr errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrDeviceWrite, appErr.Code())
}

func TestWriteFanModesConflictPanics(t *testing.T) {
	ctrl := NewController(NewMock())

	assert.Panics(t, func() {
		_ = ctrl.writeFanModesLocked(true, true, false)
	})
}
