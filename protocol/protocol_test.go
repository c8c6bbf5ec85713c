package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPercent(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		wantErr bool
	}{
		{"zero", 0.0, false},
		{"one", 1.0, false},
		{"half", 0.5, false},
		{"below range", -0.01, true},
		{"above range", 1.01, true},
		{"nan", math.NaN(), true},
		{"positive infinity", math.Inf(1), true},
		{"negative infinity", math.Inf(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPercent(tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPercent)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.value, float64(p), 1e-12)
		})
	}
}

func TestRequestRoundTrip(t *testing.T) {
	speed, err := NewPercent(0.45)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  Request
	}{
		{"thermal info", GetThermalInfo{}},
		{"set normal", SetFanState{State: FanState{Mode: FanNormal}}},
		{"set quiet", SetFanState{State: FanState{Mode: FanQuiet}}},
		{"set fixed", SetFanState{State: FixedFanState(speed)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteRequest(&buf, tt.req))

			got, err := ReadRequest(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.req, got)
			assert.Zero(t, buf.Len(), "frame should be fully consumed")
		})
	}
}

func TestReadRequestCleanEOF(t *testing.T) {
	_, err := ReadRequest(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadRequestTruncatedFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"opcode only", []byte{opSetFanState}},
		{"mode without speed", []byte{opSetFanState, byte(FanFixed)}},
		{"partial speed", []byte{opSetFanState, byte(FanFixed), 0x3f, 0xe0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRequest(bytes.NewReader(tt.frame))
			require.Error(t, err)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
			assert.NotErrorIs(t, err, io.EOF)
		})
	}
}

func TestReadRequestUnknownOpcode(t *testing.T) {
	_, err := ReadRequest(bytes.NewReader([]byte{0xff}))
	assert.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestReadRequestUnknownFanMode(t *testing.T) {
	_, err := ReadRequest(bytes.NewReader([]byte{opSetFanState, 0x09}))
	assert.ErrorIs(t, err, ErrUnknownFanMode)
}

func TestReadRequestRejectsBadSpeed(t *testing.T) {
	for _, bad := range []float64{1.5, -0.1, math.NaN(), math.Inf(1)} {
		frame := []byte{opSetFanState, byte(FanFixed)}
		frame = binary.BigEndian.AppendUint64(frame, math.Float64bits(bad))

		_, err := ReadRequest(bytes.NewReader(frame))
		assert.ErrorIs(t, err, ErrInvalidPercent, "speed %v", bad)
	}
}

func TestThermalInfoRoundTrip(t *testing.T) {
	gpu := Celsius(52)
	state := FixedFanState(Percent(0.35))
	info := ThermalInfo{
		CPUTemp:       63,
		GPUTemp:       &gpu,
		RPMLeft:       2730,
		RPMRight:      2856,
		FanSpeedRange: SpeedRange{Min: 0.30, Max: 1.00},
		FixedSpeed:    0.35,
		FanState:      &state,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteThermalInfo(&buf, info))

	got, err := ReadThermalInfo(&buf)
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestThermalInfoAbsentFields(t *testing.T) {
	// GPU powered off, mode bits unclassifiable: both travel as absence.
	info := ThermalInfo{
		CPUTemp:       41,
		RPMLeft:       1200,
		RPMRight:      1180,
		FanSpeedRange: SpeedRange{Min: 0.30, Max: 1.00},
		FixedSpeed:    0.50,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteThermalInfo(&buf, info))

	got, err := ReadThermalInfo(&buf)
	require.NoError(t, err)
	assert.Nil(t, got.GPUTemp)
	assert.Nil(t, got.FanState)
	assert.Equal(t, info, got)
}

func TestReadThermalInfoTruncated(t *testing.T) {
	gpu := Celsius(52)
	state := FixedFanState(Percent(0.35))
	info := ThermalInfo{
		CPUTemp:       63,
		GPUTemp:       &gpu,
		RPMLeft:       2730,
		RPMRight:      2856,
		FanSpeedRange: SpeedRange{Min: 0.30, Max: 1.00},
		FixedSpeed:    0.35,
		FanState:      &state,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteThermalInfo(&buf, info))
	full := buf.Bytes()

	// Cutting anywhere after the status byte must not look like a clean close.
	for cut := 1; cut < len(full); cut++ {
		_, err := ReadThermalInfo(bytes.NewReader(full[:cut]))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "cut at %d of %d", cut, len(full))
	}
}

func TestReadThermalInfoErrorHeaders(t *testing.T) {
	_, err := ReadThermalInfo(bytes.NewReader([]byte{byte(StatusInternalError)}))
	assert.ErrorIs(t, err, ErrServerInternal)

	_, err = ReadThermalInfo(bytes.NewReader([]byte{byte(StatusMalformedRequest)}))
	assert.ErrorIs(t, err, ErrServerRejectedFrame)

	_, err = ReadThermalInfo(bytes.NewReader([]byte{0x7f}))
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestFanChangeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		resp FanChangeResponse
	}{
		{"accepted", FanChangeResponse{Status: FanChangeAccepted}},
		{
			"unsafe speed",
			FanChangeResponse{
				Status:  FanChangeUnsafeSpeed,
				Allowed: SpeedRange{Min: 0.30, Max: 1.00},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteFanChange(&buf, tt.resp))

			got, err := ReadFanChange(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.resp, got)
		})
	}
}

func TestParseFanMode(t *testing.T) {
	for _, mode := range []FanMode{FanNormal, FanQuiet, FanAggressive, FanFixed} {
		got, err := ParseFanMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, got)
	}

	_, err := ParseFanMode("turbo")
	assert.ErrorIs(t, err, ErrUnknownFanMode)
}

func TestFanStateString(t *testing.T) {
	assert.Equal(t, "quiet", FanState{Mode: FanQuiet}.String())
	assert.Equal(t, "fixed (45.0%)", FixedFanState(Percent(0.45)).String())
}

func TestSpeedRangeContains(t *testing.T) {
	r := SpeedRange{Min: 0.30, Max: 1.00}

	assert.True(t, r.Contains(0.30))
	assert.True(t, r.Contains(1.00))
	assert.True(t, r.Contains(0.65))
	assert.False(t, r.Contains(0.29))
	assert.False(t, r.Contains(1.01))
}
