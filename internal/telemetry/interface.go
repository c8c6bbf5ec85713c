package telemetry

import (
	"context"
	"time"
)

// Collector receives the thermal snapshots the server hands out. The
// collector never blocks a request on storage: recording failures are the
// caller's to log and ignore.
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository persists snapshots.
type Repository interface {
	Record(snapshot *Snapshot) error
	Close() error
}

// Snapshot is one thermal reading as served to a client.
type Snapshot struct {
	Timestamp time.Time
	// CPUTemp and GPUTemp are whole degrees Celsius; GPUTemp is nil
	// while the dGPU is powered off.
	CPUTemp int
	GPUTemp *int
	// RPMLeft and RPMRight are the measured fan speeds.
	RPMLeft  int
	RPMRight int
	// FixedSpeed is the stored fixed fan fraction.
	FixedSpeed float64
	// FanMode is the classified mode name, nil when unclassifiable.
	FanMode *string
}
