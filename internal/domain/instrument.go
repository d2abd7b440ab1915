package domain

import "time"

// InstrumentStatus represents the lifecycle state of a parent bond.
type InstrumentStatus string

const (
	InstrumentStatusActive InstrumentStatus = "active"
	InstrumentStatusSplit  InstrumentStatus = "split"
)

// SubUnitStatus is the state of a fractional sub-unit.
type SubUnitStatus string

const (
	SubUnitStatusAvailable SubUnitStatus = "available"
)

// Instrument is a parent bond listed on the platform. Once split, only the
// sub-unit list and status may change.
type Instrument struct {
	ID        string
	Name      string
	FaceValue float64
	Status    InstrumentStatus
	SubUnits  []SubUnit
	CreatedAt time.Time
}

// SubUnit is a fractional, independently tradable share of a parent bond.
// Created only by a split and immutable afterwards.
type SubUnit struct {
	ID       string
	ParentID string
	Value    float64
	Status   SubUnitStatus
}

// Resolution ties a traded instrument id back to its parent bond and, when
// the id names a fraction, the matching sub-unit.
type Resolution struct {
	Parent  Instrument
	SubUnit *SubUnit
}

// IsSubUnit reports whether the resolved id named a fractional sub-unit
// rather than the parent bond itself.
func (r Resolution) IsSubUnit() bool {
	return r.SubUnit != nil
}
