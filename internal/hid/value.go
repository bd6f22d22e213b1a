package hid

import (
	"fmt"
	"math"
)

// ScaleType is the IOHIDValueScaleType.
type ScaleType uint32

const (
	// ScaleCalibrated maps the value onto [-1, 1], honoring the element's
	// calibration properties.
	ScaleCalibrated ScaleType = iota
	// ScalePhysical maps the logical range onto the physical range.
	ScalePhysical
	// ScaleExponent applies the unit exponent to the physical value.
	ScaleExponent
)

func (t ScaleType) String() string {
	switch t {
	case ScaleCalibrated:
		return "calibrated"
	case ScalePhysical:
		return "physical"
	case ScaleExponent:
		return "exponent"
	default:
		return fmt.Sprintf("scale(%d)", uint32(t))
	}
}

// ParseScaleType parses a scale type name.
func ParseScaleType(s string) (ScaleType, error) {
	for _, t := range []ScaleType{ScaleCalibrated, ScalePhysical, ScaleExponent} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown scale type: %q (expected calibrated, physical, or exponent)", s)
}

// Scaled returns the value scaled by t. Backend-computed values win;
// otherwise the element's ranges and default calibration are used.
func (v Value) Scaled(t ScaleType) float64 {
	if f, ok := v.ScaledValues[t]; ok {
		return f
	}
	return ScaleValue(v.Element, v.Integer, t, DefaultCalibration(v.Element))
}

// ScaleValue scales integer as a value of e.
func ScaleValue(e Element, integer int64, t ScaleType, cal Calibration) float64 {
	x := float64(integer)
	switch t {
	case ScaleCalibrated:
		return cal.Apply(integer)
	case ScalePhysical:
		lo, hi := e.physicalRange()
		return rescale(x, float64(e.Min), float64(e.Max), float64(lo), float64(hi))
	case ScaleExponent:
		return ScaleValue(e, integer, ScalePhysical, cal) * math.Pow10(e.Exponent())
	}
	return x
}

func rescale(x, min, max, lo, hi float64) float64 {
	if max == min {
		return lo
	}
	return (x-min)*(hi-lo)/(max-min) + lo
}

// Calibration element keys from IOHIDKeys.h.
const (
	ElementKeyCalibrationMin           ElementKey = "CalibrationMin"
	ElementKeyCalibrationMax           ElementKey = "CalibrationMax"
	ElementKeyCalibrationSaturationMin ElementKey = "CalibrationSaturationMin"
	ElementKeyCalibrationSaturationMax ElementKey = "CalibrationSaturationMax"
	ElementKeyCalibrationDeadZoneMin   ElementKey = "CalibrationDeadZoneMin"
	ElementKeyCalibrationDeadZoneMax   ElementKey = "CalibrationDeadZoneMax"
)

// Calibration is applied by ScaleCalibrated. Values are clamped to the
// saturation range; values inside a non-empty dead zone map to the centre
// of [Min, Max] and each side of it is scaled separately.
type Calibration struct {
	Min, Max                     float64
	SaturationMin, SaturationMax int64
	DeadZoneMin, DeadZoneMax     int64
}

// DefaultCalibration maps e's logical range onto [-1, 1].
func DefaultCalibration(e Element) Calibration {
	return Calibration{Min: -1, Max: 1, SaturationMin: e.Min, SaturationMax: e.Max}
}

// CalibrationOf reads the calibration properties of e through prop, keeping
// the defaults for absent keys.
func CalibrationOf(e Element, prop func(ElementKey) (any, bool)) Calibration {
	c := DefaultCalibration(e)
	num := func(k ElementKey) (int64, bool) {
		v, ok := prop(k)
		if !ok {
			return 0, false
		}
		return Int64(v)
	}
	if n, ok := num(ElementKeyCalibrationMin); ok {
		c.Min = float64(n)
	}
	if n, ok := num(ElementKeyCalibrationMax); ok {
		c.Max = float64(n)
	}
	if n, ok := num(ElementKeyCalibrationSaturationMin); ok {
		c.SaturationMin = n
	}
	if n, ok := num(ElementKeyCalibrationSaturationMax); ok {
		c.SaturationMax = n
	}
	if n, ok := num(ElementKeyCalibrationDeadZoneMin); ok {
		c.DeadZoneMin = n
	}
	if n, ok := num(ElementKeyCalibrationDeadZoneMax); ok {
		c.DeadZoneMax = n
	}
	return c
}

// Apply scales x.
func (c Calibration) Apply(x int64) float64 {
	x = min(max(x, c.SaturationMin), c.SaturationMax)
	if c.DeadZoneMin >= c.DeadZoneMax {
		return rescale(float64(x), float64(c.SaturationMin), float64(c.SaturationMax), c.Min, c.Max)
	}
	mid := (c.Min + c.Max) / 2
	switch {
	case x < c.DeadZoneMin:
		return rescale(float64(x), float64(c.SaturationMin), float64(c.DeadZoneMin), c.Min, mid)
	case x > c.DeadZoneMax:
		return rescale(float64(x), float64(c.DeadZoneMax), float64(c.SaturationMax), mid, c.Max)
	default:
		return mid
	}
}
