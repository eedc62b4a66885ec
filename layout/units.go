package layout

import (
	"strconv"
	"strings"
)

// This file defines the fixed reference densities and unit-safe length helpers.
// Everything on screen is expressed in CSS reference pixels; everything in a
// proof is expressed in millimetres and handed to the PDF writer as such.

// Unit represents the original unit of a length value as written in a job file.
type Unit int

const (
	UnitNone Unit = iota // unit-less numbers like percentages
	UnitMM               // millimeters
	UnitCM               // centimeters
	UnitIN               // inches
	UnitPT               // points
	UnitPX               // reference pixels
)

// Reference densities. PxPerMm is the CSS reference density (96 px per inch).
const (
	MmPerInch = 25.4
	PxPerMm   = 96.0 / MmPerInch
	PtPerMm   = 72.0 / MmPerInch
	PtToMm    = 1.0 / PtPerMm
	MmToPt    = PtPerMm
)

// MmToPx maps millimetres to reference pixels. Negative input passes through.
func MmToPx(mm float64) float64 { return mm * PxPerMm }

// MmToPoints maps millimetres to print points.
func MmToPoints(mm float64) float64 { return mm * PtPerMm }

// PxToMm maps reference pixels back to millimetres.
func PxToMm(px float64) float64 { return px / PxPerMm }

// PointsToMm maps print points to millimetres.
func PointsToMm(pt float64) float64 { return pt / PtPerMm }

// InchesToMm maps inches to millimetres.
func InchesToMm(in float64) float64 { return in * MmPerInch }

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitMM:
		return "mm"
	case UnitCM:
		return "cm"
	case UnitIN:
		return "in"
	case UnitPT:
		return "pt"
	case UnitPX:
		return "px"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// ToMM converts the length to millimetres. Unit-less values are taken as mm.
func (l Length) ToMM() float64 {
	switch l.Unit {
	case UnitCM:
		return l.Value * 10
	case UnitIN:
		return InchesToMm(l.Value)
	case UnitPT:
		return PointsToMm(l.Value)
	case UnitPX:
		return PxToMm(l.Value)
	default:
		return l.Value
	}
}

// ToPX converts the length to reference pixels.
func (l Length) ToPX() float64 {
	if l.Unit == UnitPX {
		return l.Value
	}
	return MmToPx(l.ToMM())
}

// ToPT converts the length to print points.
func (l Length) ToPT() float64 {
	if l.Unit == UnitPT {
		return l.Value
	}
	return MmToPoints(l.ToMM())
}

// ParseLength parses strings such as "210mm", "8.5in", "12pt" or "40px".
// A bare number keeps UnitNone. ok is false when the number is malformed.
func ParseLength(value string) (Length, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, false
	}
	unit := UnitNone
	num := v
	for _, suf := range []struct {
		s string
		u Unit
	}{{"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"pt", UnitPT}, {"px", UnitPX}} {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	num = strings.TrimSuffix(num, "%")
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, false
	}
	return Length{Value: f, Unit: unit}, true
}
