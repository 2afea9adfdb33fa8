// Package value implements the tagged-union container that every
// telemetry sample, option, and action parameter carries.
//
// A Value knows its Kind and whether it currently holds anything at
// all: Null is a distinct Kind, not the absence of one. Absence is
// modeled separately by HasValue, which callers must check before
// reading a typed scalar — the zero Value (Kind Null, HasValue false)
// must never be read as if it were a real Null.
//
// Strings and raw byte payloads may be either borrowed (a pointer into
// memory owned by the caller, valid only for the duration of the call
// that constructed the Value) or owned (a private copy the Value is
// responsible for). Copy always produces an owned Value regardless of
// how the source was backed, which is what lets a Value cross into a
// queue slot's arena safely.
package value

import (
	"fmt"

	iotagent "github.com/oriys/iotagent"
)

// Kind identifies which field of a Value is meaningful.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindRaw
	KindLocation
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindRaw:
		return "raw"
	case KindLocation:
		return "location"
	default:
		return "unknown"
	}
}

// ErrTypeMismatch is returned by a typed accessor when the stored Kind
// cannot be reconciled with the requested one, with or without
// coercion allowed.
var ErrTypeMismatch = iotagent.New(iotagent.BadRequest, "value: type mismatch")

// ErrNoValue is returned by a typed accessor when HasValue is false:
// reading an absent Value is a caller argument error (BadParameter),
// distinct from a present-but-wrong-type read (BadRequest) above.
var ErrNoValue = iotagent.New(iotagent.BadParameter, "value: no value present")

// Location is a latitude/longitude pair, the one structured Kind
// besides the numeric and string/raw scalars.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Value is a tagged union. The zero Value is Kind Null with
// HasValue false and must not be read as a typed scalar.
type Value struct {
	kind     Kind
	hasValue bool

	b     bool
	i     int64
	u     uint64
	f64   float64
	f32   float32
	str   string
	raw   []byte
	loc   Location
	owned bool // true if str/raw is a private copy rather than borrowed
}

// Null returns a Value explicitly holding the Null kind (HasValue true).
func Null() Value { return Value{kind: KindNull, hasValue: true} }

// Empty returns the zero Value: no kind committed, HasValue false.
func Empty() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, hasValue: true, b: b} }

func Int8(v int8) Value   { return Value{kind: KindInt8, hasValue: true, i: int64(v)} }
func Int16(v int16) Value { return Value{kind: KindInt16, hasValue: true, i: int64(v)} }
func Int32(v int32) Value { return Value{kind: KindInt32, hasValue: true, i: int64(v)} }
func Int64(v int64) Value { return Value{kind: KindInt64, hasValue: true, i: v} }

func Uint8(v uint8) Value   { return Value{kind: KindUint8, hasValue: true, u: uint64(v)} }
func Uint16(v uint16) Value { return Value{kind: KindUint16, hasValue: true, u: uint64(v)} }
func Uint32(v uint32) Value { return Value{kind: KindUint32, hasValue: true, u: uint64(v)} }
func Uint64(v uint64) Value { return Value{kind: KindUint64, hasValue: true, u: v} }

func Float32(v float32) Value { return Value{kind: KindFloat32, hasValue: true, f32: v} }
func Float64(v float64) Value { return Value{kind: KindFloat64, hasValue: true, f64: v} }

// BorrowedString constructs a Value pointing at caller-owned memory.
// The Value must not outlive the call unless Copy is used first.
func BorrowedString(s string) Value {
	return Value{kind: KindString, hasValue: true, str: s, owned: false}
}

// OwnedString constructs a Value holding a private copy of s.
func OwnedString(s string) Value {
	return Value{kind: KindString, hasValue: true, str: s, owned: true}
}

func BorrowedRaw(b []byte) Value {
	return Value{kind: KindRaw, hasValue: true, raw: b, owned: false}
}

func OwnedRaw(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindRaw, hasValue: true, raw: cp, owned: true}
}

func LocationValue(lat, lon float64) Value {
	return Value{kind: KindLocation, hasValue: true, loc: Location{Latitude: lat, Longitude: lon}}
}

// Kind reports which field of the union is meaningful. Meaningless
// when HasValue is false.
func (v Value) Kind() Kind { return v.kind }

// HasValue reports whether the container currently holds anything at
// all.
func (v Value) HasValue() bool { return v.hasValue }

// Owned reports whether a String/Raw Value holds a private copy.
func (v Value) Owned() bool { return v.owned }

// Copy returns an independent Value: String/Raw payloads become
// owned private copies regardless of the source's Owned() state.
func (v Value) Copy() Value {
	switch v.kind {
	case KindString:
		cp := v
		cp.owned = true
		cp.str = string([]byte(v.str)) // force a fresh backing array
		return cp
	case KindRaw:
		return OwnedRaw(v.raw)
	default:
		return v
	}
}

// Bool returns the stored bool, requiring an exact Kind match.
func (v Value) Bool() (bool, error) {
	if !v.hasValue {
		return false, ErrNoValue
	}
	if v.kind != KindBool {
		return false, fmt.Errorf("%w: want bool, have %s", ErrTypeMismatch, v.kind)
	}
	return v.b, nil
}

// Int64 returns the stored integer. When allowConvert is true, any
// signed or unsigned integer Kind is coerced to int64 when
// representable; float Kinds are never coerced to integers.
func (v Value) Int64(allowConvert bool) (int64, error) {
	if !v.hasValue {
		return 0, ErrNoValue
	}
	switch v.kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.i, nil
	case KindUint8, KindUint16, KindUint32, KindUint64:
		if !allowConvert {
			return 0, fmt.Errorf("%w: want int64, have %s", ErrTypeMismatch, v.kind)
		}
		if v.u > (1<<63 - 1) {
			return 0, fmt.Errorf("%w: uint64 value %d not representable as int64", ErrTypeMismatch, v.u)
		}
		return int64(v.u), nil
	default:
		return 0, fmt.Errorf("%w: want int64, have %s", ErrTypeMismatch, v.kind)
	}
}

// Uint64 mirrors Int64 for the unsigned family.
func (v Value) Uint64(allowConvert bool) (uint64, error) {
	if !v.hasValue {
		return 0, ErrNoValue
	}
	switch v.kind {
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return v.u, nil
	case KindInt8, KindInt16, KindInt32, KindInt64:
		if !allowConvert {
			return 0, fmt.Errorf("%w: want uint64, have %s", ErrTypeMismatch, v.kind)
		}
		if v.i < 0 {
			return 0, fmt.Errorf("%w: negative int64 %d not representable as uint64", ErrTypeMismatch, v.i)
		}
		return uint64(v.i), nil
	default:
		return 0, fmt.Errorf("%w: want uint64, have %s", ErrTypeMismatch, v.kind)
	}
}

// Float64 returns the stored float, widening float32 when allowConvert
// is set; never coerces from an integer Kind.
func (v Value) Float64(allowConvert bool) (float64, error) {
	if !v.hasValue {
		return 0, ErrNoValue
	}
	switch v.kind {
	case KindFloat64:
		return v.f64, nil
	case KindFloat32:
		if !allowConvert {
			return 0, fmt.Errorf("%w: want float64, have %s", ErrTypeMismatch, v.kind)
		}
		return float64(v.f32), nil
	default:
		return 0, fmt.Errorf("%w: want float64, have %s", ErrTypeMismatch, v.kind)
	}
}

func (v Value) Float32() (float32, error) {
	if !v.hasValue {
		return 0, ErrNoValue
	}
	if v.kind != KindFloat32 {
		return 0, fmt.Errorf("%w: want float32, have %s", ErrTypeMismatch, v.kind)
	}
	return v.f32, nil
}

func (v Value) String() (string, error) {
	if !v.hasValue {
		return "", ErrNoValue
	}
	if v.kind != KindString {
		return "", fmt.Errorf("%w: want string, have %s", ErrTypeMismatch, v.kind)
	}
	return v.str, nil
}

func (v Value) Raw() ([]byte, error) {
	if !v.hasValue {
		return nil, ErrNoValue
	}
	if v.kind != KindRaw {
		return nil, fmt.Errorf("%w: want raw, have %s", ErrTypeMismatch, v.kind)
	}
	return v.raw, nil
}

func (v Value) Location() (Location, error) {
	if !v.hasValue {
		return Location{}, ErrNoValue
	}
	if v.kind != KindLocation {
		return Location{}, fmt.Errorf("%w: want location, have %s", ErrTypeMismatch, v.kind)
	}
	return v.loc, nil
}

// IsNumeric reports whether Kind is one of the integer or float
// families, the set eligible for coercion under allowConvert.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64,
		KindUint8, KindUint16, KindUint32, KindUint64,
		KindFloat32, KindFloat64:
		return true
	default:
		return false
	}
}
