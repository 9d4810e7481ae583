package vm

import (
	"math"
	"strings"
	"unsafe"
)

// Value represents an enigma term using NaN-boxing.
//
// All values are 64-bit IEEE 754 doubles. Non-float terms are encoded in
// the NaN space using the quiet NaN prefix and three tag bits.
//
// Encoding scheme:
//   - Float: Native IEEE 754 double (if not a tagged NaN, it's a float)
//   - SmallInt: Quiet NaN + tagInt + 48-bit signed payload
//   - Atom: Quiet NaN + tagAtom + atom ID
//   - PID: Quiet NaN + tagPID + process identifier
//   - Special: Quiet NaN + tagSpecial + special ID (None, Nil)
//   - Cons / Tuple / Binary: Quiet NaN + tag + 48-bit pointer into a Heap
//
// Compound terms point into the heap that allocated them. The Heap keeps the
// object reachable for Go's collector; a Value on its own does not.
type Value uint64

// NaN-boxing constants
const (
	// Quiet NaN prefix: exponent all 1s, quiet bit set, sign bit 0
	nanBits uint64 = 0x7FF8000000000000

	// Tag mask: 3 bits within the NaN mantissa space
	tagMask uint64 = 0x0007000000000000

	// Payload mask: 48 bits for pointer/int/id
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	tagCons    uint64 = 0x0001000000000000 // *Cons
	tagInt     uint64 = 0x0002000000000000 // 48-bit signed integer
	tagSpecial uint64 = 0x0003000000000000 // None, Nil
	tagAtom    uint64 = 0x0004000000000000 // interned atom ID
	tagPID     uint64 = 0x0005000000000000 // process identifier
	tagTuple   uint64 = 0x0006000000000000 // *Tuple
	tagBinary  uint64 = 0x0007000000000000 // *Binary

	intSignBit    uint64 = 0x0000800000000000
	intSignExtend uint64 = 0xFFFF000000000000
)

const (
	specialNone uint64 = 0
	specialNil  uint64 = 1
)

const (
	// None is the content of a register nobody has written yet.
	None Value = Value(nanBits | tagSpecial | specialNone)

	// Nil is the empty list.
	Nil Value = Value(nanBits | tagSpecial | specialNil)

	True  Value = Value(nanBits | tagAtom | uint64(AtomTrue))
	False Value = Value(nanBits | tagAtom | uint64(AtomFalse))
)

// SmallInt range (48-bit signed)
const (
	MaxSmallInt int64 = (1 << 47) - 1
	MinSmallInt int64 = -(1 << 47)
)

// Kind classifies a Value.
type Kind uint8

const (
	KindFloat Kind = iota
	KindInt
	KindAtom
	KindPID
	KindNone
	KindNil
	KindCons
	KindTuple
	KindBinary
)

var kindNames = [...]string{"float", "integer", "atom", "pid", "none", "nil", "cons", "tuple", "binary"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Kind returns the classification of v.
func (v Value) Kind() Kind {
	if v.IsFloat() {
		return KindFloat
	}
	switch uint64(v) & tagMask {
	case tagInt:
		return KindInt
	case tagAtom:
		return KindAtom
	case tagPID:
		return KindPID
	case tagCons:
		return KindCons
	case tagTuple:
		return KindTuple
	case tagBinary:
		return KindBinary
	}
	if v == Nil {
		return KindNil
	}
	return KindNone
}

// String renders v in Erlang term syntax without an atom table. Atoms other
// than the well-known ones print as #atomN; use AtomTable.Format for names.
func (v Value) String() string {
	var sb strings.Builder
	formatTerm(&sb, v, nil)
	return sb.String()
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsFloat returns true if v represents a float64 value.
// A value is a float if it's not one of our tagged NaN values.
func (v Value) IsFloat() bool {
	bits := uint64(v)

	// Exponent not all 1s: a regular float
	if (bits & 0x7FF0000000000000) != 0x7FF0000000000000 {
		return true
	}

	// +Inf / -Inf
	if bits&0x000FFFFFFFFFFFFF == 0 {
		return true
	}

	// Signaling NaN
	if (bits & nanBits) != nanBits {
		return true
	}

	// Untagged quiet NaN
	return bits&tagMask == 0
}

func (v Value) hasTag(tag uint64) bool {
	return (uint64(v) & (nanBits | tagMask)) == (nanBits | tag)
}

// IsSmallInt returns true if v represents a small integer.
func (v Value) IsSmallInt() bool { return v.hasTag(tagInt) }

// IsAtom returns true if v is an atom (booleans included).
func (v Value) IsAtom() bool { return v.hasTag(tagAtom) }

// IsPID returns true if v carries a process identifier.
func (v Value) IsPID() bool { return v.hasTag(tagPID) }

// IsNone returns true if v is the empty-register marker.
func (v Value) IsNone() bool { return v == None }

// IsNil returns true if v is the empty list.
func (v Value) IsNil() bool { return v == Nil }

// IsCons returns true if v is a list cell.
func (v Value) IsCons() bool { return v.hasTag(tagCons) }

// IsList returns true if v is the empty list or a list cell.
func (v Value) IsList() bool { return v == Nil || v.IsCons() }

// IsTuple returns true if v is a tuple.
func (v Value) IsTuple() bool { return v.hasTag(tagTuple) }

// IsBinary returns true if v is a binary.
func (v Value) IsBinary() bool { return v.hasTag(tagBinary) }

// IsBool returns true if v is the atom true or false.
func (v Value) IsBool() bool { return v == True || v == False }

// IsBoxed returns true if v points into a heap.
func (v Value) IsBoxed() bool {
	return v.IsCons() || v.IsTuple() || v.IsBinary()
}

// ---------------------------------------------------------------------------
// Float operations
// ---------------------------------------------------------------------------

// Float64 returns v as a float64.
// Panics if v is not a float.
func (v Value) Float64() float64 {
	if !v.IsFloat() {
		panic("Value.Float64: not a float")
	}
	return math.Float64frombits(uint64(v))
}

// FromFloat64 creates a Value from a float64.
func FromFloat64(f float64) Value {
	return Value(math.Float64bits(f))
}

// ---------------------------------------------------------------------------
// SmallInt operations
// ---------------------------------------------------------------------------

// SmallInt returns v as an int64.
// Panics if v is not a small integer.
func (v Value) SmallInt() int64 {
	if !v.IsSmallInt() {
		panic("Value.SmallInt: not a small integer")
	}
	payload := uint64(v) & payloadMask

	// Sign extend from 48 bits to 64 bits
	if (payload & intSignBit) != 0 {
		payload |= intSignExtend
	}
	return int64(payload)
}

// FromSmallInt creates a Value from an int64.
// Panics if n is outside the SmallInt range.
func FromSmallInt(n int64) Value {
	if n > MaxSmallInt || n < MinSmallInt {
		panic("FromSmallInt: value out of range")
	}
	return Value(nanBits | tagInt | (uint64(n) & payloadMask))
}

// TryFromSmallInt creates a Value from an int64, returning false if out of range.
func TryFromSmallInt(n int64) (Value, bool) {
	if n > MaxSmallInt || n < MinSmallInt {
		return Nil, false
	}
	return Value(nanBits | tagInt | (uint64(n) & payloadMask)), true
}

// ---------------------------------------------------------------------------
// Atoms and PIDs
// ---------------------------------------------------------------------------

// Atom returns the atom ID encoded in v.
// Panics if v is not an atom.
func (v Value) Atom() Atom {
	if !v.IsAtom() {
		panic("Value.Atom: not an atom")
	}
	return Atom(uint64(v) & payloadMask)
}

// FromAtom creates a Value from an atom ID.
func FromAtom(a Atom) Value {
	return Value(nanBits | tagAtom | uint64(a))
}

// PID returns the process identifier encoded in v.
// Panics if v is not a pid.
func (v Value) PID() PID {
	if !v.IsPID() {
		panic("Value.PID: not a pid")
	}
	return PID(uint64(v) & payloadMask)
}

// FromPID wraps a process identifier as a Value.
func FromPID(pid PID) Value {
	return Value(nanBits | tagPID | uint64(pid))
}

// FromBool creates a Value from a bool.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// ---------------------------------------------------------------------------
// Boxed terms
// ---------------------------------------------------------------------------

// pointer recovers the object address stored in a boxed value. The object is
// kept reachable by the heap that allocated it, so checkptr's provenance check
// cannot apply here and is turned off for this function.
//
//go:nocheckptr
func (v Value) pointer(tag uint64, what string) unsafe.Pointer {
	if !v.hasTag(tag) {
		panic("Value." + what + ": not a " + what)
	}
	return unsafe.Pointer(uintptr(uint64(v) & payloadMask))
}

func boxPointer(tag uint64, ptr unsafe.Pointer) Value {
	return Value(nanBits | tag | (uint64(uintptr(ptr)) & payloadMask))
}

// Cons returns the list cell v points to.
// Panics if v is not a cons.
func (v Value) Cons() *Cons {
	return (*Cons)(v.pointer(tagCons, "cons"))
}

// Tuple returns the tuple v points to.
// Panics if v is not a tuple.
func (v Value) Tuple() *Tuple {
	return (*Tuple)(v.pointer(tagTuple, "tuple"))
}

// Binary returns the binary v points to.
// Panics if v is not a binary.
func (v Value) Binary() *Binary {
	return (*Binary)(v.pointer(tagBinary, "binary"))
}
