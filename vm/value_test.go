package vm

import (
	"fmt"
	"math"
	"sync"
	"testing"
)

// ---------------------------------------------------------------------------
// Float tests
// ---------------------------------------------------------------------------

func TestFloatRoundTrip(t *testing.T) {
	tests := []float64{
		0.0,
		1.0,
		-1.0,
		3.14159265358979,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		-math.MaxFloat64,
		math.Inf(1),
		math.Inf(-1),
	}

	for _, f := range tests {
		v := FromFloat64(f)
		if !v.IsFloat() {
			t.Errorf("FromFloat64(%v).IsFloat() = false, want true", f)
			continue
		}
		if got := v.Float64(); got != f {
			t.Errorf("FromFloat64(%v).Float64() = %v, want %v", f, got, f)
		}
	}
}

func TestFloatNaN(t *testing.T) {
	v := FromFloat64(math.NaN())
	if !v.IsFloat() {
		t.Error("NaN should be treated as float")
	}
	if !math.IsNaN(v.Float64()) {
		t.Error("NaN roundtrip failed")
	}
}

// ---------------------------------------------------------------------------
// SmallInt tests
// ---------------------------------------------------------------------------

func TestSmallIntRoundTrip(t *testing.T) {
	tests := []int64{0, 1, -1, 42, -42, MaxSmallInt, MinSmallInt}
	for _, n := range tests {
		v := FromSmallInt(n)
		if !v.IsSmallInt() {
			t.Errorf("FromSmallInt(%d).IsSmallInt() = false", n)
			continue
		}
		if got := v.SmallInt(); got != n {
			t.Errorf("FromSmallInt(%d).SmallInt() = %d", n, got)
		}
		if v.IsFloat() || v.IsAtom() || v.IsBoxed() {
			t.Errorf("FromSmallInt(%d) has the wrong kind %v", n, v.Kind())
		}
	}
}

func TestTryFromSmallIntRange(t *testing.T) {
	if _, ok := TryFromSmallInt(MaxSmallInt + 1); ok {
		t.Error("MaxSmallInt+1 should not fit")
	}
	if _, ok := TryFromSmallInt(MinSmallInt - 1); ok {
		t.Error("MinSmallInt-1 should not fit")
	}
	if v, ok := TryFromSmallInt(7); !ok || v.SmallInt() != 7 {
		t.Error("7 should fit")
	}
}

func TestFromSmallIntPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	FromSmallInt(MaxSmallInt + 1)
}

// ---------------------------------------------------------------------------
// Specials, atoms and pids
// ---------------------------------------------------------------------------

func TestNoneIsNotNil(t *testing.T) {
	if None == Nil {
		t.Fatal("None and Nil must differ")
	}
	if !None.IsNone() || None.IsNil() || None.IsList() {
		t.Errorf("None kind = %v", None.Kind())
	}
	if !Nil.IsNil() || !Nil.IsList() || Nil.IsCons() {
		t.Errorf("Nil kind = %v", Nil.Kind())
	}
	if Value(0).IsNone() {
		t.Error("the zero Value is 0.0, not None")
	}
}

func TestBooleansAreAtoms(t *testing.T) {
	if !True.IsAtom() || True.Atom() != AtomTrue {
		t.Error("True should be the atom true")
	}
	if !False.IsAtom() || False.Atom() != AtomFalse {
		t.Error("False should be the atom false")
	}
	if FromBool(true) != True || FromBool(false) != False {
		t.Error("FromBool mismatch")
	}
	if !True.IsBool() || FromAtom(AtomOk).IsBool() {
		t.Error("IsBool mismatch")
	}
}

func TestPIDRoundTrip(t *testing.T) {
	for _, pid := range []PID{0, 1, 32767, math.MaxUint32} {
		v := FromPID(pid)
		if !v.IsPID() || v.PID() != pid {
			t.Errorf("FromPID(%d) round trip failed", pid)
		}
		if v.IsAtom() || v.IsSmallInt() {
			t.Errorf("FromPID(%d) kind = %v", pid, v.Kind())
		}
	}
}

func TestAccessorPanicsOnWrongKind(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"SmallInt of atom", func() { FromAtom(AtomOk).SmallInt() }},
		{"PID of int", func() { FromSmallInt(1).PID() }},
		{"Atom of pid", func() { FromPID(1).Atom() }},
		{"Cons of nil", func() { Nil.Cons() }},
		{"Tuple of none", func() { None.Tuple() }},
		{"Float64 of int", func() { FromSmallInt(1).Float64() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn()
		})
	}
}

func TestKinds(t *testing.T) {
	h := NewHeap()
	tests := []struct {
		v    Value
		want Kind
	}{
		{FromFloat64(1.5), KindFloat},
		{FromSmallInt(1), KindInt},
		{FromAtom(AtomOk), KindAtom},
		{FromPID(3), KindPID},
		{None, KindNone},
		{Nil, KindNil},
		{h.List(FromSmallInt(1)), KindCons},
		{h.Tuple(), KindTuple},
		{h.Binary(nil), KindBinary},
	}
	for _, tt := range tests {
		if got := tt.v.Kind(); got != tt.want {
			t.Errorf("Kind() = %v, want %v", got, tt.want)
		}
	}
}

func TestValueString(t *testing.T) {
	h := NewHeap()
	tests := []struct {
		v    Value
		want string
	}{
		{FromSmallInt(30), "30"},
		{FromFloat64(2), "2.0"},
		{FromAtom(AtomOk), "ok"},
		{FromAtom(Atom(len(wellKnownAtoms) + 3)), fmt.Sprintf("#atom%d", len(wellKnownAtoms)+3)},
		{FromPID(7), "<0.7.0>"},
		{None, "#none"},
		{Nil, "[]"},
		{h.Tuple(FromAtom(AtomError), h.List(FromSmallInt(1), FromSmallInt(2))), "{error,[1,2]}"},
		{h.Binary([]byte("hi")), `<<"hi">>`},
	}
	for _, tt := range tests {
		if got := fmt.Sprint(tt.v); got != tt.want {
			t.Errorf("fmt.Sprint = %q, want %q", got, tt.want)
		}
	}
}

func TestBoxedValuesReadFromManyGoroutines(t *testing.T) {
	h := NewHeap()
	v := h.Tuple(FromSmallInt(1), h.List(FromAtom(AtomOk)), h.Binary([]byte("x")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				elems := v.Tuple().Elems
				if elems[1].Cons().Head != FromAtom(AtomOk) || string(elems[2].Binary().Data) != "x" {
					t.Error("boxed term read back wrong")
					return
				}
			}
		}()
	}
	wg.Wait()
}
