package vm

import "testing"

func TestCopyTermIsIndependent(t *testing.T) {
	src := NewHeap()
	dst := NewHeap()

	bin := src.Binary([]byte("payload"))
	orig := src.List(FromSmallInt(1), src.Tuple(FromAtom(AtomOk), bin), Nil)

	cp := CopyTerm(orig, dst)
	if cp == orig {
		t.Fatal("CopyTerm returned the same cell")
	}

	at := NewAtomTable()
	if got, want := at.Format(cp), at.Format(orig); got != want {
		t.Fatalf("copy = %s, want %s", got, want)
	}

	// Mutating the source must not show through the copy.
	bin.Binary().Data[0] = 'P'
	orig.Cons().Head = FromSmallInt(99)
	if got := at.Format(cp); got != `[1,{ok,<<"payload">>},[]]` {
		t.Errorf("copy changed with its source: %s", got)
	}

	if dst.Objects() == 0 || dst.Words() != TermWords(orig) {
		t.Errorf("dst has %d objects, %d words; want %d words", dst.Objects(), dst.Words(), TermWords(orig))
	}
}

func TestCopyTermImmediates(t *testing.T) {
	dst := NewHeap()
	for _, v := range []Value{None, Nil, FromSmallInt(5), FromAtom(AtomOk), FromPID(2), FromFloat64(1.5)} {
		if got := CopyTerm(v, dst); got != v {
			t.Errorf("CopyTerm(%v) = %v", v, got)
		}
	}
	if dst.Objects() != 0 {
		t.Errorf("immediates allocated %d objects", dst.Objects())
	}
}

func TestCopyTermLongList(t *testing.T) {
	src := NewHeap()
	elems := make([]Value, 100000)
	for i := range elems {
		elems[i] = FromSmallInt(int64(i))
	}
	list := src.List(elems...)

	cp := CopyTerm(list, NewHeap())
	heads, tail := ListToSlice(cp)
	if len(heads) != len(elems) || !tail.IsNil() {
		t.Fatalf("len = %d, tail = %v", len(heads), tail)
	}
	if heads[len(heads)-1].SmallInt() != int64(len(elems)-1) {
		t.Error("last element mismatch")
	}
}

func TestListToSlice(t *testing.T) {
	h := NewHeap()
	tests := []struct {
		name  string
		list  Value
		heads int
		tail  Value
	}{
		{"nil", Nil, 0, Nil},
		{"proper", h.List(FromSmallInt(1), FromSmallInt(2)), 2, Nil},
		{"improper", h.ImproperList(FromAtom(AtomOk), FromSmallInt(1)), 1, FromAtom(AtomOk)},
		{"not a list", FromSmallInt(7), 0, FromSmallInt(7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			heads, tail := ListToSlice(tt.list)
			if len(heads) != tt.heads || tail != tt.tail {
				t.Errorf("got %d heads, tail %v; want %d, %v", len(heads), tail, tt.heads, tt.tail)
			}
		})
	}
}

func TestAbsorbMovesObjects(t *testing.T) {
	h := NewHeap()
	frag := NewHeap()
	v := frag.Tuple(FromSmallInt(1))
	words := frag.Words()

	h.Absorb(frag)
	if h.Objects() != 1 || h.Words() != words {
		t.Errorf("heap has %d objects, %d words", h.Objects(), h.Words())
	}
	if frag.Objects() != 0 || frag.Words() != 0 {
		t.Error("fragment should be empty after Absorb")
	}
	if v.Tuple().Elems[0].SmallInt() != 1 {
		t.Error("absorbed term unreadable")
	}

	h.Absorb(nil)
	h.Absorb(h)
	if h.Objects() != 1 {
		t.Error("absorbing nil or itself must be a no-op")
	}
}

func TestDroppedHeapRejectsAllocation(t *testing.T) {
	h := NewHeap()
	h.Cons(Nil, Nil)
	h.Drop()
	if !h.Dropped() || h.Objects() != 0 {
		t.Fatal("Drop did not clear the heap")
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	h.Cons(Nil, Nil)
}
