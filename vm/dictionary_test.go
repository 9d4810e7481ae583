package vm

import "testing"

func TestDictionaryStructuralKeys(t *testing.T) {
	d := NewDictionary()
	h := NewHeap()

	k1 := h.Tuple(FromAtom(AtomOk), FromSmallInt(1))
	k2 := h.Tuple(FromAtom(AtomOk), FromSmallInt(1))

	if _, existed := d.Put(k1, FromSmallInt(10)); existed {
		t.Error("first Put reported an existing entry")
	}
	old, existed := d.Put(k2, FromSmallInt(20))
	if !existed || old.SmallInt() != 10 {
		t.Errorf("Put over equal key = %v, %v; want 10, true", old, existed)
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}

	v, ok := d.Get(h.Tuple(FromAtom(AtomOk), FromSmallInt(1)))
	if !ok || v.SmallInt() != 20 {
		t.Errorf("Get = %v, %v", v, ok)
	}
}

func TestDictionaryIntAndFloatDiffer(t *testing.T) {
	d := NewDictionary()
	d.Put(FromSmallInt(1), FromAtom(AtomTrue))
	if _, ok := d.Get(FromFloat64(1)); ok {
		t.Error("1 and 1.0 must be different keys")
	}
}

func TestDictionaryEraseAndClear(t *testing.T) {
	d := NewDictionary()
	d.Put(FromAtom(AtomOk), FromSmallInt(1))
	d.Put(FromAtom(AtomError), FromSmallInt(2))

	v, ok := d.Erase(FromAtom(AtomOk))
	if !ok || v.SmallInt() != 1 {
		t.Errorf("Erase = %v, %v", v, ok)
	}
	if _, ok := d.Erase(FromAtom(AtomOk)); ok {
		t.Error("second Erase should fail")
	}
	if keys := d.Keys(); len(keys) != 1 || keys[0] != FromAtom(AtomError) {
		t.Errorf("Keys = %v", keys)
	}

	n := 0
	d.Each(func(k, v Value) { n++ })
	if n != 1 {
		t.Errorf("Each visited %d entries, want 1", n)
	}

	d.Clear()
	if d.Len() != 0 {
		t.Errorf("Len after Clear = %d", d.Len())
	}
	if v, ok := d.Get(FromAtom(AtomError)); ok || v != None {
		t.Errorf("Get after Clear = %v, %v", v, ok)
	}
}
