package vm

import "unsafe"

// Cons is a list cell.
type Cons struct {
	Head Value
	Tail Value
}

// Tuple is a fixed-size sequence of terms.
type Tuple struct {
	Elems []Value
}

// Binary is an immutable byte sequence.
type Binary struct {
	Data []byte
}

// Heap is a process-private arena of boxed terms.
//
// Values only hold hidden pointers to the objects they refer to; the heap's
// object list is what keeps those objects alive. A term must therefore never
// outlive the heap it was allocated on, and terms are copied (CopyTerm)
// whenever they move to another process.
//
// A Heap is not safe for concurrent use. It belongs to whoever holds the
// owning process's Token, or, for a message fragment, to the sender until the
// fragment is handed to the mailbox.
type Heap struct {
	objects []any
	words   int
	dropped bool
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

func (h *Heap) keep(obj any, words int) {
	if h.dropped {
		panic("Heap: allocation on dropped heap")
	}
	h.objects = append(h.objects, obj)
	h.words += words
}

// Cons allocates a list cell.
func (h *Heap) Cons(head, tail Value) Value {
	c := &Cons{Head: head, Tail: tail}
	h.keep(c, 2)
	return boxPointer(tagCons, unsafe.Pointer(c))
}

// List allocates a proper list holding elems.
func (h *Heap) List(elems ...Value) Value {
	return h.ImproperList(Nil, elems...)
}

// ImproperList allocates a list holding elems and ending in tail.
func (h *Heap) ImproperList(tail Value, elems ...Value) Value {
	list := tail
	for i := len(elems) - 1; i >= 0; i-- {
		list = h.Cons(elems[i], list)
	}
	return list
}

// Tuple allocates a tuple. The slice is copied.
func (h *Heap) Tuple(elems ...Value) Value {
	t := &Tuple{Elems: append([]Value(nil), elems...)}
	h.keep(t, len(elems)+1)
	return boxPointer(tagTuple, unsafe.Pointer(t))
}

// Binary allocates a binary. The bytes are copied.
func (h *Heap) Binary(data []byte) Value {
	b := &Binary{Data: append([]byte(nil), data...)}
	h.keep(b, (len(data)+7)/8+1)
	return boxPointer(tagBinary, unsafe.Pointer(b))
}

// Absorb takes ownership of every object in fragment. The fragment is empty
// afterwards.
func (h *Heap) Absorb(fragment *Heap) {
	if fragment == nil || fragment == h {
		return
	}
	h.objects = append(h.objects, fragment.objects...)
	h.words += fragment.words
	fragment.objects = nil
	fragment.words = 0
}

// Drop releases every object. Terms allocated on the heap must not be used
// afterwards.
func (h *Heap) Drop() {
	h.objects = nil
	h.words = 0
	h.dropped = true
}

// Dropped reports whether Drop has been called.
func (h *Heap) Dropped() bool { return h.dropped }

// Words returns the approximate size of the heap in 8-byte words.
func (h *Heap) Words() int { return h.words }

// Objects returns the number of boxed objects on the heap.
func (h *Heap) Objects() int { return len(h.objects) }

// CopyTerm deep-copies v onto dst. Immediates are returned unchanged.
func CopyTerm(v Value, dst *Heap) Value {
	switch {
	case v.IsCons():
		// Walk the spine iteratively; long lists would otherwise recurse once
		// per element.
		var heads []Value
		for v.IsCons() {
			c := v.Cons()
			heads = append(heads, CopyTerm(c.Head, dst))
			v = c.Tail
		}
		return dst.ImproperList(CopyTerm(v, dst), heads...)
	case v.IsTuple():
		src := v.Tuple().Elems
		elems := make([]Value, len(src))
		for i, e := range src {
			elems[i] = CopyTerm(e, dst)
		}
		return dst.Tuple(elems...)
	case v.IsBinary():
		return dst.Binary(v.Binary().Data)
	default:
		return v
	}
}

// TermWords returns the number of heap words CopyTerm would allocate for v.
func TermWords(v Value) int {
	switch {
	case v.IsCons():
		n := 0
		for v.IsCons() {
			c := v.Cons()
			n += 2 + TermWords(c.Head)
			v = c.Tail
		}
		return n + TermWords(v)
	case v.IsTuple():
		elems := v.Tuple().Elems
		n := len(elems) + 1
		for _, e := range elems {
			n += TermWords(e)
		}
		return n
	case v.IsBinary():
		return (len(v.Binary().Data)+7)/8 + 1
	default:
		return 0
	}
}

// ListToSlice returns the heads of list and its terminal value. A proper list
// has a Nil terminal.
func ListToSlice(list Value) ([]Value, Value) {
	var elems []Value
	for list.IsCons() {
		c := list.Cons()
		elems = append(elems, c.Head)
		list = c.Tail
	}
	return elems, list
}
