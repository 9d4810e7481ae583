package vm

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Terms are serialised as CBOR trees. Canonical encoding makes the bytes a
// function of the term's structure, so equal terms encode identically.

var termEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	termEncMode = em
}

// termNode is the wire shape of a term.
type termNode struct {
	K Kind       `cbor:"k"`
	I int64      `cbor:"i,omitempty"`
	F float64    `cbor:"f,omitempty"`
	A string     `cbor:"a,omitempty"` // atom name
	N uint64     `cbor:"n,omitempty"` // atom ID without a table, or pid
	B []byte     `cbor:"b,omitempty"`
	E []termNode `cbor:"e,omitempty"` // tuple elements or list heads
	T *termNode  `cbor:"t,omitempty"` // list tail when not []
}

var errNeedAtomTable = errors.New("vm: atom by name needs an atom table")

// EncodeTerm serialises v. With a nil atom table atoms are written by ID,
// which is only meaningful to a reader sharing the same table.
func EncodeTerm(v Value, atoms *AtomTable) ([]byte, error) {
	data, err := termEncMode.Marshal(toNode(v, atoms))
	if err != nil {
		return nil, fmt.Errorf("vm: encode term: %w", err)
	}
	return data, nil
}

// DecodeTerm deserialises a term, allocating boxed parts on heap.
func DecodeTerm(data []byte, atoms *AtomTable, heap *Heap) (Value, error) {
	var n termNode
	if err := cbor.Unmarshal(data, &n); err != nil {
		return None, fmt.Errorf("vm: decode term: %w", err)
	}
	v, err := fromNode(&n, atoms, heap)
	if err != nil {
		return None, fmt.Errorf("vm: decode term: %w", err)
	}
	return v, nil
}

func toNode(v Value, atoms *AtomTable) termNode {
	n := termNode{K: v.Kind()}
	switch n.K {
	case KindFloat:
		n.F = v.Float64()
	case KindInt:
		n.I = v.SmallInt()
	case KindAtom:
		if atoms != nil {
			n.A = atoms.Name(v.Atom())
		} else {
			n.N = uint64(v.Atom())
		}
	case KindPID:
		n.N = uint64(v.PID())
	case KindCons:
		heads, tail := ListToSlice(v)
		n.E = make([]termNode, len(heads))
		for i, h := range heads {
			n.E[i] = toNode(h, atoms)
		}
		if !tail.IsNil() {
			t := toNode(tail, atoms)
			n.T = &t
		}
	case KindTuple:
		elems := v.Tuple().Elems
		n.E = make([]termNode, len(elems))
		for i, e := range elems {
			n.E[i] = toNode(e, atoms)
		}
	case KindBinary:
		n.B = v.Binary().Data
	}
	return n
}

func fromNode(n *termNode, atoms *AtomTable, heap *Heap) (Value, error) {
	switch n.K {
	case KindFloat:
		return FromFloat64(n.F), nil
	case KindInt:
		v, ok := TryFromSmallInt(n.I)
		if !ok {
			return None, fmt.Errorf("integer %d out of range", n.I)
		}
		return v, nil
	case KindAtom:
		if n.A == "" {
			return FromAtom(Atom(n.N)), nil
		}
		if atoms == nil {
			return None, errNeedAtomTable
		}
		return atoms.Value(n.A), nil
	case KindPID:
		return FromPID(PID(n.N)), nil
	case KindNone:
		return None, nil
	case KindNil:
		return Nil, nil
	case KindCons:
		heads, err := fromNodes(n.E, atoms, heap)
		if err != nil {
			return None, err
		}
		tail := Nil
		if n.T != nil {
			if tail, err = fromNode(n.T, atoms, heap); err != nil {
				return None, err
			}
		}
		return heap.ImproperList(tail, heads...), nil
	case KindTuple:
		elems, err := fromNodes(n.E, atoms, heap)
		if err != nil {
			return None, err
		}
		return heap.Tuple(elems...), nil
	case KindBinary:
		return heap.Binary(n.B), nil
	}
	return None, fmt.Errorf("unknown term kind %d", n.K)
}

func fromNodes(nodes []termNode, atoms *AtomTable, heap *Heap) ([]Value, error) {
	out := make([]Value, len(nodes))
	for i := range nodes {
		v, err := fromNode(&nodes[i], atoms, heap)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
