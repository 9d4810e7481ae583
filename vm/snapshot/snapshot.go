// Package snapshot captures the state of a process in a form that outlives
// the process: every term is rendered as text and serialised, so nothing
// points into the process heap.
package snapshot

import (
	"fmt"
	"time"

	"github.com/chazu/enigma/vm"
)

// Term is a serialised term plus its printed form.
type Term struct {
	Text string `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint"` // vm.EncodeTerm with atom names
}

// Entry is one process dictionary entry.
type Entry struct {
	Key   Term `cbor:"1,keyasint"`
	Value Term `cbor:"2,keyasint"`
}

// Exception describes the exception a process died with.
type Exception struct {
	Class  string `cbor:"1,keyasint"`
	Reason Term   `cbor:"2,keyasint"`
	Trace  string `cbor:"3,keyasint,omitempty"`
}

// Snapshot is a process at one point in time.
type Snapshot struct {
	PID         uint32     `cbor:"1,keyasint"`
	Main        bool       `cbor:"2,keyasint"`
	Module      string     `cbor:"3,keyasint"`
	IP          int        `cbor:"4,keyasint"`
	CP          *int       `cbor:"5,keyasint,omitempty"`
	Live        int        `cbor:"6,keyasint"`
	Catches     int        `cbor:"7,keyasint"`
	Registers   []Term     `cbor:"8,keyasint"` // X registers up to the last written one
	Floats      []float64  `cbor:"9,keyasint"`
	Stack       []Term     `cbor:"10,keyasint,omitempty"`
	Dictionary  []Entry    `cbor:"11,keyasint,omitempty"`
	Mailbox     int        `cbor:"12,keyasint"`
	HeapWords   int        `cbor:"13,keyasint"`
	HeapObjects int        `cbor:"14,keyasint"`
	Exception   *Exception `cbor:"15,keyasint,omitempty"`
	TakenAt     time.Time  `cbor:"16,keyasint"`
}

// Capture records the process tok grants access to. The caller must hold the
// token for the duration of the call.
func Capture(st *vm.State, tok *vm.Token) (*Snapshot, error) {
	p := tok.Process()
	ctx := tok.Context()

	s := &Snapshot{
		PID:         uint32(p.PID()),
		Main:        p.IsMain(),
		IP:          ctx.IP,
		Live:        ctx.Live,
		Catches:     ctx.Catches,
		Floats:      append([]float64(nil), ctx.F[:]...),
		Mailbox:     tok.Mailbox().Len(),
		HeapWords:   ctx.Heap.Words(),
		HeapObjects: ctx.Heap.Objects(),
		TakenAt:     time.Now().UTC(),
	}
	if m := st.Modules.Get(ctx.Module); m != nil {
		s.Module = st.Atoms.Name(m.Name)
	}
	if cp, ok := ctx.Continuation(); ok {
		s.CP = &cp
	}

	last := -1
	for i, x := range ctx.X {
		if !x.IsNone() {
			last = i
		}
	}
	for i := 0; i <= last; i++ {
		t, err := termOf(st, ctx.X[i])
		if err != nil {
			return nil, fmt.Errorf("snapshot: x(%d): %w", i, err)
		}
		s.Registers = append(s.Registers, t)
	}

	for i, y := range ctx.Stack {
		t, err := termOf(st, y)
		if err != nil {
			return nil, fmt.Errorf("snapshot: stack slot %d: %w", i, err)
		}
		s.Stack = append(s.Stack, t)
	}

	var dictErr error
	tok.Dictionary().Each(func(k, v vm.Value) {
		if dictErr != nil {
			return
		}
		kt, err := termOf(st, k)
		if err != nil {
			dictErr = err
			return
		}
		vt, err := termOf(st, v)
		if err != nil {
			dictErr = err
			return
		}
		s.Dictionary = append(s.Dictionary, Entry{Key: kt, Value: vt})
	})
	if dictErr != nil {
		return nil, fmt.Errorf("snapshot: dictionary: %w", dictErr)
	}

	if exc := ctx.Exc; exc != nil {
		reason, err := termOf(st, exc.Reason)
		if err != nil {
			return nil, fmt.Errorf("snapshot: exception reason: %w", err)
		}
		s.Exception = &Exception{
			Class:  st.Atoms.Name(exc.Class),
			Reason: reason,
			Trace:  exc.Trace,
		}
	}
	return s, nil
}

func termOf(st *vm.State, v vm.Value) (Term, error) {
	data, err := vm.EncodeTerm(v, st.Atoms)
	if err != nil {
		return Term{}, err
	}
	return Term{Text: st.Atoms.Format(v), Data: data}, nil
}

// Value rebuilds the term on heap.
func (t Term) Value(atoms *vm.AtomTable, heap *vm.Heap) (vm.Value, error) {
	return vm.DecodeTerm(t.Data, atoms, heap)
}
