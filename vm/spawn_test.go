package vm

import (
	"errors"
	"testing"
)

func TestSpawnTwoArguments(t *testing.T) {
	st, sched := newTestState()
	f := fun(st, "f", 1)
	g := fun(st, "g", 0)
	mod := loadTestModule(st, "m", g, f)

	h := NewHeap()
	a := FromAtom(st.Atoms.Intern("a"))
	b := h.Tuple(FromSmallInt(1), h.Binary([]byte("b")))

	pidv, err := Spawn(st, mod, f, h.List(a, b))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if !pidv.IsPID() {
		t.Fatalf("Spawn returned %v, want a pid", pidv)
	}

	p, ok := st.Table.Get(pidv.PID())
	if !ok {
		t.Fatal("spawned process not in table")
	}
	tok := mustAcquire(t, p)
	defer tok.Release()
	ctx := tok.Context()

	entry, _ := st.Modules.Get(mod).Lookup(f)
	if ctx.IP != entry || entry == 0 {
		t.Errorf("ip = %d, want entry of f (%d)", ctx.IP, entry)
	}
	if ctx.X[0] != a {
		t.Errorf("x(0) = %s, want a", st.Atoms.Format(ctx.X[0]))
	}
	if got := st.Atoms.Format(ctx.X[1]); got != `{1,<<"b">>}` {
		t.Errorf("x(1) = %s", got)
	}
	if !ctx.X[2].IsNil() {
		t.Errorf("x(2) = %s, want []", st.Atoms.Format(ctx.X[2]))
	}
	if !ctx.X[3].IsNone() {
		t.Errorf("x(3) = %s, want untouched", st.Atoms.Format(ctx.X[3]))
	}
	if ctx.Live != 3 {
		t.Errorf("live = %d, want 3", ctx.Live)
	}

	// The tuple was copied onto the child's heap.
	if ctx.X[1] == b || ctx.Heap.Objects() == 0 {
		t.Error("compound argument was not copied onto the child heap")
	}

	jobs := sched.Jobs()
	if len(jobs) != 1 || jobs[0].Process != p || jobs[0].Priority != PriorityNormal {
		t.Errorf("scheduled %+v, want one normal job for the child", jobs)
	}
}

func TestSpawnNoArguments(t *testing.T) {
	st, _ := newTestState()
	f := fun(st, "main", 0)
	mod := loadTestModule(st, "m", f)

	pidv, err := Spawn(st, mod, f, Nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	p, _ := st.Table.Get(pidv.PID())
	tok := mustAcquire(t, p)
	defer tok.Release()

	// Register 0 holds the empty list, not whatever the register held before.
	if x0 := tok.Context().X[0]; !x0.IsNil() {
		t.Errorf("x(0) = %v, want []", x0)
	}
	for i := 1; i < NumRegisters; i++ {
		if !tok.Context().X[i].IsNone() {
			t.Errorf("x(%d) = %v, want None", i, tok.Context().X[i])
		}
	}
}

func TestSpawnImproperArguments(t *testing.T) {
	st, _ := newTestState()
	f := fun(st, "f", 2)
	mod := loadTestModule(st, "m", f)

	// [1 | ok]: the terminal lands in the register after the last head.
	args := NewHeap().ImproperList(FromAtom(AtomOk), FromSmallInt(1))

	pidv, err := Spawn(st, mod, f, args)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	p, _ := st.Table.Get(pidv.PID())
	tok := mustAcquire(t, p)
	defer tok.Release()
	ctx := tok.Context()
	if ctx.X[0].SmallInt() != 1 || ctx.X[1] != FromAtom(AtomOk) {
		t.Errorf("x(0) = %v, x(1) = %v; want 1, ok", ctx.X[0], ctx.X[1])
	}
}

func TestSpawnNonListArgument(t *testing.T) {
	st, _ := newTestState()
	f := fun(st, "f", 1)
	mod := loadTestModule(st, "m", f)

	pidv, err := Spawn(st, mod, f, FromSmallInt(42))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	p, _ := st.Table.Get(pidv.PID())
	tok := mustAcquire(t, p)
	defer tok.Release()
	if x0 := tok.Context().X[0]; x0.SmallInt() != 42 {
		t.Errorf("x(0) = %v, want 42", x0)
	}
}

func TestSpawnRegisterBound(t *testing.T) {
	tests := []struct {
		k       int
		wantErr bool
	}{
		{NumRegisters - 1, false},
		{NumRegisters, true},
		{NumRegisters + 5, true},
	}
	for _, tt := range tests {
		st, sched := newTestState()
		f := fun(st, "f", tt.k)
		mod := loadTestModule(st, "m", f)

		h := NewHeap()
		elems := make([]Value, tt.k)
		for i := range elems {
			elems[i] = FromSmallInt(int64(i))
		}

		pidv, err := Spawn(st, mod, f, h.List(elems...))
		if tt.wantErr {
			if !errors.Is(err, ErrTooManyArguments) {
				t.Errorf("k=%d: err = %v, want ErrTooManyArguments", tt.k, err)
			}
			if st.Table.Len() != 0 || len(sched.Jobs()) != 0 {
				t.Errorf("k=%d: failed spawn left a process behind", tt.k)
			}
			continue
		}
		if err != nil {
			t.Fatalf("k=%d: Spawn: %v", tt.k, err)
		}
		p, _ := st.Table.Get(pidv.PID())
		tok := mustAcquire(t, p)
		ctx := tok.Context()
		if ctx.X[tt.k-1].SmallInt() != int64(tt.k-1) || !ctx.X[tt.k].IsNil() {
			t.Errorf("k=%d: last head %v, terminal %v", tt.k, ctx.X[tt.k-1], ctx.X[tt.k])
		}
		tok.Release()
	}
}

func TestSpawnUndefinedFunctionPanics(t *testing.T) {
	st, sched := newTestState()
	mod := loadTestModule(st, "m", fun(st, "f", 1))

	tests := []struct {
		name string
		mod  ModuleID
		fn   FunKey
	}{
		{"unknown name", mod, fun(st, "nope", 1)},
		{"wrong arity", mod, fun(st, "f", 2)},
		{"unknown module", ModuleID(99), fun(st, "f", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				var undef *UndefinedFunctionError
				if err, ok := r.(error); !ok || !errors.As(err, &undef) {
					t.Fatalf("recovered %v, want *UndefinedFunctionError", r)
				}
				if undef.Arity != tt.fn.Arity {
					t.Errorf("arity = %d, want %d", undef.Arity, tt.fn.Arity)
				}
			}()
			Spawn(st, tt.mod, tt.fn, Nil)
		})
	}

	if st.Table.Len() != 0 || len(sched.Jobs()) != 0 {
		t.Error("undefined function spawn touched the table or scheduler")
	}
}

func TestSpawnTableFull(t *testing.T) {
	st, sched := newTestState(WithMaxProcesses(1))
	f := fun(st, "f", 0)
	mod := loadTestModule(st, "m", f)

	if _, err := Spawn(st, mod, f, Nil); err != nil {
		t.Fatalf("first Spawn: %v", err)
	}
	if _, err := Spawn(st, mod, f, Nil); !errors.Is(err, ErrNoPIDAvailable) {
		t.Errorf("err = %v, want ErrNoPIDAvailable", err)
	}
	if len(sched.Jobs()) != 1 {
		t.Errorf("scheduled %d jobs, want 1", len(sched.Jobs()))
	}
}

func TestSpawnWithThreadAffinity(t *testing.T) {
	st, sched := newTestState()
	f := fun(st, "f", 0)
	mod := loadTestModule(st, "m", f)

	tid := 3
	pidv, err := SpawnWith(st, mod, f, Nil, SpawnOptions{ThreadID: &tid, Priority: PriorityHigh})
	if err != nil {
		t.Fatalf("SpawnWith: %v", err)
	}
	tid = 7 // the process keeps its own copy

	p, _ := st.Table.Get(pidv.PID())
	tok := mustAcquire(t, p)
	defer tok.Release()
	if got := tok.LocalData().ThreadID; got == nil || *got != 3 {
		t.Errorf("ThreadID = %v, want 3", got)
	}
	if jobs := sched.Jobs(); len(jobs) != 1 || jobs[0].Priority != PriorityHigh {
		t.Errorf("jobs = %+v, want one high priority job", jobs)
	}
}
