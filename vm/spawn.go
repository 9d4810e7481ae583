package vm

import "fmt"

// Allocate reserves a PID, builds a process at the start of mod and registers
// it in the process table.
func Allocate(st *State, mod ModuleID) (*Process, error) {
	pid, ok := st.Table.Reserve()
	if !ok {
		return nil, ErrNoPIDAvailable
	}

	proc := FromBlock(pid, mod)

	if err := st.Table.Map(pid, proc); err != nil {
		st.Table.Release(pid)
		return nil, fmt.Errorf("vm: allocate: %w", err)
	}
	return proc, nil
}

// SpawnOptions tunes how a spawned process is scheduled.
type SpawnOptions struct {
	// ThreadID pins the process to one pool worker.
	ThreadID *int
	Priority Priority
}

// Spawn creates a process running fn in mod with the elements of args in its
// registers, schedules it and returns its PID as a Value.
//
// args is walked as a list: each head goes to the next register starting at
// X[0], and the terminal (Nil for a proper list) goes to the register after
// the last head. A non-list args is itself the terminal and lands in X[0].
//
// A function mod does not export is a broken caller; Spawn panics with
// *UndefinedFunctionError.
func Spawn(st *State, mod ModuleID, fn FunKey, args Value) (Value, error) {
	return SpawnWith(st, mod, fn, args, SpawnOptions{})
}

// SpawnWith is Spawn with scheduling options.
func SpawnWith(st *State, mod ModuleID, fn FunKey, args Value, opts SpawnOptions) (Value, error) {
	entry := resolve(st, mod, fn)

	heads, tail := ListToSlice(args)
	if len(heads)+1 > NumRegisters {
		return None, fmt.Errorf("%w: %d arguments, %d registers", ErrTooManyArguments, len(heads)+1, NumRegisters)
	}

	proc, err := Allocate(st, mod)
	if err != nil {
		return None, err
	}

	tok, err := proc.Acquire()
	if err != nil {
		st.Table.Release(proc.pid)
		return None, fmt.Errorf("vm: spawn: %w", err)
	}

	ctx := tok.Context()
	ctx.IP = entry
	for i, h := range heads {
		ctx.X[i] = CopyTerm(h, ctx.Heap)
	}
	ctx.X[len(heads)] = CopyTerm(tail, ctx.Heap)
	ctx.Live = len(heads) + 1
	if opts.ThreadID != nil {
		tid := *opts.ThreadID
		tok.LocalData().ThreadID = &tid
	}
	tok.Release()

	log.Debug("spawned", "pid", proc.pid, "function", st.Atoms.Name(fn.Name), "arity", fn.Arity)

	st.Scheduler().Schedule(Job{Process: proc, Priority: opts.Priority})
	return FromPID(proc.pid), nil
}

func resolve(st *State, mod ModuleID, fn FunKey) int {
	m := st.Modules.Get(mod)
	if m == nil {
		panic(&UndefinedFunctionError{
			Module: fmt.Sprintf("#module<%d>", mod),
			Fun:    st.Atoms.Name(fn.Name),
			Arity:  fn.Arity,
		})
	}
	entry, ok := m.Lookup(fn)
	if !ok {
		panic(&UndefinedFunctionError{
			Module: st.Atoms.Name(m.Name),
			Fun:    st.Atoms.Name(fn.Name),
			Arity:  fn.Arity,
		})
	}
	return entry
}
