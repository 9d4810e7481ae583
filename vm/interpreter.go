package vm

// DefaultReductions is the number of instructions a process may run before it
// is made to yield.
const DefaultReductions = 2000

// Interpreter runs a module's instruction stream. It is the default Executor
// of a Pool.
type Interpreter struct {
	Reductions int
}

// Execute runs instructions from the context's IP until one of them returns
// something other than Continue or the reduction budget is spent. Running
// past the end of the code is a normal exit.
func (in *Interpreter) Execute(st *State, tok *Token) Outcome {
	ctx := tok.Context()
	mod := st.Modules.Get(ctx.Module)
	if mod == nil {
		ctx.Raise(AtomError, FromAtom(AtomUndef))
		return Exit
	}

	budget := in.Reductions
	if budget <= 0 {
		budget = DefaultReductions
	}

	for n := 0; n < budget; n++ {
		if ctx.IP < 0 || ctx.IP >= len(mod.Code) {
			return Exit
		}
		if out := mod.Code[ctx.IP](st, tok); out != Continue {
			return out
		}
	}
	return Yield
}
