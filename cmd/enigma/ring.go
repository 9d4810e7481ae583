package main

import (
	"context"
	"fmt"
	"time"

	"github.com/chazu/enigma/vm"
)

// The ring module: start/2 spawns N relay processes linked in a circle through
// the main process and injects a counter. Every hop forwards the counter
// decremented by one; whoever sees zero passes the zero on and exits, so the
// zero makes one lap and takes the whole ring down with it.

var (
	startFun = vm.FunKey{Arity: 2}
	nodeFun  = vm.FunKey{Arity: 1}
)

func loadRing(st *vm.State) vm.ModuleID {
	startFun.Name = st.Atoms.Intern("start")
	nodeFun.Name = st.Atoms.Intern("node")

	m := vm.NewModule(st.Atoms.Intern("ring"))
	m.Export(startFun, spawnRing, relay)
	m.Export(nodeFun, relay)
	return st.Load(m)
}

// spawnRing expects X0 = nodes, X1 = hops. It leaves the next process in X0.
func spawnRing(st *vm.State, tok *vm.Token) vm.Outcome {
	ctx := tok.Context()
	self := tok.Process()
	nodes := ctx.X[0].SmallInt()
	hops := ctx.X[1]

	next := vm.FromPID(self.PID())
	for i := int64(0); i < nodes; i++ {
		pid, err := vm.Spawn(st, ctx.Module, nodeFun, ctx.Heap.List(next))
		if err != nil {
			ctx.Raise(vm.AtomError, vm.FromAtom(vm.AtomSystemLimit))
			return vm.Exit
		}
		next = pid
	}

	ctx.X[0] = next
	ctx.X[1] = vm.None
	ctx.Live = 1
	ctx.IP++

	if _, err := vm.SendMessage(st, self, next, hops); err != nil {
		panic(err)
	}
	return vm.Continue
}

// relay forwards counters to the process in X0 until it sees zero.
func relay(st *vm.State, tok *vm.Token) vm.Outcome {
	msg, ok := tok.Receive()
	if !ok {
		return vm.Park
	}
	if !msg.IsSmallInt() {
		// Not ours; drop it.
		return vm.Continue
	}

	n := msg.SmallInt()
	next := n - 1
	if n == 0 {
		next = 0
	}
	if _, err := vm.SendMessage(st, tok.Process(), tok.Context().X[0], vm.FromSmallInt(next)); err != nil {
		panic(err)
	}
	if n == 0 {
		return vm.Exit
	}
	return vm.Continue
}

// ringResult reports one benchmark run.
type ringResult struct {
	Nodes    int
	Hops     int
	Elapsed  time.Duration
	Messages int
	Crashed  bool
}

// runRing spawns the ring on a started pool and waits for the main process to
// exit.
func runRing(ctx context.Context, st *vm.State, mod vm.ModuleID, nodes, hops int) (ringResult, error) {
	done := make(chan bool, 1)
	st.OnExit(func(_ *vm.State, tok *vm.Token, exc *vm.Exception) {
		if tok.Process().IsMain() {
			done <- exc != nil
		}
	})

	heap := vm.NewHeap()
	args := heap.List(vm.FromSmallInt(int64(nodes)), vm.FromSmallInt(int64(hops)))

	start := time.Now()
	if _, err := vm.Spawn(st, mod, startFun, args); err != nil {
		return ringResult{}, fmt.Errorf("spawn ring: %w", err)
	}

	select {
	case crashed := <-done:
		return ringResult{
			Nodes:    nodes,
			Hops:     hops,
			Elapsed:  time.Since(start),
			Messages: hops + nodes + 1, // the last zero lands on an exited process
			Crashed:  crashed,
		}, nil
	case <-ctx.Done():
		return ringResult{}, ctx.Err()
	}
}
