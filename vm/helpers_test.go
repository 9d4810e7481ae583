package vm

import (
	"sync"
	"testing"
)

// recordingScheduler remembers every job it is handed.
type recordingScheduler struct {
	mu   sync.Mutex
	jobs []Job
}

func (s *recordingScheduler) Schedule(job Job) {
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
}

func (s *recordingScheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}

func (s *recordingScheduler) Count(p *Process) int {
	n := 0
	for _, j := range s.Jobs() {
		if j.Process == p {
			n++
		}
	}
	return n
}

// newTestState creates a state whose scheduler only records.
func newTestState(opts ...Option) (*State, *recordingScheduler) {
	sched := &recordingScheduler{}
	st := NewState(append([]Option{WithScheduler(sched)}, opts...)...)
	return st, sched
}

// loadTestModule registers a module named name exporting each function with
// a body that exits immediately.
func loadTestModule(st *State, name string, funs ...FunKey) ModuleID {
	m := NewModule(st.Atoms.Intern(name))
	for _, fn := range funs {
		m.Export(fn, func(*State, *Token) Outcome { return Exit })
	}
	return st.Load(m)
}

func fun(st *State, name string, arity int) FunKey {
	return FunKey{Name: st.Atoms.Intern(name), Arity: arity}
}

func mustAllocate(t *testing.T, st *State, mod ModuleID) *Process {
	t.Helper()
	p, err := Allocate(st, mod)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	return p
}

func mustAcquire(t *testing.T, p *Process) *Token {
	t.Helper()
	tok, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire(%d): %v", p.PID(), err)
	}
	return tok
}
