package vm

import (
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("enigma.vm")

// ---------------------------------------------------------------------------
// State: the runtime shared by every process
// ---------------------------------------------------------------------------

// Scheduler accepts runnable processes.
type Scheduler interface {
	Schedule(job Job)
}

// ExitHook runs on the exiting process's goroutine while it still holds the
// Token, before the PID is released and the heap dropped. exc is nil for a
// normal exit.
type ExitHook func(st *State, tok *Token, exc *Exception)

// State is the runtime handle passed to every core operation.
type State struct {
	Atoms   *AtomTable
	Modules *ModuleRegistry
	Table   *ProcessTable

	scheduler Scheduler

	hooksMu   sync.RWMutex
	exitHooks []ExitHook
}

// Option configures a State.
type Option func(*stateConfig)

type stateConfig struct {
	maxProcesses int
	scheduler    Scheduler
}

// WithMaxProcesses bounds the process table.
func WithMaxProcesses(n int) Option {
	return func(c *stateConfig) { c.maxProcesses = n }
}

// WithScheduler installs the scheduler that receives runnable processes.
// Without it, a Pool must be created for the state before anything is spawned.
func WithScheduler(s Scheduler) Option {
	return func(c *stateConfig) { c.scheduler = s }
}

// NewState creates a runtime with empty atom, module and process tables.
func NewState(opts ...Option) *State {
	cfg := &stateConfig{maxProcesses: DefaultMaxProcesses}
	for _, opt := range opts {
		opt(cfg)
	}
	return &State{
		Atoms:     NewAtomTable(),
		Modules:   NewModuleRegistry(),
		Table:     NewProcessTable(cfg.maxProcesses),
		scheduler: cfg.scheduler,
	}
}

// Scheduler returns the installed scheduler.
func (st *State) Scheduler() Scheduler {
	return st.scheduler
}

// SetScheduler replaces the scheduler. It must be called before any process
// is spawned.
func (st *State) SetScheduler(s Scheduler) {
	st.scheduler = s
}

// OnExit registers a hook that runs for every exiting process.
func (st *State) OnExit(hook ExitHook) {
	st.hooksMu.Lock()
	st.exitHooks = append(st.exitHooks, hook)
	st.hooksMu.Unlock()
}

func (st *State) runExitHooks(tok *Token, exc *Exception) {
	st.hooksMu.RLock()
	hooks := append([]ExitHook(nil), st.exitHooks...)
	st.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(st, tok, exc)
	}
}

// Load registers a module and returns its handle.
func (st *State) Load(m *Module) ModuleID {
	id := st.Modules.Register(m)
	log.Debug("module loaded", "module", st.Atoms.Name(m.Name), "id", id, "functions", len(m.Funs))
	return id
}
