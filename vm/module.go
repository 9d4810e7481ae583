package vm

import (
	"fmt"
	"sync"
)

// FunKey identifies a function within a module by name and arity.
type FunKey struct {
	Name  Atom
	Arity int
}

// Outcome is what an instruction (or a whole quantum) tells the scheduler.
type Outcome int

const (
	// Continue runs the instruction at the new IP within the same quantum.
	Continue Outcome = iota
	// Yield puts the process back on the run queue.
	Yield
	// Park waits for a message; the wake path makes the process runnable again.
	Park
	// Exit terminates the process. A non-nil Exc makes the exit abnormal.
	Exit
)

var outcomeNames = [...]string{"continue", "yield", "park", "exit"}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Instruction is one step of a module's instruction stream. It runs with the
// process's Token and is responsible for moving IP.
type Instruction func(st *State, tok *Token) Outcome

// Module is a loaded unit of code. Modules are immutable once registered.
type Module struct {
	Name Atom
	Funs map[FunKey]int
	Code []Instruction
}

// NewModule creates an empty module.
func NewModule(name Atom) *Module {
	return &Module{
		Name: name,
		Funs: make(map[FunKey]int),
	}
}

// Export appends code as the body of fn and records its entry offset.
func (m *Module) Export(fn FunKey, code ...Instruction) int {
	entry := len(m.Code)
	m.Funs[fn] = entry
	m.Code = append(m.Code, code...)
	return entry
}

// Lookup returns the entry offset of fn.
func (m *Module) Lookup(fn FunKey) (int, bool) {
	ip, ok := m.Funs[fn]
	return ip, ok
}

// ---------------------------------------------------------------------------
// ModuleRegistry
// ---------------------------------------------------------------------------

// ModuleID is a stable handle to a registered module.
type ModuleID uint32

// ModuleRegistry is an append-only table of modules. A ModuleID stays valid
// for the life of the registry.
type ModuleRegistry struct {
	mu     sync.RWMutex
	mods   []*Module
	byName map[Atom]ModuleID
}

// NewModuleRegistry creates an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{byName: make(map[Atom]ModuleID)}
}

// Register appends m and returns its handle. A later module with the same
// name shadows the earlier one for ByName; both IDs stay valid.
func (r *ModuleRegistry) Register(m *Module) ModuleID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ModuleID(len(r.mods))
	r.mods = append(r.mods, m)
	r.byName[m.Name] = id
	return id
}

// Get returns the module for id, or nil if id was never handed out.
func (r *ModuleRegistry) Get(id ModuleID) *Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(id) >= len(r.mods) {
		return nil
	}
	return r.mods[id]
}

// ByName returns the newest module registered under name.
func (r *ModuleRegistry) ByName(name Atom) (ModuleID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Len returns the number of registered modules.
func (r *ModuleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mods)
}
