package vm

import "sync/atomic"

// PID identifies a live process. PID 0 is the main process.
type PID uint32

// LocalData is the part of a process that only the goroutine holding the
// process's Token may touch.
type LocalData struct {
	context *ExecutionContext

	Mailbox *Mailbox

	// ThreadID pins the process to one pool worker when set.
	ThreadID *int

	// Process dictionary.
	Dictionary *Dictionary
}

// Context returns the process's execution context.
func (ld *LocalData) Context() *ExecutionContext {
	return ld.context
}

// Process is the schedulable unit: an identity, its LocalData and the flags
// other goroutines may read or flip concurrently.
type Process struct {
	local LocalData
	pid   PID

	// waiting is set while the process is parked for a message.
	waiting atomic.Bool
	// owned is set while some goroutine holds the Token.
	owned  atomic.Bool
	exited atomic.Bool
}

// NewProcess wraps ctx into a process with an empty mailbox, no thread
// affinity and an empty dictionary.
func NewProcess(pid PID, ctx *ExecutionContext) *Process {
	return &Process{
		pid: pid,
		local: LocalData{
			context:    ctx,
			Mailbox:    NewMailbox(),
			Dictionary: NewDictionary(),
		},
	}
}

// FromBlock creates a process with a fresh context at the start of mod.
func FromBlock(pid PID, mod ModuleID) *Process {
	return NewProcess(pid, NewExecutionContext(mod))
}

// PID returns the process identifier.
func (p *Process) PID() PID { return p.pid }

// IsMain reports whether p is the main process.
func (p *Process) IsMain() bool { return p.pid == 0 }

// SendMessage delivers msg to p's mailbox. A process messaging itself uses
// the internal lane, which needs no synchronisation because the sender holds
// p's Token; everybody else uses the external lane. A nil sender counts as
// external.
func (p *Process) SendMessage(sender *Process, msg Message) {
	if sender != nil && sender.pid == p.pid {
		p.local.Mailbox.SendInternal(msg)
	} else {
		p.local.Mailbox.SendExternal(msg)
	}
}

// SetWaitingForMessage sets or clears the parked flag. Safe for concurrent use.
func (p *Process) SetWaitingForMessage(v bool) {
	p.waiting.Store(v)
}

// IsWaitingForMessage reports whether p is parked. Safe for concurrent use.
func (p *Process) IsWaitingForMessage() bool {
	return p.waiting.Load()
}

// clearWaiting clears the parked flag and reports whether this caller was the
// one to clear it. The winner is responsible for making p runnable again.
func (p *Process) clearWaiting() bool {
	return p.waiting.CompareAndSwap(true, false)
}

// Running reports whether a goroutine currently holds p's Token.
func (p *Process) Running() bool { return p.owned.Load() }

// Exited reports whether p has terminated.
func (p *Process) Exited() bool { return p.exited.Load() }

// PendingMessages returns the number of messages waiting in the external lane.
// Safe for concurrent use.
func (p *Process) PendingMessages() int {
	return p.local.Mailbox.ExternalLen()
}

// MessagesIn returns the number of messages ever delivered to p.
// Safe for concurrent use.
func (p *Process) MessagesIn() uint64 {
	mb := p.local.Mailbox
	return mb.InternalSends() + mb.ExternalSends()
}

// Acquire hands out the right to run p. Only one Token exists at a time;
// ErrProcessBusy is returned while another goroutine holds it.
func (p *Process) Acquire() (*Token, error) {
	if !p.owned.CompareAndSwap(false, true) {
		return nil, ErrProcessBusy
	}
	return &Token{p: p}, nil
}

// ---------------------------------------------------------------------------
// Token
// ---------------------------------------------------------------------------

// Token is the capability to mutate a process's LocalData. The pool hands one
// out when a worker picks the process up and takes it back when the process
// yields, parks or exits. A Token must stay on the goroutine that acquired it.
type Token struct {
	p *Process
}

func (t *Token) proc() *Process {
	if t.p == nil {
		panic("Token: used after Release")
	}
	return t.p
}

// Process returns the process this token grants access to.
func (t *Token) Process() *Process { return t.proc() }

// LocalData returns the process's mutable state.
func (t *Token) LocalData() *LocalData { return &t.proc().local }

// Context returns the process's execution context.
func (t *Token) Context() *ExecutionContext { return t.proc().local.context }

// Mailbox returns the process's mailbox.
func (t *Token) Mailbox() *Mailbox { return t.proc().local.Mailbox }

// Dictionary returns the process dictionary.
func (t *Token) Dictionary() *Dictionary { return t.proc().local.Dictionary }

// Receive takes the oldest message under the save pointer, moving it onto the
// process heap. It returns false when the mailbox has nothing more to offer.
func (t *Token) Receive() (Value, bool) {
	mb := t.Mailbox()
	if _, ok := mb.Peek(); !ok {
		return None, false
	}
	return mb.Accept(t.Context().Heap), true
}

// Valid reports whether the token has not been released.
func (t *Token) Valid() bool { return t.p != nil }

// Release gives up the right to run the process. The token is unusable
// afterwards.
func (t *Token) Release() {
	p := t.proc()
	t.p = nil
	p.owned.Store(false)
}
