package vm

import "fmt"

// NumRegisters is the size of both the X and the F register files.
const NumRegisters = 16

// ExecutionContext is the register file, stack, heap and control pointers of
// one process's current activation. It is owned by its process and only
// touched through that process's Token.
type ExecutionContext struct {
	// X registers.
	X [NumRegisters]Value
	// Floating point registers.
	F [NumRegisters]float64
	// Stack, addressed through Y registers.
	Stack []Value
	Heap  *Heap
	// Number of catches on the stack.
	Catches int
	// Offset of the next instruction in Module.
	IP int
	// Live register count.
	Live   int
	Module ModuleID
	// Binary under construction; nil outside a construction sequence.
	BS  *BinaryBuilder
	Exc *Exception

	cp    int
	hasCP bool
}

// NewExecutionContext creates a context at the start of mod's code. Every X
// register holds None.
func NewExecutionContext(mod ModuleID) *ExecutionContext {
	ctx := &ExecutionContext{
		Heap:   NewHeap(),
		Module: mod,
	}
	// The zero Value is the float 0.0, not None.
	for i := range ctx.X {
		ctx.X[i] = None
	}
	return ctx
}

// Continuation returns the continuation pointer, or false at the top of a
// call chain.
func (c *ExecutionContext) Continuation() (int, bool) {
	return c.cp, c.hasCP
}

// SetContinuation sets the offset to resume at after the current call.
func (c *ExecutionContext) SetContinuation(ip int) {
	c.cp = ip
	c.hasCP = true
}

// ClearContinuation marks the top of the call chain.
func (c *ExecutionContext) ClearContinuation() {
	c.cp = 0
	c.hasCP = false
}

// ---------------------------------------------------------------------------
// Stack (Y registers)
// ---------------------------------------------------------------------------

// Allocate pushes n stack slots, each holding None.
func (c *ExecutionContext) Allocate(n int) {
	for i := 0; i < n; i++ {
		c.Stack = append(c.Stack, None)
	}
}

// Deallocate pops n stack slots.
func (c *ExecutionContext) Deallocate(n int) {
	if n > len(c.Stack) {
		panic(fmt.Sprintf("ExecutionContext.Deallocate: %d slots, stack has %d", n, len(c.Stack)))
	}
	c.Stack = c.Stack[:len(c.Stack)-n]
}

// Y returns stack slot i counted from the top of the stack.
func (c *ExecutionContext) Y(i int) Value {
	return c.Stack[c.yIndex(i)]
}

// SetY stores v in stack slot i counted from the top of the stack.
func (c *ExecutionContext) SetY(i int, v Value) {
	c.Stack[c.yIndex(i)] = v
}

func (c *ExecutionContext) yIndex(i int) int {
	idx := len(c.Stack) - 1 - i
	if i < 0 || idx < 0 {
		panic(fmt.Sprintf("ExecutionContext: y(%d) out of range, stack has %d", i, len(c.Stack)))
	}
	return idx
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

// Exception is a raised and not yet handled exception.
type Exception struct {
	// Class is one of AtomError, AtomExit, AtomThrow.
	Class  Atom
	Reason Value
	// Trace holds a rendering of where the exception came from, if known.
	Trace string
}

// Raise records an exception on the context. Reason must live on this
// context's heap or be an immediate.
func (c *ExecutionContext) Raise(class Atom, reason Value) *Exception {
	c.Exc = &Exception{Class: class, Reason: reason}
	return c.Exc
}

// ClearException forgets a handled exception.
func (c *ExecutionContext) ClearException() {
	c.Exc = nil
}

// ---------------------------------------------------------------------------
// Binary construction
// ---------------------------------------------------------------------------

// BinaryBuilder accumulates the bytes of a binary under construction.
type BinaryBuilder struct {
	buf []byte
}

// Append adds raw bytes.
func (b *BinaryBuilder) Append(data []byte) {
	b.buf = append(b.buf, data...)
}

// AppendByte adds one byte.
func (b *BinaryBuilder) AppendByte(v byte) {
	b.buf = append(b.buf, v)
}

// AppendString adds the bytes of s.
func (b *BinaryBuilder) AppendString(s string) {
	b.buf = append(b.buf, s...)
}

// Len returns the number of bytes written so far.
func (b *BinaryBuilder) Len() int { return len(b.buf) }

// BeginBinary starts a construction sequence.
func (c *ExecutionContext) BeginBinary(sizeHint int) *BinaryBuilder {
	if c.BS != nil {
		panic("ExecutionContext.BeginBinary: construction already in progress")
	}
	c.BS = &BinaryBuilder{buf: make([]byte, 0, sizeHint)}
	return c.BS
}

// FinishBinary allocates the constructed binary on the heap and ends the
// sequence.
func (c *ExecutionContext) FinishBinary() Value {
	if c.BS == nil {
		panic("ExecutionContext.FinishBinary: no construction in progress")
	}
	v := c.Heap.Binary(c.BS.buf)
	c.BS = nil
	return v
}
