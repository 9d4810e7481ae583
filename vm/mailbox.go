package vm

import "sync/atomic"

// Message is a term in flight. Fragment holds the boxed parts of Value when
// they were copied for another process; it is nil for immediates and for
// self-sends.
type Message struct {
	Value    Value
	Fragment *Heap
}

// ---------------------------------------------------------------------------
// External lane: lock-free multi-producer single-consumer queue
// ---------------------------------------------------------------------------

type mpscNode struct {
	msg  Message
	next atomic.Pointer[mpscNode]
}

// mpscQueue accepts pushes from any goroutine. Pop must only be called by the
// single consumer.
type mpscQueue struct {
	head   atomic.Pointer[mpscNode] // last pushed node
	tail   *mpscNode                // consumer side stub
	length atomic.Int64
}

func newMPSCQueue() *mpscQueue {
	stub := &mpscNode{}
	q := &mpscQueue{tail: stub}
	q.head.Store(stub)
	return q
}

func (q *mpscQueue) push(msg Message) {
	n := &mpscNode{msg: msg}
	q.length.Add(1)
	prev := q.head.Swap(n)
	prev.next.Store(n)
}

func (q *mpscQueue) pop() (Message, bool) {
	next := q.tail.next.Load()
	if next == nil {
		return Message{}, false
	}
	msg := next.msg
	next.msg = Message{} // let the GC free the fragment
	q.tail = next
	q.length.Add(-1)
	return msg, true
}

func (q *mpscQueue) len() int64 {
	return q.length.Load()
}

// ---------------------------------------------------------------------------
// Mailbox
// ---------------------------------------------------------------------------

// Mailbox is a process's inbound queue with two lanes. The internal lane is
// written only by the owning process (self-sends) and holds every message the
// owner has already pulled in; the external lane takes sends from any other
// goroutine. Everything except SendExternal, ExternalLen and the counters must
// be called by the Token holder.
type Mailbox struct {
	external *mpscQueue
	internal []Message
	save     int

	internalSends atomic.Uint64
	externalSends atomic.Uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{external: newMPSCQueue()}
}

// SendInternal enqueues a message the owning process sent to itself.
func (m *Mailbox) SendInternal(msg Message) {
	m.internal = append(m.internal, msg)
	m.internalSends.Add(1)
}

// SendExternal enqueues a message from another process. Safe for concurrent
// use.
func (m *Mailbox) SendExternal(msg Message) {
	m.external.push(msg)
	m.externalSends.Add(1)
}

// ExternalLen returns the number of messages waiting in the external lane.
// Safe for concurrent use.
func (m *Mailbox) ExternalLen() int {
	return int(m.external.len())
}

// InternalLen returns the number of messages in the internal lane.
func (m *Mailbox) InternalLen() int {
	return len(m.internal)
}

// Len returns the total number of undelivered messages.
func (m *Mailbox) Len() int {
	return len(m.internal) + m.ExternalLen()
}

// InternalSends returns how many messages arrived through the internal lane.
func (m *Mailbox) InternalSends() uint64 { return m.internalSends.Load() }

// ExternalSends returns how many messages arrived through the external lane.
func (m *Mailbox) ExternalSends() uint64 { return m.externalSends.Load() }

// drain moves every external message into the internal lane, preserving the
// order of arrival.
func (m *Mailbox) drain() {
	for {
		msg, ok := m.external.pop()
		if !ok {
			return
		}
		m.internal = append(m.internal, msg)
	}
}

// Peek returns the message under the save pointer.
func (m *Mailbox) Peek() (Value, bool) {
	if m.save >= len(m.internal) {
		m.drain()
	}
	if m.save >= len(m.internal) {
		return None, false
	}
	return m.internal[m.save].Value, true
}

// Next moves the save pointer past the current message, leaving it in the
// mailbox for a later receive.
func (m *Mailbox) Next() {
	if m.save < len(m.internal) {
		m.save++
	}
}

// ResetSave moves the save pointer back to the oldest message.
func (m *Mailbox) ResetSave() {
	m.save = 0
}

// Accept removes the message under the save pointer, moves its fragment onto
// heap and resets the save pointer. It panics if Peek would report no message.
func (m *Mailbox) Accept(heap *Heap) Value {
	if m.save >= len(m.internal) {
		panic("Mailbox.Accept: no current message")
	}
	msg := m.internal[m.save]
	copy(m.internal[m.save:], m.internal[m.save+1:])
	m.internal[len(m.internal)-1] = Message{}
	m.internal = m.internal[:len(m.internal)-1]
	m.save = 0

	heap.Absorb(msg.Fragment)
	return msg.Value
}

// Clear discards every message.
func (m *Mailbox) Clear() {
	m.drain()
	m.internal = nil
	m.save = 0
}
