package vm

// SendMessage routes msg from sender to the process target names and returns
// msg.
//
// A target that is not a pid is a RoutingError. A pid nobody owns, or whose
// process has exited, swallows the message silently. Otherwise the message is
// delivered through the receiver's lane dispatch, deep-copied into a heap
// fragment unless the process is sending to itself, and if the receiver was
// parked waiting for a message it is scheduled again.
//
// sender must be the process whose Token the caller holds, or nil for sends
// that do not originate in a process.
func SendMessage(st *State, sender *Process, target Value, msg Value) (Value, error) {
	if !target.IsPID() {
		return msg, &RoutingError{Target: target}
	}

	receiver, ok := st.Table.Get(target.PID())
	if !ok || receiver.Exited() {
		return msg, nil
	}

	if sender != nil && sender.pid == receiver.pid {
		receiver.SendMessage(sender, Message{Value: msg})
	} else {
		m := Message{Value: msg}
		if msg.IsBoxed() {
			m.Fragment = NewHeap()
			m.Value = CopyTerm(msg, m.Fragment)
		}
		receiver.SendMessage(sender, m)
	}

	// Only the goroutine that flips the flag may enqueue, so a parked process
	// is woken exactly once no matter how many senders race here.
	if receiver.clearWaiting() {
		st.Scheduler().Schedule(NormalJob(receiver))
	}
	return msg, nil
}

// ParkProcess marks tok's process as waiting for a message and releases the
// token. The caller must have found no acceptable message in the mailbox.
//
// The token goes back before the flag is set, so whoever wins the flag can
// always acquire it. A message that arrives before the flag is set finds it
// clear and wakes nobody; ParkProcess therefore looks at the external lane
// once more and, if something is there and it wins the flag, schedules the
// process itself. The internal lane cannot change while the process is parked.
func ParkProcess(st *State, tok *Token) {
	p := tok.Process()
	tok.Release()
	p.SetWaitingForMessage(true)

	if p.PendingMessages() > 0 && p.clearWaiting() {
		st.Scheduler().Schedule(NormalJob(p))
	}
}

// ExitProcess terminates tok's process: exit hooks run, the PID returns to
// the table, mailbox and dictionary are cleared, the heap is dropped and the
// token is released. The exit is abnormal when the context carries an exception.
func ExitProcess(st *State, tok *Token) {
	p := tok.Process()
	ctx := tok.Context()

	st.runExitHooks(tok, ctx.Exc)

	p.exited.Store(true)
	st.Table.Release(p.pid)

	if ctx.Exc != nil {
		log.Info("process exited", "pid", p.pid, "class", st.Atoms.Name(ctx.Exc.Class), "reason", st.Atoms.Format(ctx.Exc.Reason))
	} else {
		log.Debug("process exited", "pid", p.pid)
	}

	tok.Mailbox().Clear()
	tok.Dictionary().Clear()
	ctx.Stack = nil
	ctx.BS = nil
	ctx.Heap.Drop()
	tok.Release()
}
