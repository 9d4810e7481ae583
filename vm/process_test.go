package vm

import (
	"errors"
	"testing"
)

func TestFromBlock(t *testing.T) {
	p := FromBlock(5, 2)
	if p.PID() != 5 || p.IsMain() {
		t.Errorf("PID = %d, IsMain = %v", p.PID(), p.IsMain())
	}
	if !FromBlock(0, 0).IsMain() {
		t.Error("PID 0 should be main")
	}

	tok := mustAcquire(t, p)
	defer tok.Release()

	ld := tok.LocalData()
	if ld.Context().Module != 2 || ld.Context().IP != 0 {
		t.Errorf("context module %d, ip %d", ld.Context().Module, ld.Context().IP)
	}
	if ld.ThreadID != nil {
		t.Error("new process has thread affinity")
	}
	if ld.Mailbox.Len() != 0 || ld.Dictionary.Len() != 0 {
		t.Error("new process has messages or dictionary entries")
	}
	if p.IsWaitingForMessage() || p.Exited() {
		t.Error("new process is waiting or exited")
	}
}

func TestTokenIsExclusive(t *testing.T) {
	p := FromBlock(1, 0)

	tok := mustAcquire(t, p)
	if !p.Running() {
		t.Error("Running should be true while a token is out")
	}
	if _, err := p.Acquire(); !errors.Is(err, ErrProcessBusy) {
		t.Errorf("second Acquire err = %v, want ErrProcessBusy", err)
	}

	tok.Release()
	if p.Running() || tok.Valid() {
		t.Error("Release did not give the process back")
	}

	tok2 := mustAcquire(t, p)
	tok2.Release()
}

func TestTokenUnusableAfterRelease(t *testing.T) {
	tok := mustAcquire(t, FromBlock(1, 0))
	tok.Release()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	tok.Context()
}

func TestProcessSendMessageLanes(t *testing.T) {
	p1 := FromBlock(1, 0)
	p2 := FromBlock(2, 0)

	p1.SendMessage(p1, Message{Value: FromSmallInt(1)})
	p1.SendMessage(p2, Message{Value: FromSmallInt(2)})
	p1.SendMessage(nil, Message{Value: FromSmallInt(3)})

	tok := mustAcquire(t, p1)
	defer tok.Release()
	mb := tok.Mailbox()
	if mb.InternalSends() != 1 || mb.ExternalSends() != 2 {
		t.Errorf("internal %d, external %d; want 1, 2", mb.InternalSends(), mb.ExternalSends())
	}
	if p1.PendingMessages() != 2 || p1.MessagesIn() != 3 {
		t.Errorf("pending %d, in %d", p1.PendingMessages(), p1.MessagesIn())
	}
}

func TestWaitingFlag(t *testing.T) {
	p := FromBlock(1, 0)
	if p.clearWaiting() {
		t.Error("clearWaiting won on a clear flag")
	}
	p.SetWaitingForMessage(true)
	if !p.IsWaitingForMessage() {
		t.Fatal("flag not set")
	}
	if !p.clearWaiting() {
		t.Error("clearWaiting lost on a set flag")
	}
	if p.clearWaiting() || p.IsWaitingForMessage() {
		t.Error("flag cleared twice")
	}
}
