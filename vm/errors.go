package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPIDAvailable is returned when the process table is full.
	ErrNoPIDAvailable = errors.New("vm: no PID could be reserved")

	// ErrTooManyArguments is returned when a spawn argument list does not fit
	// the register file.
	ErrTooManyArguments = errors.New("vm: argument list exceeds register file")

	// ErrPIDNotReserved is returned by ProcessTable.Map for a PID that was
	// never reserved or is already mapped.
	ErrPIDNotReserved = errors.New("vm: PID not reserved")

	// ErrProcessBusy is returned by Process.Acquire while another goroutine
	// holds the process's Token.
	ErrProcessBusy = errors.New("vm: process is owned by another goroutine")

	// ErrStopped is returned by Pool.Start once the pool has been stopped.
	ErrStopped = errors.New("vm: pool stopped")
)

// RoutingError reports a send to something that is not a process identifier.
type RoutingError struct {
	Target Value
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("vm: badarg: send target %s is not a pid", e.Target.Kind())
}

// UndefinedFunctionError is the panic value raised when spawn is asked for a
// function its module does not export. It marks a broken caller, not a
// runtime condition.
type UndefinedFunctionError struct {
	Module string
	Fun    string
	Arity  int
}

func (e *UndefinedFunctionError) Error() string {
	return fmt.Sprintf("vm: undefined function %s:%s/%d", e.Module, e.Fun, e.Arity)
}
