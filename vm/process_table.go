package vm

import (
	"sort"
	"sync"
)

// DefaultMaxProcesses is the table capacity used when none is configured.
const DefaultMaxProcesses = 32768

// ProcessTable maps PIDs to live processes and owns PID allocation. Retired
// PIDs are reused oldest first, so a stale PID stays dead for as long as the
// free list allows. All methods are safe for concurrent use.
type ProcessTable struct {
	mu       sync.RWMutex
	procs    map[PID]*Process
	reserved map[PID]struct{}
	free     []PID // retired PIDs in release order
	next     PID
	capacity int
}

// NewProcessTable creates a table that holds at most capacity processes.
// A capacity below 1 selects DefaultMaxProcesses.
func NewProcessTable(capacity int) *ProcessTable {
	if capacity < 1 {
		capacity = DefaultMaxProcesses
	}
	return &ProcessTable{
		procs:    make(map[PID]*Process),
		reserved: make(map[PID]struct{}),
		capacity: capacity,
	}
}

// Reserve claims a PID. It returns false when capacity PIDs are already in
// use, counting both mapped and reserved ones.
func (pt *ProcessTable) Reserve() (PID, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if len(pt.procs)+len(pt.reserved) >= pt.capacity {
		return 0, false
	}

	var pid PID
	if len(pt.free) > 0 {
		pid = pt.free[0]
		pt.free = pt.free[1:]
	} else {
		pid = pt.next
		pt.next++
	}
	pt.reserved[pid] = struct{}{}
	return pid, true
}

// Map registers proc under a PID obtained from Reserve. The PID becomes
// visible to Get only now.
func (pt *ProcessTable) Map(pid PID, proc *Process) error {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if _, ok := pt.reserved[pid]; !ok {
		return ErrPIDNotReserved
	}
	delete(pt.reserved, pid)
	pt.procs[pid] = proc
	return nil
}

// Get returns the process registered under pid.
func (pt *ProcessTable) Get(pid PID) (*Process, bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	proc, ok := pt.procs[pid]
	return proc, ok
}

// Release retires pid, whether mapped or only reserved, and makes it
// available for reuse. Releasing an unknown PID does nothing.
func (pt *ProcessTable) Release(pid PID) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	_, mapped := pt.procs[pid]
	_, reserved := pt.reserved[pid]
	if !mapped && !reserved {
		return
	}
	delete(pt.procs, pid)
	delete(pt.reserved, pid)
	pt.free = append(pt.free, pid)
}

// Len returns the number of mapped processes.
func (pt *ProcessTable) Len() int {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return len(pt.procs)
}

// Capacity returns the maximum number of processes.
func (pt *ProcessTable) Capacity() int {
	return pt.capacity
}

// Each calls fn for a snapshot of the mapped processes in PID order. fn runs
// without the table lock held.
func (pt *ProcessTable) Each(fn func(*Process)) {
	pt.mu.RLock()
	procs := make([]*Process, 0, len(pt.procs))
	for _, p := range pt.procs {
		procs = append(procs, p)
	}
	pt.mu.RUnlock()

	sort.Slice(procs, func(i, j int) bool { return procs[i].pid < procs[j].pid })
	for _, p := range procs {
		fn(p)
	}
}
