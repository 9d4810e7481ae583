package vm

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

// Priority orders runnable processes.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// Job is a runnable process handed to a Scheduler.
type Job struct {
	Process  *Process
	Priority Priority
}

// NormalJob wraps p as a normal-priority job.
func NormalJob(p *Process) Job {
	return Job{Process: p, Priority: PriorityNormal}
}

// HighJob wraps p as a high-priority job.
func HighJob(p *Process) Job {
	return Job{Process: p, Priority: PriorityHigh}
}

// Executor runs a process for one scheduling quantum.
type Executor interface {
	Execute(st *State, tok *Token) Outcome
}

// jobQueue is a FIFO of jobs.
type jobQueue struct {
	jobs []Job
	head int
}

func (q *jobQueue) push(j Job) {
	q.jobs = append(q.jobs, j)
}

func (q *jobQueue) pop() (Job, bool) {
	if q.head >= len(q.jobs) {
		return Job{}, false
	}
	j := q.jobs[q.head]
	q.jobs[q.head] = Job{}
	q.head++
	if q.head == len(q.jobs) {
		q.jobs = q.jobs[:0]
		q.head = 0
	}
	return j, true
}

func (q *jobQueue) len() int {
	return len(q.jobs) - q.head
}

// ---------------------------------------------------------------------------
// Pool
// ---------------------------------------------------------------------------

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Workers is the number of worker goroutines; runtime.NumCPU() if < 1.
	Workers int
	// Executor runs processes; an Interpreter with default reductions if nil.
	Executor Executor
}

// PoolStats is a point-in-time view of a pool.
type PoolStats struct {
	Workers int
	Queued  int
	Quanta  uint64
	Crashes uint64
	Running bool
}

// Pool runs processes on a fixed set of worker goroutines. A worker takes the
// process's Token for one quantum and gives it back before the process is
// queued again, so no two workers ever run the same process.
//
// Jobs are taken from the worker's pinned queue first, then the shared high
// priority queue, then the shared normal queue.
type Pool struct {
	st      *State
	exec    Executor
	workers int
	log     commonlog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	high    jobQueue
	normal  jobQueue
	pinned  []jobQueue
	stopped bool

	running atomic.Bool
	quanta  atomic.Uint64
	crashes atomic.Uint64

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewPool creates a pool for st and installs it as st's scheduler.
func NewPool(st *State, cfg PoolConfig) *Pool {
	workers := cfg.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	exec := cfg.Executor
	if exec == nil {
		exec = &Interpreter{}
	}
	p := &Pool{
		st:      st,
		exec:    exec,
		workers: workers,
		log:     commonlog.GetLogger("enigma.pool"),
		pinned:  make([]jobQueue, workers),
	}
	p.cond = sync.NewCond(&p.mu)
	st.SetScheduler(p)
	return p
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

// Schedule queues a runnable process. Jobs scheduled after Stop are dropped.
func (p *Pool) Schedule(job Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		p.log.Debug("job dropped, pool stopped", "pid", job.Process.PID())
		return
	}
	if job.Priority == PriorityHigh {
		p.high.push(job)
	} else {
		p.normal.push(job)
	}
	p.cond.Signal()
}

func (p *Pool) schedulePinned(worker int, job Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.pinned[worker].push(job)
	// Signal could wake a worker that is not allowed to take this job.
	p.cond.Broadcast()
}

// Start launches the workers. They run until ctx is done or Stop is called.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("vm: pool already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	p.cancel = cancel
	p.group = g

	for i := 0; i < p.workers; i++ {
		id := i
		g.Go(func() error {
			p.work(id)
			return nil
		})
	}

	// Wake every idle worker once the context ends.
	g.Go(func() error {
		<-ctx.Done()
		p.halt()
		return nil
	})

	p.log.Info("pool started", "workers", p.workers)
	return nil
}

// Stop asks every worker to finish its current quantum and return. Jobs
// scheduled once Stop has returned are dropped.
func (p *Pool) Stop() {
	p.halt()

	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *Pool) halt() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() error {
	p.mu.Lock()
	g := p.group
	p.mu.Unlock()
	if g == nil {
		return nil
	}
	err := g.Wait()
	p.running.Store(false)
	p.log.Info("pool stopped", "quanta", p.quanta.Load())
	return err
}

// Stats returns counters for the observer.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	queued := p.high.len() + p.normal.len()
	for i := range p.pinned {
		queued += p.pinned[i].len()
	}
	p.mu.Unlock()

	return PoolStats{
		Workers: p.workers,
		Queued:  queued,
		Quanta:  p.quanta.Load(),
		Crashes: p.crashes.Load(),
		Running: p.running.Load(),
	}
}

func (p *Pool) work(id int) {
	for {
		job, ok := p.next(id)
		if !ok {
			return
		}
		p.run(id, job)
	}
}

func (p *Pool) next(id int) (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.stopped {
			return Job{}, false
		}
		if j, ok := p.pinned[id].pop(); ok {
			return j, true
		}
		if j, ok := p.high.pop(); ok {
			return j, true
		}
		if j, ok := p.normal.pop(); ok {
			return j, true
		}
		p.cond.Wait()
	}
}

func (p *Pool) run(id int, job Job) {
	proc := job.Process
	if proc.Exited() {
		return
	}

	tok, err := proc.Acquire()
	if err != nil {
		p.log.Critical("process scheduled twice", "pid", proc.PID(), "worker", id)
		return
	}

	if w, pinned := p.pinnedWorker(tok); pinned && w != id {
		tok.Release()
		p.schedulePinned(w, job)
		return
	}

	p.quanta.Add(1)
	switch p.execute(tok) {
	case Continue, Yield:
		p.requeue(tok, job.Priority)
	case Park:
		ParkProcess(p.st, tok)
	case Exit:
		ExitProcess(p.st, tok)
	}
}

func (p *Pool) pinnedWorker(tok *Token) (int, bool) {
	tid := tok.LocalData().ThreadID
	if tid == nil {
		return 0, false
	}
	w := *tid % p.workers
	if w < 0 {
		w += p.workers
	}
	return w, true
}

func (p *Pool) requeue(tok *Token, prio Priority) {
	proc := tok.Process()
	job := Job{Process: proc, Priority: prio}
	w, pinned := p.pinnedWorker(tok)
	tok.Release()

	if pinned {
		p.schedulePinned(w, job)
	} else {
		p.Schedule(job)
	}
}

// execute runs one quantum, turning a panic into an abnormal exit of the
// process that raised it.
func (p *Pool) execute(tok *Token) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.crashes.Add(1)
			if !tok.Valid() {
				p.log.Critical("instruction panicked after releasing its token", "panic", fmt.Sprint(r))
				outcome = -1
				return
			}
			ctx := tok.Context()
			exc := ctx.Raise(AtomError, panicReason(ctx.Heap, r))
			exc.Trace = fmt.Sprint(r)
			p.log.Error("process crashed", "pid", tok.Process().PID(), "panic", exc.Trace)
			outcome = Exit
		}
	}()
	return p.exec.Execute(p.st, tok)
}

func panicReason(heap *Heap, r any) Value {
	switch err := r.(type) {
	case *UndefinedFunctionError:
		return FromAtom(AtomUndef)
	case *RoutingError:
		return FromAtom(AtomBadarg)
	case error:
		return heap.Binary([]byte(err.Error()))
	default:
		return heap.Binary([]byte(fmt.Sprint(r)))
	}
}
