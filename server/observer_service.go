package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"

	"connectrpc.com/connect"
	"github.com/dustin/go-humanize"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/enigma/crashdump"
	"github.com/chazu/enigma/vm"
)

// ObserverServiceName is the fully-qualified name of the observer service.
const ObserverServiceName = "enigma.v1.ObserverService"

// Observer procedures.
const (
	ListProcessesProcedure  = "/" + ObserverServiceName + "/ListProcesses"
	ProcessInfoProcedure    = "/" + ObserverServiceName + "/ProcessInfo"
	StatsProcedure          = "/" + ObserverServiceName + "/Stats"
	ListCrashDumpsProcedure = "/" + ObserverServiceName + "/ListCrashDumps"
)

// ObserverService answers questions about a running State. It only reads the
// process fields that are safe to read without the process's Token: flags,
// lane lengths and counters. Registers, heap and dictionary stay private to
// whoever is running the process.
type ObserverService struct {
	st    *vm.State
	pool  *vm.Pool
	dumps *crashdump.Store
}

// NewObserverService creates an ObserverService. dumps may be nil.
func NewObserverService(st *vm.State, pool *vm.Pool, dumps *crashdump.Store) *ObserverService {
	return &ObserverService{st: st, pool: pool, dumps: dumps}
}

// Register mounts the service's Connect handlers on mux.
func (s *ObserverService) Register(mux *http.ServeMux) {
	mux.Handle(ListProcessesProcedure, connect.NewUnaryHandler(ListProcessesProcedure, s.ListProcesses))
	mux.Handle(ProcessInfoProcedure, connect.NewUnaryHandler(ProcessInfoProcedure, s.ProcessInfo))
	mux.Handle(StatsProcedure, connect.NewUnaryHandler(StatsProcedure, s.Stats))
	mux.Handle(ListCrashDumpsProcedure, connect.NewUnaryHandler(ListCrashDumpsProcedure, s.ListCrashDumps))
}

// ListProcesses returns a summary of every live process, ordered by PID.
func (s *ObserverService) ListProcesses(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	var procs []any
	s.st.Table.Each(func(p *vm.Process) {
		procs = append(procs, processFields(p))
	})

	out, err := structpb.NewStruct(map[string]any{
		"processes": procs,
		"count":     len(procs),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// ProcessInfo returns one process. The request carries a numeric "pid" field.
func (s *ObserverService) ProcessInfo(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	field, ok := req.Msg.GetFields()["pid"]
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("pid is required"))
	}
	n := field.GetNumberValue()
	if n < 0 || n != float64(uint32(n)) {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("pid %v is not a process identifier", n))
	}

	p, ok := s.st.Table.Get(vm.PID(n))
	if !ok || p.Exited() {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("process <0.%d.0> not found", uint32(n)))
	}

	out, err := structpb.NewStruct(processFields(p))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// Stats returns table, pool and memory counters.
func (s *ObserverService) Stats(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	ps := s.pool.Stats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	out, err := structpb.NewStruct(map[string]any{
		"processes":  s.st.Table.Len(),
		"capacity":   s.st.Table.Capacity(),
		"atoms":      s.st.Atoms.Len(),
		"modules":    s.st.Modules.Len(),
		"workers":    ps.Workers,
		"queued":     ps.Queued,
		"quanta":     ps.Quanta,
		"crashes":    ps.Crashes,
		"running":    ps.Running,
		"heap_alloc": humanize.Bytes(mem.HeapAlloc),
		"summary": fmt.Sprintf("%s processes, %s quanta, %s crashes",
			humanize.Comma(int64(s.st.Table.Len())),
			humanize.Comma(int64(ps.Quanta)),
			humanize.Comma(int64(ps.Crashes))),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// ListCrashDumps returns stored crash dumps, newest first. The optional
// numeric "limit" field bounds the result.
func (s *ObserverService) ListCrashDumps(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	if s.dumps == nil {
		return nil, connect.NewError(connect.CodeUnavailable, fmt.Errorf("crash dumps are not enabled"))
	}

	limit := int(req.Msg.GetFields()["limit"].GetNumberValue())
	dumps, err := s.dumps.List(ctx, limit)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	list := make([]any, 0, len(dumps))
	for _, d := range dumps {
		list = append(list, map[string]any{
			"id":       d.ID.String(),
			"pid":      d.PID,
			"module":   d.Module,
			"class":    d.Class,
			"reason":   d.Reason,
			"taken_at": d.TakenAt.Format("2006-01-02T15:04:05Z07:00"),
			"age":      humanize.Time(d.TakenAt),
		})
	}

	out, err := structpb.NewStruct(map[string]any{"dumps": list})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

func processFields(p *vm.Process) map[string]any {
	return map[string]any{
		"pid":         uint32(p.PID()),
		"name":        fmt.Sprintf("<0.%d.0>", p.PID()),
		"main":        p.IsMain(),
		"running":     p.Running(),
		"waiting":     p.IsWaitingForMessage(),
		"pending":     p.PendingMessages(),
		"messages_in": p.MessagesIn(),
	}
}
