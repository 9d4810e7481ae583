// Enigma CLI - runs the process runtime with the built-in ring benchmark
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"

	"github.com/chazu/enigma/crashdump"
	"github.com/chazu/enigma/manifest"
	"github.com/chazu/enigma/server"
	"github.com/chazu/enigma/vm"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Int("v", -1, "Log verbosity (overrides enigma.toml)")
	configDir := flag.String("config", ".", "Directory to search upwards for enigma.toml")
	workers := flag.Int("workers", 0, "Worker goroutines (overrides enigma.toml)")
	nodes := flag.Int("nodes", 1000, "Processes in the ring")
	hops := flag.Int("hops", 100000, "Times the counter is passed on")
	serveMode := flag.Bool("serve", false, "Start the observer (overrides enigma.toml)")
	addr := flag.String("addr", "", "Observer address (overrides enigma.toml)")
	keep := flag.Bool("keep", false, "Keep the runtime and observer up after the benchmark until interrupted")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: enigma [options]\n\n")
		fmt.Fprintf(os.Stderr, "Starts the process runtime and runs the ring benchmark.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  enigma                              # 1000 processes, 100000 hops\n")
		fmt.Fprintf(os.Stderr, "  enigma -nodes 10000 -hops 1000000   # Bigger ring\n")
		fmt.Fprintf(os.Stderr, "  enigma -serve -keep                 # Run, then stay up for the observer on :4567\n")
	}
	flag.Parse()

	m, err := loadManifest(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose >= 0 {
		m.Log.Verbosity = *verbose
	}
	if *workers > 0 {
		m.Runtime.Workers = *workers
	}
	if *serveMode {
		m.Observer.Enabled = true
	}
	if *addr != "" {
		m.Observer.Address = *addr
	}

	commonlog.Configure(m.Log.Verbosity, m.LogPath())

	if err := run(m, *nodes, *hops, *keep); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

func run(m *manifest.Manifest, nodes, hops int, keep bool) error {
	if nodes+1 > m.Runtime.MaxProcesses {
		return fmt.Errorf("a ring of %d processes needs max-processes >= %d", nodes, nodes+1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := vm.NewState(vm.WithMaxProcesses(m.Runtime.MaxProcesses))
	pool := vm.NewPool(st, vm.PoolConfig{
		Workers:  m.Runtime.Workers,
		Executor: &vm.Interpreter{Reductions: m.Runtime.Reductions},
	})

	var dumps *crashdump.Store
	if m.Crashdump.Driver != "" {
		var err error
		dumps, err = crashdump.Open(m.Crashdump.Driver, m.CrashdumpDSN())
		if err != nil {
			return err
		}
		defer dumps.Close()
		st.OnExit(dumps.Hook())
	}

	if err := pool.Start(ctx); err != nil {
		return err
	}
	defer func() {
		pool.Stop()
		pool.Wait()
	}()

	if m.Observer.Enabled {
		var opts []server.ServerOption
		if dumps != nil {
			opts = append(opts, server.WithCrashdumps(dumps))
		}
		srv := server.New(st, pool, opts...)
		defer srv.Stop()
		go func() {
			if err := srv.ListenAndServe(m.Observer.Address); err != nil {
				fmt.Fprintf(os.Stderr, "Observer error: %v\n", err)
			}
		}()
	}

	mod := loadRing(st)
	res, err := runRing(ctx, st, mod, nodes, hops)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Interrupted")
			return nil
		}
		return err
	}
	report(res, pool.Stats())

	if keep {
		fmt.Println("Runtime still up; press Ctrl-C to exit")
		<-ctx.Done()
	}
	return nil
}

func report(res ringResult, ps vm.PoolStats) {
	status := "ok"
	if res.Crashed {
		status = "crashed"
	}
	perSec := float64(res.Messages) / res.Elapsed.Seconds()

	fmt.Printf("ring: %s processes, %s hops, %s (%s)\n",
		humanize.Comma(int64(res.Nodes+1)), humanize.Comma(int64(res.Hops)), res.Elapsed.Round(time.Microsecond), status)
	fmt.Printf("  messages:  %s (%s/s)\n", humanize.Comma(int64(res.Messages)), humanize.Commaf(float64(int64(perSec))))
	fmt.Printf("  workers:   %d\n", ps.Workers)
	fmt.Printf("  quanta:    %s\n", humanize.Comma(int64(ps.Quanta)))
	fmt.Printf("  crashes:   %s\n", humanize.Comma(int64(ps.Crashes)))
}
