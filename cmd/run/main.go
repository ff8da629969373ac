package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	enginehost "github.com/wippyai/engine-host"
	"github.com/wippyai/engine-host/engine"
	"github.com/wippyai/engine-host/host"
	"github.com/wippyai/engine-host/loop"
	"github.com/wippyai/engine-host/platform"
	"github.com/wippyai/engine-host/snapshot"
)

func main() {
	var (
		program      = flag.String("program", "", "Path to the program module")
		snapFile     = flag.String("snapshot", "", "Path to a snapshot to restore the instance from")
		cacheDir     = flag.String("cache-dir", "", "Compilation cache directory for snapshot restore")
		memoryPages  = flag.Uint("memory-pages", 0, "Instance memory limit in 64KiB pages (0 = engine default)")
		scratchBytes = flag.Uint64("scratch-budget", 0, "Scratch allocator budget in bytes (0 = derived)")
		trackAlloc   = flag.Bool("track-alloc", false, "Record the scratch allocation high-water mark")
		argv         = flag.String("argv", "", "Program arguments (comma-separated)")
		workers      = flag.Int("workers", 0, "Background worker count (0 = one per CPU)")
		verbose      = flag.Bool("v", false, "Verbose logging")
		interactive  = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *program == "" && *snapFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -program <file.wasm> [-argv a,b] [-memory-pages n]")
		fmt.Fprintln(os.Stderr, "       run -snapshot <file.bin> [-cache-dir dir]")
		fmt.Fprintln(os.Stderr, "       run -program <file.wasm> -i  (interactive mode)")
		os.Exit(int(enginehost.ExitInvalidArgument))
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			engine.SetLogger(logger)
			loop.SetLogger(logger)
		}
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(int(enginehost.ExitInvalidArgument))
		}
		if err := runInteractive(*program, splitArgs(*argv)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	code, err := run(*program, *snapFile, *cacheDir, uint32(*memoryPages), *scratchBytes, *trackAlloc, splitArgs(*argv), *workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(enginehost.ExitInvalidArgument))
	}
	os.Exit(int(code))
}

func splitArgs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func run(programFile, snapFile, cacheDir string, memoryPages uint32, scratchBytes uint64, trackAlloc bool, argv []string, workers int) (int, error) {
	ctx := context.Background()

	var snap *snapshot.Snapshot
	if snapFile != "" {
		opts := []snapshot.Option{}
		if cacheDir != "" {
			opts = append(opts, snapshot.WithCacheDir(cacheDir))
		}
		s, err := snapshot.FromFile(snapFile, opts...)
		if err != nil {
			return 0, fmt.Errorf("load snapshot: %w", err)
		}
		snap = s
	}

	args := argv
	if programFile != "" {
		args = append([]string{programFile}, argv...)
	}

	pf := platform.New(workers)
	defer pf.Shutdown()

	m := host.NewOwned(ctx, snap, loop.New(), pf, args, os.Args[1:], host.Options{
		TrackAllocations: trackAlloc,
		Constraints: engine.Constraints{
			MemoryLimitPages:   memoryPages,
			ScratchBudgetBytes: scratchBytes,
		},
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	defer m.Close(ctx)

	code := m.Run(ctx)

	if trackAlloc {
		if params := m.Params(); params != nil {
			fmt.Fprintf(os.Stderr, "scratch high-water: %d bytes (budget %d)\n",
				params.Allocator.HighWater(), params.Allocator.Budget())
		}
	}
	return int(code), nil
}
