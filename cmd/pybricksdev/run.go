package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/moffa90/go-pybricks/hub"
	"github.com/moffa90/go-pybricks/internal/manifest"
)

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs, true)
	wait := fs.Bool("wait", true, "Wait for the program to end, printing its output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run needs one .py file or project directory")
	}

	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer a.Close()

	sources, m, err := manifest.ResolveSources(fs.Arg(0))
	if err != nil {
		return err
	}
	if m != nil {
		a.log.Info("project loaded", "project", m.String())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	compiler, cleanup, err := a.compiler(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	mgr, conn, err := a.connect(ctx, m)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Disconnect(context.Background()) }()

	info := conn.Info()
	fmt.Printf("Connected to %s (%s), firmware %s\n", info.Name, info.Address, info.FirmwareRevision)

	var (
		ended = make(chan struct{})
		once  sync.Once
		bar   = newProgressBar(os.Stdout, 30)
	)

	ctrl := hub.NewController(conn, compiler,
		hub.WithLogger(a.log.Named("hub")),
		hub.WithEnforceProgramSize(a.cfg.Upload.EnforceProgramSize),
		hub.WithProgressCallback(bar.Update),
		hub.WithStdoutCallback(func(s string) { fmt.Print(s) }),
		hub.WithCompileStateCallback(func(s hub.CompileState) {
			if s == hub.Compiling {
				fmt.Printf("Compiling %d file(s)...\n", len(sources))
			}
		}),
		hub.WithStateCallback(func(from, to hub.State) {
			if to == hub.Idle && (from == hub.Running || from == hub.Starting) {
				once.Do(func() { close(ended) })
			}
		}),
	)

	events, cancel := conn.Subscribe()
	defer cancel()

	followErr := make(chan error, 1)
	go func() { followErr <- ctrl.Follow(ctx, events) }()

	start := time.Now()
	img, err := ctrl.CompileAndUploadAndRun(ctx, sources)
	bar.Done()
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %d module(s), %d bytes in %s\n", len(img.Modules), img.Size(), time.Since(start).Round(time.Millisecond))

	if !*wait {
		return nil
	}

	select {
	case <-ended:
		fmt.Println(okStyle.Render("Program ended"))
		return nil
	case <-ctx.Done():
		stopCtx, cancelStop := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancelStop()
		if err := ctrl.StopUserProgram(stopCtx); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("Program stopped"))
		return nil
	case err := <-followErr:
		return err
	}
}

func stopCmd(args []string) error {
	fs := flag.NewFlagSet("stop", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	mgr, _, err := a.connect(ctx, nil)
	if err != nil {
		return err
	}

	// Disconnect always tries to stop the user program first.
	return mgr.Disconnect(ctx)
}
