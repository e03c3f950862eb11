package main

import (
	"context"
	"flag"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/moffa90/go-pybricks/internal/cache"
	"github.com/moffa90/go-pybricks/internal/config"
	"github.com/moffa90/go-pybricks/internal/logging"
	"github.com/moffa90/go-pybricks/internal/manifest"
	"github.com/moffa90/go-pybricks/internal/simhub"
	"github.com/moffa90/go-pybricks/link"
	"github.com/moffa90/go-pybricks/link/bluetooth"
	"github.com/moffa90/go-pybricks/mpy"
)

// commonFlags are shared by every command.
type commonFlags struct {
	configPath string
	device     string
	verbose    bool
	simulate   bool
	simRun     time.Duration
	noCache    bool
}

func (f *commonFlags) register(fs *flag.FlagSet, withHub bool) {
	fs.StringVar(&f.configPath, "config", config.DefaultPath, "Path to the YAML config file")
	fs.BoolVar(&f.verbose, "v", false, "Debug logging")
	fs.BoolVar(&f.noCache, "no-cache", false, "Do not use the compile cache")
	if withHub {
		fs.StringVar(&f.device, "name", "", "Only connect to the hub with this name")
		fs.BoolVar(&f.simulate, "simulate", false, "Use an in-memory simulated hub instead of Bluetooth")
		fs.DurationVar(&f.simRun, "sim-run", 2*time.Second, "How long simulated programs run (0 = until stopped)")
	}
}

// app holds what the commands share once flags and config are read.
type app struct {
	cfg    *config.Config
	flags  commonFlags
	log    *logging.Logger
	closer func() error

	sim *simhub.Hub
}

func newApp(flags commonFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.device != "" {
		cfg.Device.Name = flags.device
	}
	if flags.verbose {
		cfg.Log.Level = "debug"
	}
	if flags.noCache {
		cfg.Cache.Enabled = false
	}

	zl, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		flags:  flags,
		log:    logging.Adapt(zl),
		closer: closer,
	}, nil
}

// quietConsole silences logging to the terminal, which would corrupt a
// full-screen UI. File logging is kept.
func (a *app) quietConsole() {
	switch strings.ToLower(a.cfg.Log.Output) {
	case "", "stderr", "stdout":
		a.log = logging.Adapt(nil)
	}
}

func (a *app) Close() {
	_ = a.closer()
}

// compiler builds the configured compiler, wrapped by the cache when
// enabled. The returned cleanup must be called when compiling is done.
func (a *app) compiler(ctx context.Context) (mpy.Compiler, func(), error) {
	var (
		c       mpy.Compiler
		id      string
		cleanup = func() {}
	)

	cc := a.cfg.Compiler
	switch cc.Backend {
	case config.BackendWasm:
		wc, err := mpy.NewWasmCompilerFromFile(ctx, cc.Path, cc.Args...)
		if err != nil {
			return nil, nil, err
		}
		c = wc
		id = "wasm:" + cc.Path
		cleanup = func() { _ = wc.Close(context.Background()) }
	default:
		c = &mpy.ExecCompiler{Path: cc.Path, Args: cc.Args}
		id = "exec:" + mpyCrossVersion(ctx, cc.Path)
	}
	id += " " + strings.Join(cc.Args, " ")

	if !a.cfg.Cache.Enabled {
		return c, cleanup, nil
	}

	store, err := a.openCache(ctx)
	if err != nil {
		a.log.Error("compile cache unavailable", "path", a.cfg.Cache.Path, "error", err)
		return c, cleanup, nil
	}

	inner := cleanup
	return store.Wrap(c, id), func() {
		stats := store.Stats()
		a.log.Debug("compile cache", "hits", stats.Hits, "misses", stats.Misses)
		_ = store.Close()
		inner()
	}, nil
}

// openCache opens the compile cache and drops entries past the configured
// max age.
func (a *app) openCache(ctx context.Context) (*cache.Store, error) {
	store, err := cache.Open(a.cfg.Cache.Path)
	if err != nil {
		return nil, err
	}

	if age := a.cfg.Cache.MaxAge; age > 0 {
		removed, err := store.Prune(ctx, age)
		if err != nil {
			a.log.Error("prune compile cache", "error", err)
		} else if removed > 0 {
			a.log.Debug("pruned compile cache", "removed", removed, "max_age", age.String())
		}
	}
	if n, err := store.Len(ctx); err == nil {
		a.log.Debug("compile cache opened", "path", a.cfg.Cache.Path, "entries", n)
	}
	return store, nil
}

// mpyCrossVersion identifies the mpy-cross build so the cache never serves
// bytecode from another compiler version.
func mpyCrossVersion(ctx context.Context, path string) string {
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return path
	}
	return strings.TrimSpace(string(out))
}

// connect opens a session with the configured hub, or the simulator.
func (a *app) connect(ctx context.Context, m *manifest.Manifest) (*link.Manager, *link.Conn, error) {
	name := a.cfg.Device.Name
	if m != nil && m.Project.Hub != "" && a.flags.device == "" {
		name = m.Project.Hub
	}

	var adapter link.Adapter
	if a.flags.simulate {
		opts := []simhub.Option{
			simhub.WithRunDuration(a.flags.simRun),
			simhub.WithLogger(a.log.Named("simhub")),
		}
		if name != "" {
			opts = append(opts, simhub.WithName(name))
		}
		a.sim = simhub.New(opts...)
		adapter = a.sim
	} else {
		adapter = bluetooth.NewAdapter()
	}

	delivery, err := link.ParseStdoutDelivery(a.cfg.Stdout.Delivery)
	if err != nil {
		return nil, nil, err
	}

	mgr := link.NewManager(adapter,
		link.WithLogger(a.log.Named("link")),
		link.WithDeviceName(name),
		link.WithScanTimeout(a.cfg.Device.ScanTimeout),
		link.WithStdoutDelivery(delivery),
	)

	conn, err := mgr.Connect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return mgr, conn, nil
}
