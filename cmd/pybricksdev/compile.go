package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/moffa90/go-pybricks/internal/manifest"
	"github.com/moffa90/go-pybricks/mpy"
)

func compileCmd(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs, false)
	output := fs.String("o", "", "Output image path (default: the project output, or <file>.mpy)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("compile needs one .py file or project directory")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	compiler, cleanup, err := a.compiler(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	img, err := mpy.Pack(ctx, compiler, sources)
	if err != nil {
		return err
	}

	path := *output
	switch {
	case path != "":
	case m != nil:
		path = m.OutputPath()
	default:
		path = strings.TrimSuffix(fs.Arg(0), filepath.Ext(fs.Arg(0))) + ".mpy"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	fmt.Printf("Wrote %s (%d bytes)\n", path, img.Size())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, mod := range img.Modules {
		fmt.Fprintf(w, "  %s\t%s\t%d bytes\n", mod.Name, mod.Filename, len(mod.Bytecode))
	}
	return w.Flush()
}

func inspectCmd(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("inspect needs one image file")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	records, err := mpy.ParseImage(data)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d bytes, %d module(s)\n", fs.Arg(0), len(data), len(records))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  OFFSET\tNAME\tSIZE\tMPY")
	for _, r := range records {
		version := "invalid header"
		if h, err := mpy.ParseHeader(r.Bytecode); err == nil {
			version = fmt.Sprintf("v%d.%d arch %d", h.Version, h.SubVersion, h.Arch)
		}
		fmt.Fprintf(w, "  %d\t%s\t%d\t%s\n", r.Offset, r.Name, len(r.Bytecode), version)
	}
	return w.Flush()
}
