// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

// Package wumbocli provides the Cobra command for the wumbo compiler:
// Lua 5.3 source in, a WebAssembly GC module out (§6.1).
package wumbocli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"zombiezen.com/go/log"

	"github.com/wumbo-lang/wumbo/internal/basiclib"
	"github.com/wumbo-lang/wumbo/internal/chunk"
	"github.com/wumbo-lang/wumbo/internal/codegen"
	"github.com/wumbo-lang/wumbo/internal/parser"
	"github.com/wumbo-lang/wumbo/internal/runtimelib"
	"github.com/wumbo-lang/wumbo/internal/wasmir"
)

type options struct {
	inputFilename  string
	outputFilename string
	mode           string
	optLevel       int
	text           bool
}

// New returns the wumbo root command.
func New() *cobra.Command {
	c := &cobra.Command{
		Use:                   "wumbo [infile]",
		Short:                 "compile Lua 5.3 source to a WebAssembly GC module",
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(options)
	c.Flags().StringVarP(&opts.outputFilename, "output", "o", "", "write the module to `path` instead of stdout")
	c.Flags().StringVarP(&opts.mode, "mode", "m", "standalone", "helper linkage: standalone, minimal, or runtime (§6.1)")
	c.Flags().IntVarP(&opts.optLevel, "optimize", "O", 0, "requested optimisation `level` (accepted, not yet acted on)")
	c.Flags().BoolVarP(&opts.text, "text", "t", false, "emit a debug text listing instead of a binary module")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			opts.inputFilename = args[0]
		}
		return run(cmd.Context(), opts)
	}
	return c
}

func parseMode(s string) (runtimelib.Mode, error) {
	switch s {
	case "standalone":
		return runtimelib.ModeStandalone, nil
	case "minimal":
		return runtimelib.ModeMinimal, nil
	case "runtime":
		return runtimelib.ModeRuntime, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want standalone, minimal, or runtime)", s)
	}
}

func run(ctx context.Context, opts *options) error {
	mode, err := parseMode(opts.mode)
	if err != nil {
		return err
	}

	mod := wasmir.NewModule()
	types, err := wasmir.Build(mod)
	if err != nil {
		return fmt.Errorf("build runtime value types: %w", err)
	}
	rt := runtimelib.New(mod, types, mode)

	if mode != runtimelib.ModeRuntime {
		if opts.inputFilename == "" {
			opts.inputFilename = "-"
		}
		r, sourceName, err := openInput(opts.inputFilename)
		if err != nil {
			return err
		}
		defer r.Close()

		block, err := parser.Parse(r, sourceName)
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}

		body, err := codegen.Compile(mod, types, rt, block)
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}

		chunk.Wrap(mod, types, rt, body, basiclib.Install)
	} else {
		log.Debugf(ctx, "mode=runtime: emitting the runtime library alone, ignoring any input file")
	}

	if err := rt.Finalize(); err != nil {
		return fmt.Errorf("finalize runtime helpers: %w", err)
	}

	if !opts.text {
		return fmt.Errorf("binary module encoding is not implemented; pass -t/--text for a debug listing")
	}

	w, closeOut, err := openOutput(opts.outputFilename)
	if err != nil {
		return err
	}
	if err := mod.WriteText(w); err != nil {
		closeOut()
		return fmt.Errorf("write module: %w", err)
	}
	return closeOut()
}

func openInput(name string) (io.ReadCloser, string, error) {
	if name == "-" {
		return io.NopCloser(bufio.NewReader(os.Stdin)), "stdin", nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, "", err
	}
	return f, name, nil
}

func openOutput(name string) (io.Writer, func() error, error) {
	if name == "" {
		w := bufio.NewWriter(os.Stdout)
		return w, w.Flush, nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, nil, err
	}
	w := bufio.NewWriter(f)
	return w, func() error {
		if err := w.Flush(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}
