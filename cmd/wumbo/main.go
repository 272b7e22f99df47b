// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"zombiezen.com/go/log"

	"github.com/wumbo-lang/wumbo/internal/wumbocli"
)

var initLogOnce sync.Once

func initLogging(verbose bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if verbose {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "wumbo: ", log.StdFlags, nil),
		})
	})
}

func main() {
	rootCommand := wumbocli.New()
	verbose := rootCommand.PersistentFlags().BoolP("verbose", "v", false, "show debug logging")
	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(*verbose)
		return nil
	}

	ctx := context.Background()
	if err := rootCommand.ExecuteContext(ctx); err != nil {
		initLogging(*verbose)
		fmt.Fprintf(os.Stdout, "wumbo: %v\n", err)
		os.Exit(1)
	}
}
