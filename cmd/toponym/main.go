// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/blinklabs-io/toponym"
	"github.com/blinklabs-io/toponym/internal/config"
	"github.com/blinklabs-io/toponym/internal/node"
	"github.com/blinklabs-io/toponym/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const (
	programName = "toponym"
)

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

func commonRun() *slog.Logger {
	// Configure logger
	logLevel := slog.LevelInfo
	addSource := false
	if globalFlags.debug {
		logLevel = slog.LevelDebug
		addSource = true
	}
	logger := slog.New(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		}),
	)
	slog.SetDefault(logger)
	// Configure max processes with our logger wrapper, toss undo func
	_, err := maxprocs.Set(maxprocs.Logger(slogPrintf))
	if err != nil {
		// If we hit this, something really wrong happened
		slog.Error(err.Error())
		os.Exit(1)
	}
	logger.Debug(
		"version: "+version.GetVersionString(),
		"component", programName,
	)
	return logger
}

// mustConfig returns the config loaded by the root command
func mustConfig(cmd *cobra.Command) *config.Config {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		slog.Error("no config found in context")
		os.Exit(1)
	}
	return cfg
}

// withResolver opens the configured resolver, runs fn and exits on error
func withResolver(cmd *cobra.Command, fn func(context.Context, *toponym.Resolver) error) {
	cfg := mustConfig(cmd)
	logger := commonRun()
	ctx := cmd.Context()
	r, err := node.Open(ctx, cfg, logger, nil)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	err = fn(ctx, r)
	if closeErr := r.Close(); closeErr != nil {
		slog.Error(closeErr.Error())
	}
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Gazetteer for matching historical place names to positions",
		Run: func(cmd *cobra.Command, args []string) {
			serveRun(cmd, args, mustConfig(cmd))
		},
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(initConfigCommand())
	rootCmd.AddCommand(sourceCommand())
	rootCmd.AddCommand(addCommand())
	rootCmd.AddCommand(seedCommand())
	rootCmd.AddCommand(wikiCommand())
	rootCmd.AddCommand(matchCommand())
	rootCmd.AddCommand(resolveCommand())
	rootCmd.AddCommand(gotoCommand())
	rootCmd.AddCommand(decideCommand())
	rootCmd.AddCommand(rejectCommand())
	rootCmd.AddCommand(clusterCommand())
	rootCmd.AddCommand(exportCommand())
	rootCmd.AddCommand(versionCommand())

	// Execute cobra command
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		// NOTE: we purposely don't display the error, since cobra will have already displayed it
		os.Exit(1)
	}
}
