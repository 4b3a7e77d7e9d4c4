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
	"fmt"
	"log/slog"
	"os"

	"github.com/blinklabs-io/toponym/internal/config"
	"github.com/blinklabs-io/toponym/internal/node"
	"github.com/spf13/cobra"
)

func serveRun(_ *cobra.Command, _ []string, cfg *config.Config) {
	logger := commonRun()
	if err := node.Run(cfg, logger); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			serveRun(cmd, args, mustConfig(cmd))
		},
	}
	return cmd
}

func initConfigCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the effective configuration to a YAML file",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustConfig(cmd)
			if err := config.Save(output, cfg); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			fmt.Println("wrote " + output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "toponym.yaml", "config file to write")
	return cmd
}
