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
	"log/slog"
	"os"

	"github.com/blinklabs-io/toponym/internal/node"
	"github.com/spf13/cobra"
)

func seedCommand() *cobra.Command {
	var countries []string
	var adjacents []string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Download GeoNames dumps and seed positions and names",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustConfig(cmd)
			// Flags take priority over config
			if len(countries) > 0 {
				cfg.Countries = countries
			}
			if len(adjacents) > 0 {
				cfg.Adjacents = adjacents
			}
			if len(cfg.Countries) == 0 && len(cfg.Adjacents) == 0 {
				slog.Error("no countries to seed (via --countries or countries config)")
				os.Exit(1)
			}
			logger := commonRun()
			if err := node.Seed(cmd.Context(), cfg, logger); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringSliceVar(&countries, "countries", nil, "ISO country codes seeded with admin regions")
	cmd.Flags().StringSliceVar(&adjacents, "adjacents", nil, "ISO country codes seeded without admin regions")
	return cmd
}

func wikiCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wiki",
		Short: "Add Wikidata labels for queued positions",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustConfig(cmd)
			logger := commonRun()
			if err := node.Wiki(cmd.Context(), cfg, logger); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	return cmd
}
