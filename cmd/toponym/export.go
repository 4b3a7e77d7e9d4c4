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
	"io"
	"os"

	"github.com/blinklabs-io/toponym"
	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/export"
	"github.com/spf13/cobra"
)

type tableFlags struct {
	format string
	output string
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", "tsv", "output format (tsv or xlsx)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default stdout)")
}

// write sends table to the output file or stdout
func (f *tableFlags) write(table export.Table, sheet string) error {
	var w io.Writer = os.Stdout
	if f.output != "" {
		out, err := os.Create(f.output)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}
	switch f.format {
	case "tsv":
		_, err := fmt.Fprintln(w, table.TSV())
		return err
	case "xlsx":
		return table.WriteXLSX(w, sheet)
	default:
		return fmt.Errorf("unknown format %s", f.format)
	}
}

func clusterCommand() *cobra.Command {
	var radius float64
	var flags tableFlags
	cmd := &cobra.Command{
		Use:   "cluster <source>...",
		Short: "Group the positions of sources into clusters and export the summary",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(ctx context.Context, r *toponym.Resolver) error {
				if radius <= 0 {
					radius = r.ClusterRadius()
				}
				result, err := r.Cluster().Cluster(ctx, args, radius)
				if err != nil {
					return err
				}
				return flags.write(export.ClusterTable(result), "clusters")
			})
		},
	}
	cmd.Flags().Float64Var(&radius, "radius", 0, "cluster radius in kilometers (default from config)")
	flags.register(cmd)
	return cmd
}

func exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export placed names",
	}
	cmd.AddCommand(exportSelectionCommand())
	cmd.AddCommand(exportYearCommand())
	return cmd
}

func exportSelectionCommand() *cobra.Command {
	var filter database.SelectionFilter
	var flags tableFlags
	cmd := &cobra.Command{
		Use:   "selection",
		Short: "Export the positions named by sources",
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(ctx context.Context, r *toponym.Resolver) error {
				table, err := r.Exporter().Selection(ctx, filter)
				if err != nil {
					return err
				}
				return flags.write(table, "selection")
			})
		},
	}
	cmd.Flags().StringVar(&filter.Source, "source", "", "source to export (default all user sources)")
	cmd.Flags().StringVar(&filter.Source2, "source2", "", "only positions also named by this source")
	cmd.Flags().StringVar(&filter.NoSource, "no-source", "", "skip positions named by this source")
	flags.register(cmd)
	return cmd
}

func exportYearCommand() *cobra.Command {
	var filter database.YearFilter
	var flags tableFlags
	cmd := &cobra.Command{
		Use:   "by-year",
		Short: "Export the positions named by sources of a year",
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(ctx context.Context, r *toponym.Resolver) error {
				table, err := r.Exporter().SelectionByYear(ctx, filter)
				if err != nil {
					return err
				}
				return flags.write(table, "selection")
			})
		},
	}
	cmd.Flags().IntVar(&filter.Year, "year", 0, "source year to export (default all user sources)")
	cmd.Flags().IntVar(&filter.Year2, "year2", 0, "only positions also named by sources of this year")
	cmd.Flags().IntVar(&filter.NoYear, "no-year", 0, "skip positions named by sources of this year")
	flags.register(cmd)
	return cmd
}
