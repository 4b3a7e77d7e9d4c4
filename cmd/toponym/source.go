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
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blinklabs-io/toponym"
	"github.com/blinklabs-io/toponym/database"
	"github.com/spf13/cobra"
)

func sourceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage sources",
	}
	cmd.AddCommand(sourceAddCommand())
	cmd.AddCommand(sourceListCommand())
	cmd.AddCommand(sourceCommentCommand())
	return cmd
}

func sourceAddCommand() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "add <name> <year>",
		Short: "Add a source",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(_ context.Context, r *toponym.Resolver) error {
				year, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid year %q: %w", args[1], err)
				}
				source, err := r.Database().AddSource(args[0], comment, year, nil)
				if err != nil {
					return err
				}
				fmt.Printf("added source %s (%d)\n", source.Name, source.Year)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "source comment")
	return cmd
}

func sourceListCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sources",
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(_ context.Context, r *toponym.Resolver) error {
				sources, err := r.Database().ListSources(!all, nil)
				if err != nil {
					return err
				}
				for _, source := range sources {
					fmt.Printf("%s\t%d\t%s\n", source.Name, source.Year, source.Comment)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include seeded sources")
	return cmd
}

func sourceCommentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment <name> <comment>",
		Short: "Replace the comment of a source",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(_ context.Context, r *toponym.Resolver) error {
				return r.Database().CommentSource(args[0], args[1], nil)
			})
		},
	}
	return cmd
}

func addCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <source> <file>",
		Short: "Add names to a source",
		Long: "Add names to a source. Each line of the file holds a name, optionally " +
			"followed by a tab-separated language code and position id. Use - for stdin.",
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(_ context.Context, r *toponym.Resolver) error {
				raw, err := readNames(args[1])
				if err != nil {
					return err
				}
				count, err := r.Database().AddToponyms(args[0], raw, nil)
				if err != nil {
					return err
				}
				fmt.Printf("added %d of %d names to %s\n", count, len(raw), args[0])
				return nil
			})
		},
	}
	return cmd
}

func readNames(path string) ([]database.RawToponym, error) {
	f := os.Stdin
	if path != "-" {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
	}
	var ret []database.RawToponym
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if strings.TrimSpace(fields[0]) == "" {
			continue
		}
		tmp := database.RawToponym{Name: fields[0]}
		if len(fields) > 1 {
			tmp.Language = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 && strings.TrimSpace(fields[2]) != "" {
			pos := strings.TrimSpace(fields[2])
			tmp.PositionID = &pos
		}
		ret = append(ret, tmp)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(ret) == 0 {
		return nil, errors.New("no names in " + path)
	}
	return ret, nil
}
