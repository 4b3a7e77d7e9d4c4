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
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/blinklabs-io/toponym"
	"github.com/blinklabs-io/toponym/matcher"
	"github.com/spf13/cobra"
)

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid toponym id %q: %w", arg, err)
	}
	return uint(id), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func matchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match [source]",
		Short: "Suggest placed candidates for unplaced names",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(ctx context.Context, r *toponym.Resolver) error {
				source := ""
				if len(args) > 0 {
					source = args[0]
				}
				matched := 0
				err := r.Matcher().Run(ctx, source, func(p matcher.Progress) {
					if p.Matched() {
						matched++
						fmt.Printf("round %d: toponym %d matched\n", p.Round, p.LastID)
					}
				})
				if err != nil {
					return err
				}
				fmt.Printf("%d toponyms matched\n", matched)
				return nil
			})
		},
	}
	return cmd
}

func resolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [toponym-id]",
		Short: "Place names whose unresolved suggestions agree",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(ctx context.Context, r *toponym.Resolver) error {
				if len(args) == 0 {
					merged, err := r.Consensus().ResolveAll(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("%d toponyms placed\n", merged)
					return nil
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				comment, err := r.Consensus().Resolve(ctx, &id)
				if err != nil {
					return err
				}
				fmt.Println(comment)
				return nil
			})
		},
	}
	return cmd
}

func gotoCommand() *cobra.Command {
	var nemo bool
	cmd := &cobra.Command{
		Use:   "goto [index]",
		Short: "Show the candidates of a queued name",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(ctx context.Context, r *toponym.Resolver) error {
				var index *int
				if len(args) > 0 {
					tmp, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("invalid index %q: %w", args[0], err)
					}
					index = &tmp
				}
				page, err := r.Navigator().Goto(ctx, index, nemo)
				if err != nil {
					return err
				}
				return printJSON(page)
			})
		},
	}
	cmd.Flags().BoolVar(&nemo, "nemo", false, "use the Nemo queue")
	return cmd
}

func decideCommand() *cobra.Command {
	var nemo bool
	cmd := &cobra.Command{
		Use:   "decide <target-id> <option-id>",
		Short: "Accept one candidate for a name",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(ctx context.Context, r *toponym.Resolver) error {
				target, err := parseID(args[0])
				if err != nil {
					return err
				}
				option, err := parseID(args[1])
				if err != nil {
					return err
				}
				return r.Navigator().Decide(ctx, target, option, nemo)
			})
		},
	}
	cmd.Flags().BoolVar(&nemo, "nemo", false, "decide a Nemo edge")
	return cmd
}

func rejectCommand() *cobra.Command {
	var nemo bool
	cmd := &cobra.Command{
		Use:   "reject <target-id> <option-id>...",
		Short: "Reject candidates for a name",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			withResolver(cmd, func(ctx context.Context, r *toponym.Resolver) error {
				target, err := parseID(args[0])
				if err != nil {
					return err
				}
				options := make([]uint, 0, len(args)-1)
				for _, arg := range args[1:] {
					option, err := parseID(arg)
					if err != nil {
						return err
					}
					options = append(options, option)
				}
				return r.Navigator().Reject(ctx, target, options, nemo)
			})
		},
	}
	cmd.Flags().BoolVar(&nemo, "nemo", false, "reject Nemo edges")
	return cmd
}
