package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/theapemachine/closer/pkg/app"
	"github.com/theapemachine/closer/pkg/memory"
)

func newAddCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Save a memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, closer *app.App) error {
				key, err := closer.Memory.Add(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}

				return g.print(cmd.OutOrStdout(), map[string]int{"key": key}, fmt.Sprintf("saved as %d", key))
			})
		},
	}
}

func newGetCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the memory stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid key %q: %w", args[0], err)
			}

			return g.run(cmd, func(ctx context.Context, closer *app.App) error {
				text, ok := closer.Memory.Get(ctx, key)
				if !ok {
					return fmt.Errorf("%w: key %d", memory.ErrNotFound, key)
				}

				return g.print(cmd.OutOrStdout(), map[string]any{"key": key, "text": text}, text)
			})
		},
	}
}

func newQueryCommand(g *globals) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Recall the memories closest to a cue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, closer *app.App) error {
				results, err := closer.Memory.Query(ctx, strings.Join(args, " "), k)
				if err != nil {
					return err
				}

				var builder strings.Builder

				for _, result := range results {
					fmt.Fprintf(&builder, "%.3f  %s  %s\n", result.Relevance, result.SavedAt, result.Text)
				}

				if len(results) == 0 {
					builder.WriteString("no memories\n")
				}

				return g.print(cmd.OutOrStdout(), results, strings.TrimRight(builder.String(), "\n"))
			})
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 5, "maximum number of results")

	return cmd
}

func newForgetCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <key>",
		Short: "Delete a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid key %q: %w", args[0], err)
			}

			return g.run(cmd, func(ctx context.Context, closer *app.App) error {
				if err := closer.Memory.Delete(ctx, key); err != nil {
					return err
				}

				return g.print(cmd.OutOrStdout(), map[string]int{"forgotten": key}, fmt.Sprintf("forgot %d", key))
			})
		},
	}
}

func newKeysCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, closer *app.App) error {
				keys := closer.Memory.Keys()
				parts := make([]string, len(keys))

				for i, key := range keys {
					parts[i] = strconv.Itoa(key)
				}

				return g.print(cmd.OutOrStdout(), keys, strings.Join(parts, "\n"))
			})
		},
	}
}
