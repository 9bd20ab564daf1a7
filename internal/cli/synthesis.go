package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/theapemachine/closer/pkg/app"
	"github.com/theapemachine/closer/pkg/synthesis"
)

func newReflectCommand(g *globals) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "reflect [topic]",
		Short: "Reflect on stored memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, closer *app.App) error {
				text := closer.Synthesis.Reflect(ctx, strings.Join(args, " "), depth)

				return g.print(cmd.OutOrStdout(), map[string]any{"depth": synthesis.ClampDepth(depth), "text": text}, text)
			})
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", synthesis.MinDepth, "reflection depth (1-3)")

	return cmd
}

func newDreamCommand(g *globals) *cobra.Command {
	var style string

	cmd := &cobra.Command{
		Use:   "dream [theme]",
		Short: "Synthesize a dream from stored memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, closer *app.App) error {
				text := closer.Synthesis.Dream(ctx, strings.Join(args, " "), style)
				normalized, _ := synthesis.NormalizeStyle(style)

				return g.print(cmd.OutOrStdout(), map[string]string{"style": normalized, "text": text}, text)
			})
		},
	}

	cmd.Flags().StringVarP(&style, "style", "s", synthesis.StyleDeep, "surface, deep, poetic or analytical")

	return cmd
}
