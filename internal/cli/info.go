package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/theapemachine/closer/pkg/app"
)

type info struct {
	Test       bool   `json:"test"`
	Collection string `json:"collection"`
	Location   string `json:"location"`
	Degraded   bool   `json:"degraded"`
	Engine     string `json:"engine"`
	Memories   int    `json:"memories"`
}

func newInfoCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the memory store in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, closer *app.App) error {
				identity := closer.Memory.Identity()

				details := info{
					Test:       identity.IsTest,
					Collection: identity.Collection,
					Location:   identity.Location,
					Degraded:   identity.Degraded,
					Engine:     closer.Config.Memory.Engine,
					Memories:   closer.Memory.Count(),
				}

				text := fmt.Sprintf(
					"collection: %s\nlocation:   %s\nengine:     %s\nmemories:   %d\ntest:       %t\ndegraded:   %t",
					details.Collection, details.Location, details.Engine, details.Memories, details.Test, details.Degraded,
				)

				return g.print(cmd.OutOrStdout(), details, text)
			})
		},
	}
}
