package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/theapemachine/closer/pkg/app"
)

func newServeCommand(g *globals) *cobra.Command {
	var (
		sse       bool
		transport string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run the MCP server exposing save_memory, get_memory, query_memory,
reflect and dream. The server speaks stdio unless --sse, --transport or
MCP_TRANSPORT selects another transport.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			closer, err := g.open(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			return closer.Serve(ctx, serveTransport(closer, sse, transport))
		},
	}

	cmd.Flags().BoolVar(&sse, "sse", false, "serve over SSE instead of stdio")
	cmd.Flags().StringVar(&transport, "transport", "", "transport to serve (stdio, sse, http)")

	return cmd
}

func serveTransport(closer *app.App, sse bool, transport string) string {
	switch {
	case transport != "":
		return transport
	case sse:
		return "sse"
	default:
		return closer.Config.MCP.Transport
	}
}
