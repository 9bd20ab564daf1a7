// Package cli implements the closer command line: the MCP server and a
// set of commands for working with the memory store directly.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/theapemachine/closer/pkg/app"
	"github.com/theapemachine/closer/pkg/config"
	"github.com/theapemachine/closer/pkg/logger"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// globals holds the persistent flags and the hooks tests use to swap out
// network-backed components.
type globals struct {
	cfgFile   string
	verbose   bool
	outputFmt string
	options   []app.Option
}

// NewRootCommand creates the closerctl command tree.
func NewRootCommand(version string, opts ...app.Option) *cobra.Command {
	app.Version = version

	g := &globals{options: opts}

	rootCmd := &cobra.Command{
		Use:   "closerctl",
		Short: "Long-term conversational memory",
		Long: `closerctl works with closer's memory store directly: save and recall
impressions, reflect on them and turn them into dreams, or run the MCP
server that exposes the same operations to an assistant.`,
		SilenceUsage: true,
	}

	g.register(rootCmd)

	rootCmd.AddCommand(newServeCommand(g))
	rootCmd.AddCommand(newAddCommand(g))
	rootCmd.AddCommand(newGetCommand(g))
	rootCmd.AddCommand(newQueryCommand(g))
	rootCmd.AddCommand(newForgetCommand(g))
	rootCmd.AddCommand(newKeysCommand(g))
	rootCmd.AddCommand(newReflectCommand(g))
	rootCmd.AddCommand(newDreamCommand(g))
	rootCmd.AddCommand(newInfoCommand(g))
	rootCmd.AddCommand(newVersionCommand(version))

	return rootCmd
}

// NewServerCommand creates a standalone command that only runs the MCP
// server.
func NewServerCommand(version string, opts ...app.Option) *cobra.Command {
	app.Version = version

	g := &globals{options: opts}
	cmd := newServeCommand(g)
	cmd.Use = "closer"
	g.register(cmd)

	return cmd
}

func (g *globals) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&g.cfgFile, "config", "c", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&g.outputFmt, "output", "o", outputText, "output format (text, json)")
}

// open loads configuration and builds the app. quiet keeps informational
// logging off the terminal for one-shot commands.
func (g *globals) open(ctx context.Context, cmd *cobra.Command, quiet bool) (*app.App, error) {
	cfg, err := config.Load(g.cfgFile)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if quiet {
		level = log.WarnLevel.String()
	}

	if g.verbose {
		level = log.DebugLevel.String()
	}

	log := logger.New(logger.Options{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	return app.New(ctx, cfg, log, g.options...)
}

// run opens the app, hands it to fn and closes it again.
func (g *globals) run(cmd *cobra.Command, fn func(ctx context.Context, closer *app.App) error) error {
	ctx := cmd.Context()

	closer, err := g.open(ctx, cmd, true)
	if err != nil {
		return err
	}

	return errors.Join(fn(ctx, closer), closer.Close())
}

// print writes v as indented JSON when --output json is set, otherwise it
// writes the text rendering.
func (g *globals) print(w io.Writer, v any, text string) error {
	switch g.outputFmt {
	case outputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(v)
	case outputText, "":
		_, err := fmt.Fprintln(w, text)
		return err
	default:
		return fmt.Errorf("unknown output format %q", g.outputFmt)
	}
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version == "" {
				version = "development"
			}

			fmt.Fprintf(cmd.OutOrStdout(), "closer %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
		},
	}
}
