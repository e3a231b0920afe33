// Package cli wires the webdesk binary: the web server and two local tools
// that run the same terminal engine without a browser.
package cli

import (
	"fmt"
	"os"

	"github.com/antibyte/webdesk/pkg/configuration"
	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/logger"

	"github.com/spf13/cobra"
)

// Options holds the flags shared by every subcommand.
type Options struct {
	ConfigPath  string
	ContentPath string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "webdesk",
		Short: "webdesk - a simulated desktop served to the browser",
		Long: "webdesk serves a portfolio desktop with draggable windows, a simulated\n" +
			"terminal, a browser and a few small apps. All state lives on the server.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "settings.cfg", "path to settings.cfg (created with defaults if missing)")
	root.PersistentFlags().StringVar(&opts.ContentPath, "content", "", "YAML content bundle replacing the built-in one")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newShellCommand(opts))
	root.AddCommand(newTreeCommand(opts))
	return root
}

func initialize(opts *Options) error {
	if err := configuration.Initialize(opts.ConfigPath); err != nil {
		return fmt.Errorf("error initializing configuration: %w", err)
	}
	if err := logger.Initialize(); err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	logger.ConfigInfo("Configuration loaded from: %s", opts.ConfigPath)
	return nil
}

// loadBundle returns the bundle from --content, or the built-in one.
func loadBundle(opts *Options) (*content.Bundle, error) {
	if opts.ContentPath == "" {
		return content.Default()
	}
	data, err := os.ReadFile(opts.ContentPath)
	if err != nil {
		return nil, fmt.Errorf("reading content bundle: %w", err)
	}
	bundle, err := content.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("content bundle %s: %w", opts.ContentPath, err)
	}
	return bundle, nil
}
