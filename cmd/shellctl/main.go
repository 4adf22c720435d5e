package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/unitconsole/internal/logging"
	"github.com/danmuck/unitconsole/internal/shell"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	addr    string
	client  string
	timeout time.Duration
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "shellctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "shellctl",
		Short:         "Interactive shell for a unit console controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			configureLogging(f.verbose)
		},
	}
	defaults := shell.DefaultConfig()
	root.PersistentFlags().StringVar(&f.addr, "addr", defaults.Addr, "controller session address")
	root.PersistentFlags().StringVar(&f.client, "client", defaults.Client, "client name sent in hello")
	root.PersistentFlags().DurationVar(&f.timeout, "timeout", defaults.Session.RequestTimeout, "per-request timeout")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "log session activity to stderr")
	root.AddCommand(newReplCmd(f), newExecCmd(f), newCompleteCmd(f))
	return root
}

// configureLogging keeps stdout for command output.
func configureLogging(verbose bool) {
	cfg := logging.Config{Level: zerolog.WarnLevel, Out: os.Stderr}
	if verbose {
		cfg.Level = zerolog.DebugLevel
	}
	logging.ApplyEnvOverrides(&cfg)
	log.Logger = logging.New(cfg)
	zerolog.SetGlobalLevel(cfg.Level)
}

func (f *rootFlags) config() shell.Config {
	cfg := shell.DefaultConfig()
	cfg.Addr = strings.TrimSpace(f.addr)
	cfg.Client = f.client
	if f.timeout > 0 {
		cfg.Session.RequestTimeout = f.timeout
	}
	return cfg
}

func dial(ctx context.Context, f *rootFlags) (*shell.Client, error) {
	return shell.Dial(ctx, f.config())
}

func newReplCmd(f *rootFlags) *cobra.Command {
	var history string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Open an interactive session with tab completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := dial(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer c.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "connected to %s, type help for commands\n", c.Controller())
			return c.REPL(cmd.Context(), cmd.OutOrStdout(), history)
		},
	}
	cmd.Flags().StringVar(&history, "history", defaultHistoryFile(), "history file, empty disables")
	return cmd
}

func newExecCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <line...>",
		Short: "Run one console line and print its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer c.Close()
			out, err := c.Execute(cmd.Context(), strings.Join(args, " "))
			shell.Render(cmd.OutOrStdout(), out, err)
			return err
		},
	}
}

func newCompleteCmd(f *rootFlags) *cobra.Command {
	var cursor int
	cmd := &cobra.Command{
		Use:   "complete <line>",
		Short: "Print completions for a partial line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer c.Close()
			line := args[0]
			if cursor < 0 {
				cursor = len(line)
			}
			list, err := c.Complete(cmd.Context(), line, cursor)
			if err != nil {
				return err
			}
			for _, s := range list.List {
				fmt.Fprintf(cmd.OutOrStdout(), "%d:%d %s\n", s.Range.Start, s.Range.End, s.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&cursor, "cursor", -1, "byte cursor into line, defaults to end of line")
	return cmd
}

func defaultHistoryFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "unitconsole", "shell_history")
}
