package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/unitconsole/internal/admin"
	"github.com/danmuck/unitconsole/internal/config"
	"github.com/danmuck/unitconsole/internal/controller"
	"github.com/danmuck/unitconsole/internal/observability"
	"github.com/danmuck/unitconsole/internal/unit"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "unitctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "unitctl",
		Short:         "Unit console controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newInitCmd(), newValidateCmd())
	return root
}

type serveFlags struct {
	config string
	units  string
	listen string
	admin  string
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the controller session server and admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveServiceConfig(cmd, f)
			if err != nil {
				return err
			}
			observability.InitLogger("unitctl")
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&f.config, "config", "", "controller config file (TOML)")
	cmd.Flags().StringVar(&f.units, "units", "", "units fixture file (TOML)")
	cmd.Flags().StringVar(&f.listen, "listen", "", "session listen address")
	cmd.Flags().StringVar(&f.admin, "admin", "", "admin HTTP listen address, empty disables")
	return cmd
}

func resolveServiceConfig(cmd *cobra.Command, f serveFlags) (controller.ServiceConfig, error) {
	cfg := controller.DefaultServiceConfig()
	if f.config != "" {
		loaded, err := loadServiceConfig(f.config)
		if err != nil {
			return controller.ServiceConfig{}, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("units") {
		cfg.UnitsFile = f.units
	}
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr = f.listen
	}
	if cmd.Flags().Changed("admin") {
		cfg.AdminListenAddr = f.admin
	}
	return cfg, nil
}

func loadRegistry(path string) (*unit.Registry, error) {
	if path == "" {
		log.Warn().Msg("unitctl.serve no units file, starting empty")
		return unit.NewRegistry(), nil
	}
	units, err := config.LoadUnits(path)
	if err != nil {
		return nil, err
	}
	return units.Registry()
}

func serve(ctx context.Context, cfg controller.ServiceConfig) error {
	reg, err := loadRegistry(cfg.UnitsFile)
	if err != nil {
		return err
	}
	svc, err := controller.NewService(cfg, reg)
	if err != nil {
		return err
	}

	sessionErr := make(chan error, 1)
	adminErr := make(chan error, 1)
	go func() {
		sessionErr <- svc.Run(ctx)
	}()
	if cfg.AdminListenAddr != "" {
		go func() {
			adminErr <- admin.New(svc, cfg.AdminListenAddr, cfg.CORSOrigins).Run(ctx)
		}()
	}

	select {
	case err := <-sessionErr:
		return err
	case err := <-adminErr:
		if err != nil {
			return err
		}
		return <-sessionErr
	}
}

func newInitCmd() *cobra.Command {
	var (
		kind   string
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := output
			if target == "" {
				target = kind + ".toml"
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s template to %s\n", kind, target)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "units", "template kind: units|controller")
	cmd.Flags().StringVar(&output, "output", "", "output path (defaults to <kind>.toml)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a units or controller config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case "units":
				units, err := config.LoadUnits(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "validated %d units in %s\n", len(units.Units), args[0])
			case "controller":
				cfg, err := loadServiceConfig(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "validated controller %s listening on %s\n", cfg.ControllerID, cfg.ListenAddr)
			default:
				return fmt.Errorf("unknown kind: %s", kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "units", "file kind: units|controller")
	return cmd
}
