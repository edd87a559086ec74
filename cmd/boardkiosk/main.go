package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"boardkiosk/internal/application"
	"boardkiosk/internal/config"
	"boardkiosk/internal/overlay"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "boardkiosk",
		Short:        "Kiosk shell for dart board follow pages",
		Long:         `boardkiosk shows one or two board follow pages in dedicated Chrome windows, covers them with an offline notice while the service is unreachable and reloads them once it is back.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newEncodeOverlayCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the board pages and supervise connectivity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(debug)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := config.Load(configPath)
			if err != nil {
				logger.Error("load config", zap.Error(err))
				return err
			}
			logger.Info("configuration loaded",
				zap.String("path", configPath),
				zap.Int("boards", len(cfg.Boards)),
				zap.String("probe_url", cfg.Probe.URL))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.Run(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file (YAML)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable development logging")
	return cmd
}

func newEncodeOverlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode-overlay [file]",
		Short: "Print the Base64 overlay payload for an HTML fragment (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				payload string
				err     error
			)
			if len(args) == 1 {
				payload, err = overlay.LoadFile(args[0])
			} else {
				var data []byte
				data, err = io.ReadAll(cmd.InOrStdin())
				payload = overlay.Encode(string(data))
			}
			if err != nil {
				return err
			}
			if fragment, err := overlay.Decode(payload); err == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "overlay: %q\n", overlay.Summary(fragment))
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload)
			return nil
		},
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
