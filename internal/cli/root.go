// Package cli implements barberctl, the operator tool for a barberbook deployment.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"barberbook/internal/app"
	"barberbook/internal/config"
	"barberbook/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "barberctl",
		Short:         "Barbershop booking administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("config", "", "path to config.yaml (default $CONFIG_PATH or "+defaultConfigPath+")")

	cmd.AddCommand(NewSlotsCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewBackupCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewSyncCmd())
	return cmd
}

// env is what every subcommand needs: config, logger and an open store.
type env struct {
	cfg    *config.Config
	logger *zerolog.Logger
	store  app.Store
	closer io.Closer
}

func loadEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// stdout принадлежит выводу команд
	if out := strings.ToLower(strings.TrimSpace(cfg.Logging.Output)); out == "" || out == "stdout" {
		cfg.Logging.Output = "stderr"
	}

	base, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(base, "barberctl")

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, store: store, closer: closer}, nil
}

func (e *env) Close() {
	_ = e.store.Close()
	if e.closer != nil {
		_ = e.closer.Close()
	}
}
