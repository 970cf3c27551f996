package cli

import (
	"fmt"

	"barberbook/internal/app"
	"barberbook/internal/seed"

	"github.com/spf13/cobra"
)

func NewSeedCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "seed [catalog.yaml]",
		Short: "Load businesses, services and professionals from a YAML catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			path := e.cfg.Catalog.SeedPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("catalog path is required (argument or catalog.seed_path)")
			}

			catalog, err := seed.Load(path)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is valid, %d businesses\n", path, len(catalog.Businesses))
				return nil
			}

			redisClient := app.ConnectRedis(cmd.Context(), e.cfg.Redis, e.logger)
			if redisClient != nil {
				defer redisClient.Close()
			}
			sum, err := seed.Apply(cmd.Context(), e.store, catalog, app.SlotCache(e.cfg.Booking, redisClient), e.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d businesses, %d services, %d professionals\n",
				sum.Businesses, sum.Services, sum.Professionals)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")
	return cmd
}
