package cli

import (
	"fmt"

	"barberbook/internal/export"
	"barberbook/internal/models"
	"barberbook/internal/scheduling"

	"github.com/spf13/cobra"
)

func NewExportCmd() *cobra.Command {
	var (
		filter models.AppointmentFilter
		dir    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write appointments of a period to an Excel file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter.BusinessID == "" {
				return fmt.Errorf("--business is required")
			}
			from, err := scheduling.ParseDate(filter.DateFrom)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			to, err := scheduling.ParseDate(filter.DateTo)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if to.Before(from) {
				return fmt.Errorf("--to is before --from")
			}

			e, err := loadEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			appts, err := e.store.ListAppointments(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list appointments: %w", err)
			}
			if dir == "" {
				dir = e.cfg.Exports.Path
			}
			if dir == "" {
				dir = "exports"
			}

			path, err := export.Save(dir, appts, from, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d appointments written to %s\n", len(appts), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.BusinessID, "business", "", "business id")
	cmd.Flags().StringVar(&filter.ProfessionalID, "professional", "", "only this professional")
	cmd.Flags().StringVar(&filter.Status, "status", "", "only this status")
	cmd.Flags().StringVar(&filter.DateFrom, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&filter.DateTo, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default exports.path)")
	return cmd
}
