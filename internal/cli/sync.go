package cli

import (
	"errors"
	"fmt"
	"sort"

	"barberbook/internal/app"
	"barberbook/internal/models"
	"barberbook/internal/worker"

	"github.com/spf13/cobra"
)

func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and rebuild the Google Sheets mirror",
	}
	cmd.AddCommand(newSyncStatusCmd(), newRequeueCmd(), newResyncCmd())
	return cmd
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync queue depth per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			counts, err := e.store.CountSyncTasks(cmd.Context())
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "sync queue is empty")
				return nil
			}
			statuses := make([]string, 0, len(counts))
			for s := range counts {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d\n", s, counts[s])
			}
			return nil
		},
	}
}

func newRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue",
		Short: "Move failed sync tasks back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.store.RequeueFailedSyncTasks(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d failed tasks requeued\n", n)
			return nil
		},
	}
}

func newResyncCmd() *cobra.Command {
	var filter models.AppointmentFilter
	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Rewrite the Appointments sheet from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter.BusinessID == "" {
				return errors.New("--business is required")
			}
			e, err := loadEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			sheets := app.ConnectSheets(cmd.Context(), e.cfg.Google, e.logger)
			if sheets == nil {
				return errors.New("google sheets is not configured or unreachable")
			}
			n, err := worker.Resync(cmd.Context(), e.store, sheets, filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d appointments written to the sheet\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.BusinessID, "business", "", "business id")
	cmd.Flags().StringVar(&filter.DateFrom, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&filter.DateTo, "to", "", "last date, YYYY-MM-DD")
	return cmd
}
