package cli

import (
	"context"
	"fmt"
	"strings"

	"barberbook/internal/client"
	"barberbook/internal/service"

	"github.com/spf13/cobra"
)

func NewSlotsCmd() *cobra.Command {
	var (
		req       service.AvailabilityRequest
		apiURL    string
		apiKey    string
		keyHeader string
	)
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print free start times for a professional, service and date",
		Long: "Print free start times. Reads the configured store directly, or asks a " +
			"running API when --api-url is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				slots []string
				err   error
			)
			if apiURL != "" {
				c := client.New(apiURL, apiKey).WithKeyHeader(keyHeader)
				slots, err = c.GetAvailability(cmd.Context(), req)
			} else {
				slots, err = localSlots(cmd, req)
			}
			if err != nil {
				return err
			}
			if len(slots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no free slots")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(slots, " "))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.BusinessID, "business", "", "business id")
	cmd.Flags().StringVar(&req.ProfessionalID, "professional", "", "professional id")
	cmd.Flags().StringVar(&req.ServiceID, "service", "", "service id")
	cmd.Flags().StringVar(&req.Date, "date", "", "date, YYYY-MM-DD")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "base URL of a running API, e.g. http://localhost:8080")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for --api-url")
	cmd.Flags().StringVar(&keyHeader, "api-key-header", client.DefaultKeyHeader, "header carrying --api-key")
	return cmd
}

func localSlots(cmd *cobra.Command, req service.AvailabilityRequest) ([]string, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := loadEnv(ctx, cmd)
	if err != nil {
		return nil, err
	}
	defer e.Close()

	opts := service.OptionsFromConfig(e.cfg)
	catalog := service.NewCatalogService(e.store, opts, e.logger)
	availability := service.NewAvailabilityService(e.store, catalog, nil, opts, e.logger)
	return availability.GetAvailability(ctx, req)
}
