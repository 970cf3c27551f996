package cli

import (
	"errors"
	"fmt"

	"barberbook/internal/database"

	"github.com/spf13/cobra"
)

func NewBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the SQLite database into backup.storage_path and prune old copies",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			db, ok := e.store.(*database.DB)
			if !ok {
				return errors.New("backup supports the sqlite driver only, use pg_dump for postgres")
			}
			svc := database.NewBackupService(db, e.cfg.Backup, e.logger)
			path, err := svc.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			removed := svc.CleanupOldBackups()
			fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s, %d old backups removed\n", path, removed)
			return nil
		},
	}
}
