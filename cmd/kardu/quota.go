package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khusa71/kardu/internal/database"
	"github.com/khusa71/kardu/internal/quota"
)

func newQuotaCommand() *cobra.Command {
	var userID string

	command := &cobra.Command{
		Use:   "quota",
		Short: "Show monthly upload and page usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("database.Open() > %w", err)
			}
			defer func() { _ = db.Close() }()

			manager := quota.NewManager(quota.NewDBRepository(db))
			record, err := manager.GetQuota(cmd.Context(), userID)
			if err != nil {
				return err
			}

			limits := record.Tier.Limits()
			fmt.Printf("Tier: %s\n", record.Tier)
			fmt.Printf("Uploads this month: %d / %d\n", record.UploadsThisMonth, limits.MonthlyUploads)
			if limits.MonthlyPages > 0 {
				fmt.Printf("Pages this month: %d / %d\n", record.PagesThisMonth, limits.MonthlyPages)
			} else {
				fmt.Printf("Pages this month: %d (no monthly cap)\n", record.PagesThisMonth)
			}
			fmt.Printf("Quota resets: %s\n", manager.NextReset().Format("2006-01-02"))
			return nil
		},
	}

	command.Flags().StringVar(&userID, "user", localUserID, "user id to inspect")

	return command
}
