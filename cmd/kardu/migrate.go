package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/khusa71/kardu/internal/database"
	"github.com/khusa71/kardu/schemas"
)

func newMigrateCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
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

			entries, err := schemas.Migrations.ReadDir("migrations")
			if err != nil {
				return fmt.Errorf("schemas.Migrations.ReadDir() > %w", err)
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Name() < entries[j].Name()
			})

			for _, entry := range entries {
				content, err := schemas.Migrations.ReadFile("migrations/" + entry.Name())
				if err != nil {
					return fmt.Errorf("schemas.Migrations.ReadFile(%s) > %w", entry.Name(), err)
				}
				if _, err := db.ExecContext(cmd.Context(), string(content)); err != nil {
					return fmt.Errorf("db.ExecContext(%s) > %w", entry.Name(), err)
				}
				fmt.Printf("applied %s\n", entry.Name())
			}
			return nil
		},
	}

	return command
}
