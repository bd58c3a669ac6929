package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/unibvs/bvs-backend/internal/config"
	"github.com/unibvs/bvs-backend/internal/database"
	"github.com/unibvs/bvs-backend/internal/services"
)

func newMigrateCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.Connect(cfg()); err != nil {
				return err
			}
			if err := database.Migrate(database.DB); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			slog.Info("migration completed")
			return nil
		},
	}
}

func newSeedCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo voter (22/0000) and admin (ADMIN-001) accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.Connect(cfg()); err != nil {
				return err
			}
			if err := database.Migrate(database.DB); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			users, err := services.NewVoterService(database.DB).Seed(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				slog.Info("seeded user", "identification_number", u.IdentificationNumber, "role", u.Role)
			}
			return nil
		},
	}
}
