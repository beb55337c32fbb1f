package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations to the warehouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("etl"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := store.Migrate(cmd.Context(), st.Pool()); err != nil {
			return err
		}

		zap.L().Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
