package cmd

import (
	"fmt"

	"github.com/ridoystarlord/discontented/runner"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Run: func(cmd *cobra.Command, args []string) {
		db := connectDB(cmd.Context())
		defer db.Close()

		applied, pending, err := runner.New(db.Pool(), cfg.MigrationDirectory, logger).Status(cmd.Context())
		exitOnError("Status error", err)

		fmt.Println("✅ Applied migrations:")
		for _, m := range applied {
			fmt.Println("   -", m.Version)
		}

		fmt.Println("\n🕒 Pending migrations:")
		for _, m := range pending {
			fmt.Println("   -", m.Version)
		}
	},
}
