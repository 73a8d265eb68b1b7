package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ridoystarlord/discontented/database"
	"github.com/ridoystarlord/discontented/generator"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database connectivity",
	Long: `Check if the database is accessible and responsive.

Examples:
  dcf health                    # Check the configured database
  dcf health --timeout 10s      # Set custom timeout
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := checkDatabaseHealth(cmd.Context()); err != nil {
			fmt.Printf("❌ Database health check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Database is healthy and accessible")
	},
}

var healthTimeout time.Duration

func init() {
	healthCmd.Flags().DurationVarP(&healthTimeout, "timeout", "t", 5*time.Second, "Timeout for health check")
}

func checkDatabaseHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var exists bool
	if err := db.Pool().QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, generator.HistoryTable).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check %s table: %w", generator.HistoryTable, err)
	}
	if !exists {
		fmt.Printf("⚠️  Database is accessible but %s table not found\n", generator.HistoryTable)
		fmt.Println("   Run 'dcf apply' to set up the migration tracking table")
		return nil
	}

	var count int
	if err := db.Pool().QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", generator.HistoryTable)).Scan(&count); err != nil {
		return fmt.Errorf("failed to count migrations: %w", err)
	}
	fmt.Printf("📊 Found %d applied migrations\n", count)
	return nil
}
