package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/ridoystarlord/discontented/generator"
	"github.com/ridoystarlord/discontented/introspect"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the database against the schema snapshot",
	Long: `Check that the database holds every table, column and link index the
schema snapshot expects.

This command will:
- Verify database connectivity
- Introspect the public schema
- Report missing tables, missing columns, unexpected columns and missing
  link table indexes

Examples:
  dcf check                    # Check current state
  dcf check --timeout 30s      # Set custom timeout
`,
	Run: func(cmd *cobra.Command, args []string) {
		drift, err := checkDatabaseSchema(cmd.Context())
		if err != nil {
			fmt.Printf("❌ Schema check failed: %v\n", err)
			os.Exit(1)
		}
		if len(drift) > 0 {
			os.Exit(1)
		}
		fmt.Println("✅ Schema check completed successfully")
	},
}

var checkTimeout time.Duration

func init() {
	checkCmd.Flags().DurationVarP(&checkTimeout, "timeout", "t", 10*time.Second, "Timeout for schema check")
}

func checkDatabaseSchema(ctx context.Context) ([]introspect.Drift, error) {
	snap := loadSnapshot()
	if snap == nil {
		return nil, errors.New("no schema snapshot found, run 'dcf generate' first")
	}
	expected, err := generator.New(cfg.Naming()).Tables(*snap)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	db := connectDB(ctx)
	defer db.Close()

	existing, err := introspect.IntrospectDatabase(ctx, db.Pool())
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database: %w", err)
	}

	drift := introspect.Compare(expected, existing)
	fmt.Printf("📊 Expected %d tables, found %d in database\n", len(expected), len(existing))
	if len(drift) == 0 {
		return nil, nil
	}

	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	fmt.Printf("\n⚠️  %d difference(s):\n", len(drift))
	for _, d := range drift {
		if d.Kind == introspect.ExtraColumn {
			yellow.Printf("  • %s\n", d)
			continue
		}
		red.Printf("  • %s\n", d)
	}
	fmt.Println("\n💡 Run 'dcf status' to look for unapplied migrations.")
	return drift, nil
}
