package cmd

import (
	"fmt"

	"github.com/ridoystarlord/discontented/runner"
	"github.com/spf13/cobra"
)

var dryRunApply bool

var applyCmd = &cobra.Command{
	Use:     "apply",
	Aliases: []string{"migrate"},
	Short:   "Apply pending migrations",
	Long: `Apply every migration file that is not recorded in the history table.

Each file runs in its own transaction together with its history row, in
filename order.

Examples:
  dcf apply
  dcf apply --dry-run             # Print pending migrations and their SQL
`,
	Run: func(cmd *cobra.Command, args []string) {
		db := connectDB(cmd.Context())
		defer db.Close()
		r := runner.New(db.Pool(), cfg.MigrationDirectory, logger)

		if dryRunApply {
			pending, sql, err := r.Preview(cmd.Context())
			exitOnError("Dry run failed", err)
			if len(pending) == 0 {
				fmt.Println("✅ No pending migrations.")
				return
			}
			fmt.Println("\n================ DRY RUN: Pending Migrations ================")
			for _, m := range pending {
				fmt.Printf("-- %s\n%s\n\n", m.Version, sql[m.Version])
			}
			fmt.Println("=============================================================")
			fmt.Println("(Dry run only. No migrations were applied.)")
			return
		}

		applied, err := r.Apply(cmd.Context())
		exitOnError("Migration failed", err)
		if len(applied) == 0 {
			fmt.Println("✅ No pending migrations.")
			return
		}
		for _, v := range applied {
			fmt.Println("✅ Applied:", v)
		}
	},
}

func init() {
	applyCmd.Flags().BoolVar(&dryRunApply, "dry-run", false, "Preview the SQL that would be executed without applying migrations")
}
