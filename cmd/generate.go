package cmd

import (
	"fmt"

	"github.com/ridoystarlord/discontented/migrator"
	"github.com/spf13/cobra"
)

var dryRunGenerate bool

func init() {
	generateCmd.Flags().BoolVar(&dryRunGenerate, "dry-run", false, "Preview the SQL that would be generated without writing files")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a migration from the current Contentful content types",
	Long: `Generate a migration file from the content types of the configured space.

The content types are compared to the schema snapshot of the last generated
migration. New content types, fields and link tables are written to a new
timestamped .sql file in the migrations directory, and the snapshot is
replaced. Incompatible field changes abort without writing anything.

Examples:
  dcf generate                    # Write migrations/<timestamp>.sql
  dcf generate --dry-run          # Print the SQL only
`,
	Run: func(cmd *cobra.Command, args []string) {
		svc := &migrator.Service{
			Source:        newManagement(),
			Migrator:      migrator.New(cfg.Naming()),
			SchemaFile:    cfg.SchemaFile,
			MigrationsDir: cfg.MigrationDirectory,
			Logger:        logger,
		}

		if dryRunGenerate {
			res, err := svc.Preview(cmd.Context())
			exitOnError("Generating SQL", err)
			if res.DDL == "" {
				fmt.Println("✅ No changes detected.")
				return
			}
			fmt.Println("\n================ DRY RUN: Migration Preview ================")
			fmt.Println(res.DDL)
			fmt.Println("============================================================")
			fmt.Println("(Dry run only. No files were written.)")
			return
		}

		res, err := svc.Generate(cmd.Context())
		exitOnError("Generating migration", err)
		if res.File == "" {
			fmt.Println("✅ No changes detected.")
			return
		}
		fmt.Println("✅ Migration generated:", res.File)
	},
}
