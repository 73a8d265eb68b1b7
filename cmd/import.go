package cmd

import (
	"context"
	"fmt"

	"github.com/ridoystarlord/discontented/database"
	"github.com/ridoystarlord/discontented/loader"
	"github.com/ridoystarlord/discontented/pull"
	"github.com/spf13/cobra"
)

var (
	dryRunImport bool
	importFrom   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import all entries into the database",
	Long: `Import every entry of the space into the database.

Published versions come from the delivery API, unpublished entries are
stored as drafts. Asset files are copied to the configured buckets
afterwards.

Examples:
  dcf import                      # Full import
  dcf import --dry-run            # Print the SQL only
  dcf import --from store.json    # Import an export file
  dcf import entries 5KsDBWseXY6QegucYAoacS
  dcf import assets               # Copy every asset file to the buckets
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db := importDB(ctx, dryRunImport)
		if db != nil {
			defer db.Close()
		}

		var (
			result *pull.Result
			err    error
		)
		if importFrom != "" {
			store, lerr := loader.LoadStore(importFrom)
			exitOnError("Loading export", lerr)
			svc := &pull.Service{
				Naming:   cfg.Naming(),
				Snapshot: loadSnapshot(),
				Options:  importOptions(),
				Logger:   logger,
			}
			if db != nil {
				svc.DB = db
			}
			if up := newUploader(ctx); up != nil {
				svc.Assets = up
			}
			result, err = svc.ImportStore(ctx, store, dryRunImport)
		} else {
			result, err = newPullService(ctx, db).ImportAll(ctx, dryRunImport)
		}
		exitOnError("Import failed", err)
		printImport(result, dryRunImport)
	},
}

var importEntriesCmd = &cobra.Command{
	Use:   "entries <id>...",
	Short: "Import the latest version of specific entries",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db := importDB(ctx, dryRunImport)
		if db != nil {
			defer db.Close()
		}

		result, err := newPullService(ctx, db).ImportEntries(ctx, args, dryRunImport)
		exitOnError("Import failed", err)
		printImport(result, dryRunImport)
	},
}

var importAssetsCmd = &cobra.Command{
	Use:   "assets [id]...",
	Short: "Copy asset files to the configured buckets",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		n, err := newPullService(ctx, nil).ImportAssets(ctx, args)
		exitOnError("Asset import failed", err)
		fmt.Printf("✅ Transferred %d asset(s)\n", n)
	},
}

func init() {
	importCmd.PersistentFlags().BoolVar(&dryRunImport, "dry-run", false, "Print the SQL that would be executed without touching the database")
	importCmd.Flags().StringVar(&importFrom, "from", "", "Import an export file instead of the live space")

	importCmd.AddCommand(importEntriesCmd)
	importCmd.AddCommand(importAssetsCmd)
}

func importDB(ctx context.Context, dryRun bool) *database.Gateway {
	if dryRun {
		return nil
	}
	return connectDB(ctx)
}

func printImport(result *pull.Result, dryRun bool) {
	if dryRun {
		fmt.Println("\n================ DRY RUN: Import Preview ================")
		for _, stmt := range result.Statements {
			fmt.Println(stmt)
		}
		fmt.Println("=========================================================")
		fmt.Printf("(Dry run only. %d entries, %d statements, nothing was written.)\n", result.Entries, len(result.Statements))
		return
	}
	fmt.Printf("✅ Imported %d entries in %d statements\n", result.Entries, len(result.Statements))
	if result.Assets > 0 {
		fmt.Printf("🖼️  Transferred %d asset(s)\n", result.Assets)
	}
}
