package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/ridoystarlord/discontented/generator"
	"github.com/ridoystarlord/discontented/schema"
	"github.com/ridoystarlord/discontented/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate content types against table and column rules",
	Long: `Validate content types before generating a migration.

This command checks:
- Content type and field ids (empty, duplicated, malformed arrays and links)
- Field types that have no column mapping
- Table, column and index names (PostgreSQL identifier length, collisions
  between content types and with system columns)

By default the schema snapshot is validated. With --live the content types
are read from the configured space instead.

Examples:
  dcf validate                    # Validate the schema snapshot
  dcf validate --live             # Validate the live content types
  dcf validate --format json      # Output validation results as JSON
`,
	Run: func(cmd *cobra.Command, args []string) {
		result, err := validateSchema(cmd)
		if err != nil {
			fmt.Printf("❌ Schema validation failed: %v\n", err)
			os.Exit(1)
		}
		if !result.Valid {
			os.Exit(1)
		}
	},
}

var (
	validateLive   bool
	validateFormat string
)

func init() {
	validateCmd.Flags().BoolVar(&validateLive, "live", false, "Validate the content types of the configured space")
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
}

func validateSchema(cmd *cobra.Command) (*validator.ValidationResult, error) {
	var snap schema.Snapshot
	if validateLive {
		types, err := newManagement().ContentTypes(cmd.Context())
		if err != nil {
			return nil, fmt.Errorf("failed to fetch content types: %w", err)
		}
		snap.ContentTypes = types
	} else {
		loaded := loadSnapshot()
		if loaded == nil {
			return nil, errors.New("no schema snapshot found, run 'dcf generate' or use --live")
		}
		snap = *loaded
	}

	result := validator.NewSchemaValidator(generator.New(cfg.Naming())).ValidateSnapshot(snap)
	if validateFormat == "json" {
		return result, outputJSON(result)
	}
	outputText(result)
	return result, nil
}

func outputJSON(result *validator.ValidationResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputText(result *validator.ValidationResult) {
	if result.Valid {
		color.Green("✅ Schema validation passed!")
	} else {
		color.Red("❌ Schema validation failed!")
	}

	printIssues("🔴 Errors", result.Errors)
	printIssues("🟡 Warnings", result.Warnings)
	printIssues("🔵 Info", result.Info)

	fmt.Printf("\n📊 Summary:\n")
	fmt.Printf("  • Errors: %d\n", len(result.Errors))
	fmt.Printf("  • Warnings: %d\n", len(result.Warnings))
	fmt.Printf("  • Info: %d\n", len(result.Info))

	if result.Valid {
		fmt.Printf("\n🎉 Your content types are ready for migration generation!\n")
	} else {
		fmt.Printf("\n💡 Fix the errors above before generating migrations.\n")
	}
}

func printIssues(title string, issues []validator.ValidationError) {
	if len(issues) == 0 {
		return
	}
	fmt.Printf("\n%s (%d):\n", title, len(issues))
	for i, issue := range issues {
		fmt.Printf("  %d. ", i+1)
		if issue.ContentType != "" {
			fmt.Printf("[%s]", issue.ContentType)
		}
		if issue.Field != "" {
			fmt.Printf(".%s", issue.Field)
		}
		if issue.Table != "" {
			fmt.Printf(" (table: %s", issue.Table)
			if issue.Column != "" {
				fmt.Printf(", column: %s", issue.Column)
			}
			fmt.Print(")")
		}
		fmt.Printf(": %s\n", issue.Message)
	}
}
