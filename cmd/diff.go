package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/discontented/diff"
	"github.com/ridoystarlord/discontented/schema"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show differences between the schema snapshot and Contentful",
	Long: `Show the schema changes the next 'dcf generate' would migrate.

The content types of the configured space are compared to the schema
snapshot. Nothing is written.

Examples:
  dcf diff
`,
	Run: func(cmd *cobra.Command, args []string) {
		old := loadSnapshot()

		types, err := newManagement().ContentTypes(cmd.Context())
		exitOnError("Fetching content types", err)

		operations, err := diff.DiffSchemas(old, schema.Snapshot{ContentTypes: types})
		exitOnError("Comparing schemas", err)

		if len(operations) == 0 {
			fmt.Println("✅ No differences found between snapshot and Contentful")
			return
		}
		showDiff(operations)
	},
}

func showDiff(operations []diff.Operation) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	cyan := color.New(color.FgCyan)

	fmt.Println("🌳 Schema Changes")
	fmt.Println(strings.Repeat("=", 50))

	for _, op := range operations {
		ct := op.ContentType
		switch op.Type {
		case diff.CreateHistoryTable:
			green.Println("  ➕ CREATE migration history table")
		case diff.CreateTable:
			green.Printf("  ➕ CREATE content type %s (%s)\n", ct.Name, ct.Sys.ID)
			for _, f := range ct.Fields {
				cyan.Printf("      %s: %s\n", f.ID, fieldType(f))
			}
		case diff.AddColumns:
			for _, f := range op.Fields {
				green.Printf("  ➕ ADD field %s.%s: %s\n", ct.Sys.ID, f.ID, fieldType(f))
			}
		case diff.CreateLinkTable:
			green.Printf("  ➕ CREATE link table for %s.%s\n", ct.Sys.ID, op.Field.ID)
		case diff.AddLinkOrder:
			yellow.Printf("  🔄 ADD order column to link table %s.%s\n", ct.Sys.ID, op.Field.ID)
		case diff.CreateLinkUniqueIndex:
			yellow.Printf("  🔄 ADD unique index to link table %s.%s\n", ct.Sys.ID, op.Field.ID)
		case diff.WidenColumn:
			yellow.Printf("  🔄 WIDEN field %s.%s to %s\n", ct.Sys.ID, op.Field.ID, fieldType(*op.Field))
		}
	}

	fmt.Printf("\n📊 %d operation(s)\n", len(operations))
}

func fieldType(f schema.Field) string {
	t := string(f.Type)
	if f.Type == schema.Link {
		t += "<" + string(f.LinkType) + ">"
	}
	if f.Items != nil {
		t += "<" + string(f.Items.Type)
		if f.Items.LinkType != "" {
			t += "<" + string(f.Items.LinkType) + ">"
		}
		t += ">"
	}
	return t
}
