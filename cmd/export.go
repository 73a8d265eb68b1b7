package cmd

import (
	"fmt"

	"github.com/ridoystarlord/discontented/loader"
	"github.com/spf13/cobra"
)

var exportFile string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export content types, entries, assets and locales to a file",
	Long: `Export the latest state of the space to a JSON or YAML file. The file
can be imported later with 'dcf import --from'.

Examples:
  dcf export                      # Write store.json
  dcf export -o backup.yaml
`,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := newManagement().FetchStore(cmd.Context())
		exitOnError("Exporting space", err)

		exitOnError("Writing export", loader.SaveStore(exportFile, *store))
		fmt.Printf("✅ Exported %d content types, %d entries, %d assets to %s\n",
			len(store.ContentTypes), len(store.Entries), len(store.Assets), exportFile)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFile, "output", "o", "store.json", "Export file (.json, .yaml)")
}
