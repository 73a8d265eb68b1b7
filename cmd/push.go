package cmd

import (
	"fmt"

	"github.com/ridoystarlord/discontented/push"
	"github.com/spf13/cobra"
)

var pushVersion int

var pushCmd = &cobra.Command{
	Use:   "push <table> <cfid>",
	Short: "Write a database row back to its Contentful entry",
	Long: `Rebuild an entry's default-locale fields from its row and link tables and
update the entry through the management API.

Examples:
  dcf push blog_posts 5KsDBWseXY6QegucYAoacS
  dcf push blog_posts 5KsDBWseXY6QegucYAoacS --version 7
`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		db := connectDB(cmd.Context())
		defer db.Close()

		entry, err := newPushService(db).Push(cmd.Context(), push.Update{
			TableName: args[0],
			Cfid:      args[1],
			CfVersion: push.Version(pushVersion),
		})
		exitOnError("Push failed", err)
		fmt.Printf("✅ Pushed %s, now at version %d\n", entry.Sys.ID, entry.Sys.Version)
	},
}

func init() {
	pushCmd.Flags().IntVar(&pushVersion, "version", 0, "Entry version the row was read at (default: the entry's current version)")
}
