package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after merging the config file, DCF_* environment
variables and defaults. Tokens and secrets are masked.

Examples:
  dcf config
  DCF_TABLEPREFIX=cms_ dcf config
`,
	Run: func(cmd *cobra.Command, args []string) {
		out, err := cfg.Redacted().YAML()
		exitOnError("Rendering config", err)
		if cfg.File != "" {
			fmt.Printf("# %s\n", cfg.File)
		}
		fmt.Print(string(out))
	},
}
