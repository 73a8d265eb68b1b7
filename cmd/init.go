package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initFile string

const sampleConfig = `# dcf configuration. Every key can also be set through a DCF_* environment
# variable, e.g. DCF_CONTENTFUL_MANAGEMENTTOKEN or DCF_DATABASE_URL.
contentful:
  spaceId: your-space-id
  environmentId: master
  deliveryToken: ""
  managementToken: ""

# Falls back to DATABASE_URL when empty.
databaseUrl: ""

# Prefixed to every table name, e.g. cms_ -> cms_blog_posts.
tablePrefix: ""

# Explicit table names per content type id. Mapped names are prefixed but
# not pluralized.
tableMap: {}
#   blogPost: articles

defaultLocalization: en-US
schemaFile: migrations/schema.json
migrationDirectory: migrations
printSqlQueries: false

import:
  concurrency: 16
  pageSize: 1000
  progressInterval: 10s

server:
  addr: ":3001"

# S3-compatible buckets that receive a copy of every asset file.
assetBuckets: []
#  - bucket: cms-assets
#    region: us-east-1
#    endpoint: https://s3.example.com
#    accessKey: ""
#    accessSecret: ""
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new dcf project",
	Long: `Create a sample dcf.yaml and the migrations directory.

Examples:
  dcf init                        # Write dcf.yaml
  dcf init -o config/dcf.yaml     # Write to a custom path`,
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat(initFile); err == nil {
			fmt.Printf("❌ %s already exists!\n", initFile)
			return
		}

		if err := os.WriteFile(initFile, []byte(sampleConfig), 0644); err != nil {
			fmt.Printf("❌ Error creating %s: %v\n", initFile, err)
			return
		}

		if err := os.MkdirAll(cfg.MigrationDirectory, 0755); err != nil {
			fmt.Println("❌ Failed to create migrations directory:", err)
			return
		}

		fmt.Printf("✅ Created %s\n", initFile)
		fmt.Println("📁 Directory:", cfg.MigrationDirectory)
		fmt.Println("📝 Fill in the Contentful space and tokens")
		fmt.Println("🚀 Run 'dcf generate' and 'dcf apply' to create your tables")
	},
}

func init() {
	initCmd.Flags().StringVarP(&initFile, "output", "o", "dcf.yaml", "Config file to create")
}
