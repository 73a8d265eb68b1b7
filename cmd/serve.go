package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ridoystarlord/discontented/webhook"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook and push server",
	Long: `Serve the Contentful webhook endpoint and the push endpoint.

Routes:
  GET   /          service info
  POST  /webhook   entry events (topic in the X-Contentful-Topic header)
  PATCH /push      write a row back to its entry

Examples:
  dcf serve
  dcf serve --addr :8080
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db := connectDB(ctx)
		defer db.Close()

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		srv := webhook.NewServer(newPullService(ctx, db), newPushService(db), cfg.Contentful.SpaceID, logger)
		fmt.Println("🚀 Listening on", addr)
		exitOnError("Server failed", srv.ListenAndServe(ctx, addr))
		fmt.Println("👋 Server stopped")
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :3001)")
}
