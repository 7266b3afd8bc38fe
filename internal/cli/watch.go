package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/idreaminteractive/strapi/internal/config"
)

var (
	watchDir        string
	watchEnv        string
	watchHost       string
	watchPort       int
	watchPublicPath string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a dev session with live override syncing",
	Long: `Build the admin panel, serve it locally, and keep the build cache in
sync with edits to project and extension overrides until interrupted.

Deleting an override restores the underlying plugin or base file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(watchDir)
		if err != nil {
			return err
		}

		rt, err := config.DefaultRuntime(watchEnv)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			rt.Host = watchHost
		}
		if cmd.Flags().Changed("port") {
			rt.Port = watchPort
		}
		if watchPublicPath != "" {
			rt.PublicPath = watchPublicPath
		}

		orch, err := newOrchestrator(rt.Mode)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		PrintInfo(fmt.Sprintf("Serving admin panel on http://%s:%d%s", rt.Host, rt.Port, rt.PublicPath))
		PrintInfo("Press Ctrl+C to stop")

		if err := orch.Watch(ctx, root, rt); err != nil {
			return err
		}
		PrintSuccess("Dev session stopped")
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchDir, "dir", "d", "", "Project directory (default: current directory)")
	watchCmd.Flags().StringVar(&watchEnv, "env", config.ModeDevelopment, "Build mode (development or production)")
	watchCmd.Flags().StringVar(&watchHost, "host", "", "Dev server host")
	watchCmd.Flags().IntVar(&watchPort, "port", 0, "Dev server port")
	watchCmd.Flags().StringVar(&watchPublicPath, "public-path", "", "Public URL path the bundle is served from")
}
