package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/idreaminteractive/strapi/internal/config"
)

var (
	buildDir        string
	buildEnv        string
	buildPublicPath string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the admin panel for deployment",
	Long: `Merge the base admin, installed plugins, and project overrides into
the build cache, then compile the result into a deployable bundle.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(buildDir)
		if err != nil {
			return err
		}

		rt, err := config.DefaultRuntime(buildEnv)
		if err != nil {
			return err
		}
		if buildPublicPath != "" {
			rt.PublicPath = buildPublicPath
		}

		orch, err := newOrchestrator(rt.Mode)
		if err != nil {
			return err
		}

		result, err := orch.BuildOnce(context.Background(), root, rt)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(map[string]interface{}{
				"output":   result.OutputPath,
				"plugins":  result.Plugins,
				"warnings": result.Warnings,
				"duration": result.Duration.String(),
			})
		}

		for _, warning := range result.Warnings {
			PrintWarning(warning)
		}
		PrintSuccess(fmt.Sprintf("Admin panel built in %s (%s)",
			result.Duration.Round(time.Millisecond),
			PrintCount(result.Plugins, "plugin", "plugins")))
		PrintLabelValue("Output", result.OutputPath)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildDir, "dir", "d", "", "Project directory (default: current directory)")
	buildCmd.Flags().StringVar(&buildEnv, "env", config.ModeProduction, "Build mode (development or production)")
	buildCmd.Flags().StringVar(&buildPublicPath, "public-path", "", "Public URL path the bundle is served from")
}
