package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/idreaminteractive/strapi/internal/config"
	"github.com/idreaminteractive/strapi/internal/fsops"
	"github.com/idreaminteractive/strapi/internal/layers"
)

var statusDir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the resolved layer stack and plugins",
	Long: `Display the layers that would be merged into the build cache, in
precedence order, along with the installed plugins and which of them
carry project overrides.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(statusDir)
		if err != nil {
			return err
		}

		logger, err := newLogger(config.ModeProduction)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		resolver := layers.NewResolver(fsops.NewRealFS(), logger)
		res, err := resolver.Resolve(root)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(res)
		}

		PrintSection("Layers (lowest precedence first)")
		layerRows := make([][]string, 0, len(res.Layers))
		for _, layer := range res.Layers {
			layerRows = append(layerRows, []string{
				fmt.Sprintf("%d", layer.Rank),
				layer.Kind,
				layer.Name,
				layer.Root,
			})
		}
		PrintTable([]string{"RANK", "KIND", "NAME", "SOURCE"}, layerRows)

		PrintSection("Plugins")
		if len(res.Plugins) == 0 {
			PrintEmptyState("No plugins installed")
		} else {
			pluginRows := make([][]string, 0, len(res.Plugins))
			for _, plugin := range res.Plugins {
				active := "no"
				if plugin.HasAdmin {
					active = "yes"
				}
				overridden := ""
				if plugin.IsOverridden {
					overridden = "yes"
				}
				pluginRows = append(pluginRows, []string{plugin.ShortName, plugin.Name, active, overridden})
			}
			PrintTable([]string{"PLUGIN", "PACKAGE", "ADMIN", "OVERRIDDEN"}, pluginRows)
		}

		fmt.Println()
		PrintInfo(fmt.Sprintf("Merged tree: %s", res.Paths.Cache))
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVarP(&statusDir, "dir", "d", "", "Project directory (default: current directory)")
}
