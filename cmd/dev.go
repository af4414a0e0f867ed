package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toolpane/toolpane/internal/router"
)

var (
	devCmdCwd   string
	devCmdPort  string
	devCmdTitle string
	devCmdWatch bool

	devCmdGenerateToken bool
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Serve every tool in the project as a dashboard",
	Long: "Discovers the tool files of the project and serves them as one dashboard.\n\n" +
		"Tool files are looked up with the patterns of toolpane.config.yaml, or by default with\n" +
		"tools/**/*.tool.{yaml,yml,json} and *.tool.{yaml,yml,json}.\n" +
		"Files that fail to load are reported and skipped. The command fails when no tool is found.\n\n" +
		"The generated entry point is written to .toolpane/entry.yaml on every run.",
	Args: cobra.NoArgs,
	RunE: runDev,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "1",
	},
}

func init() {
	devCmd.Flags().StringVar(&devCmdCwd, "cwd", ".", "project directory to discover tools in")
	devCmd.Flags().StringVar(
		&devCmdPort,
		"port",
		"",
		"port to bind the HTTP server to (overrides env vars TOOLPANE_PORT and PORT)",
	)
	devCmd.Flags().StringVar(&devCmdTitle, "title", "", "dashboard title (overrides the title in toolpane.config.yaml)")
	devCmd.Flags().BoolVar(&devCmdWatch, "watch", false, "rediscover tools when tool files change")
	devCmd.Flags().BoolVar(
		&devCmdGenerateToken,
		"generate-token",
		false,
		"protect the api and mcp endpoints with a generated access token (overrides env var TOOLPANE_ACCESS_TOKEN)",
	)

	rootCmd.AddCommand(devCmd)
}

func runDev(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	token, err := getAccessToken(cmd, devCmdGenerateToken)
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, devCmdCwd, token)
	if err != nil {
		return err
	}
	defer rt.close()

	err = rt.router.RunDashboard(ctx, router.DashboardOptions{
		Dir:   devCmdCwd,
		Title: getTitle(devCmdTitle),
		Port:  getBindPort(devCmdPort),
		Watch: devCmdWatch,
	})
	if errors.Is(err, router.ErrNoToolsFound) {
		return fmt.Errorf("%w\nadd a *.tool.yaml file or run `toolpane init` to create one", err)
	}
	return err
}
