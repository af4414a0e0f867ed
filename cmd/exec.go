package cmd

import (
	"github.com/spf13/cobra"
	"github.com/toolpane/toolpane/internal/router"
)

var (
	execCmdPort   string
	execCmdTitle  string
	execCmdDryRun bool

	execCmdGenerateToken bool
)

var execCmd = &cobra.Command{
	Use:   "exec <file>",
	Short: "Serve a single file",
	Long: "Serves one file on its own.\n\n" +
		"If the file exports an aggregator (a document with a tools list), it is served as-is.\n" +
		"Otherwise the tool specs it exports are served in focus mode.\n" +
		"A file with neither is run as a program, eg- a .go, .py, .js or .sh server,\n" +
		"with the port, title and mode passed in PORT, TOOLPANE_TITLE and TOOLPANE_MODE.",
	Args: cobra.ExactArgs(1),
	RunE: runExec,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "2",
	},
}

func init() {
	execCmd.Flags().StringVar(
		&execCmdPort,
		"port",
		"",
		"port to bind the HTTP server to (overrides env vars TOOLPANE_PORT and PORT)",
	)
	execCmd.Flags().StringVar(&execCmdTitle, "title", "", "title (defaults to the title of the first tool)")
	execCmd.Flags().BoolVar(&execCmdDryRun, "dry-run", false, "print how the file would be served and exit")
	execCmd.Flags().BoolVar(
		&execCmdGenerateToken,
		"generate-token",
		false,
		"protect the api and mcp endpoints with a generated access token (overrides env var TOOLPANE_ACCESS_TOKEN)",
	)

	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	var err error
	token := settings.AccessToken
	if !execCmdDryRun {
		if token, err = getAccessToken(cmd, execCmdGenerateToken); err != nil {
			return err
		}
	}
	rt, err := newRuntime(ctx, ".", token)
	if err != nil {
		return err
	}
	defer rt.close()

	title := getTitle(execCmdTitle)
	if execCmdDryRun {
		d, err := rt.router.Classify(args[0], title)
		if err != nil {
			return err
		}
		printDecision(cmd, d)
		return nil
	}

	port := getBindPort(execCmdPort)
	return rt.router.RunFocus(ctx, router.FocusOptions{File: args[0], Title: title, Port: port})
}

func printDecision(cmd *cobra.Command, d *router.Decision) {
	cmd.Printf("%s: %s\n", d.Path, d.Outcome)
	if d.Reason != nil {
		cmd.Printf("  reason: %v\n", d.Reason)
	}
	if d.App == nil {
		return
	}
	cmd.Printf("  title: %s\n  mode: %s\n", d.App.Title(), d.App.Mode())
	for _, t := range d.App.Tools() {
		cmd.Printf("  - %s (%s)\n", t.Spec.ID, t.Spec.Content.Type)
	}
}
