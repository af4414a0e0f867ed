package cmd

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/toolpane/toolpane/internal/discovery"
)

var (
	listCmdCwd  string
	listCmdJSON bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tools discovered in the project",
	Long: "Runs discovery without serving anything and prints the tools that were found,\n" +
		"followed by the files that were skipped and why.",
	Args: cobra.NoArgs,
	RunE: runList,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "3",
	},
}

func init() {
	listCmd.Flags().StringVar(&listCmdCwd, "cwd", ".", "project directory to discover tools in")
	listCmd.Flags().BoolVar(&listCmdJSON, "json", false, "print the result as JSON")

	rootCmd.AddCommand(listCmd)
}

type listedTool struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Functions []string `json:"functions"`
	FilePath  string   `json:"filePath"`
	Export    string   `json:"export"`
}

type listedDiagnostic struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
}

func runList(cmd *cobra.Command, args []string) error {
	d := discovery.NewDiscoverer(afero.NewOsFs(), logger.Named("discovery"), nil)
	res, err := d.Discover(cmd.Context(), listCmdCwd)
	if err != nil {
		return err
	}

	tools := make([]listedTool, len(res.Tools))
	for i, t := range res.Tools {
		fns := make([]string, 0, len(t.Spec.Functions))
		for name := range t.Spec.Functions {
			fns = append(fns, name)
		}
		sort.Strings(fns)
		tools[i] = listedTool{
			ID:        t.Spec.ID,
			Title:     t.Spec.Title,
			Content:   string(t.Spec.Content.Type),
			Functions: fns,
			FilePath:  t.FilePath,
			Export:    t.Export,
		}
	}
	diags := make([]listedDiagnostic, len(res.Diagnostics))
	for i, dg := range res.Diagnostics {
		diags[i] = listedDiagnostic{
			Severity: string(dg.Severity),
			Code:     dg.Code,
			Path:     dg.Path,
			Message:  dg.Message,
		}
	}

	if listCmdJSON {
		out, err := json.MarshalIndent(map[string]any{"tools": tools, "diagnostics": diags}, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	if len(tools) == 0 {
		cmd.Printf("No tools found (patterns: %s)\n", strings.Join(res.Patterns, ", "))
	}
	for i, t := range tools {
		cmd.Printf("%d. %s - %s [%s]\n", i+1, t.ID, t.Title, t.Content)
		cmd.Printf("   file: %s (export: %s)\n", t.FilePath, t.Export)
		cmd.Printf("   functions: %s\n", strings.Join(t.Functions, ", "))
	}
	if len(diags) > 0 {
		cmd.Println()
		cmd.Println("Skipped:")
		for _, dg := range res.Diagnostics {
			cmd.Printf("  %s\n", dg.String())
		}
	}
	return nil
}
