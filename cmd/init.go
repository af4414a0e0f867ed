package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/toolpane/toolpane/internal/config"
)

var initCmdForce bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a starter project",
	Long: "Writes a toolpane.config.yaml and an example tool into dir (default: the current directory).\n" +
		"Existing files are left untouched unless --force is given.",
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "4",
	},
}

func init() {
	initCmd.Flags().BoolVar(&initCmdForce, "force", false, "overwrite existing files")

	rootCmd.AddCommand(initCmd)
}

const starterConfig = `# Glob patterns, relative to this file, that select tool files.
tools:
  - tools/**/*.tool.yaml
title: My tools
`

const starterTool = `id: hello
title: Hello
description: Greets whoever is asking.
inputs:
  name:
    type: string
    label: Name
content:
  type: action
  handler: greet
  label: Say hello
functions:
  greet:
    script: |
      echo "{\"message\": \"hello ${USER:-there}\"}"
`

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	written, err := scaffold(afero.NewOsFs(), dir, initCmdForce)
	if err != nil {
		return err
	}
	for _, p := range written {
		cmd.Printf("created %s\n", p)
	}
	cmd.Println("\nrun `toolpane dev` to serve your tools")
	return nil
}

// scaffold writes the starter files into dir and returns the paths it wrote.
func scaffold(fsys afero.Fs, dir string, force bool) ([]string, error) {
	files := []struct {
		path    string
		content string
	}{
		{filepath.Join(dir, config.FileName), starterConfig},
		{filepath.Join(dir, "tools", "hello.tool.yaml"), starterTool},
	}

	var written []string
	for _, f := range files {
		exists, err := afero.Exists(fsys, f.path)
		if err != nil {
			return written, err
		}
		if exists && !force {
			return written, fmt.Errorf("%s already exists, use --force to overwrite it", f.path)
		}
		if err := fsys.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return written, err
		}
		if err := afero.WriteFile(fsys, f.path, []byte(f.content), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		written = append(written, f.path)
	}
	return written, nil
}
