package cmd

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if .HasAvailableSubCommands}}

Basic Commands:{{range commandsInGroup . "basic"}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}

Advanced Commands:{{range commandsInGroup . "advanced"}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`

func init() {
	cobra.AddTemplateFunc("commandsInGroup", commandsInGroup)
	rootCmd.SetUsageTemplate(usageTemplate)
}

// commandsInGroup returns the available subcommands of c annotated with group, sorted by their "order" annotation.
func commandsInGroup(c *cobra.Command, group string) []*cobra.Command {
	var out []*cobra.Command
	for _, sub := range c.Commands() {
		if sub.IsAvailableCommand() && sub.Annotations["group"] == group {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return order(out[i]) < order(out[j])
	})
	return out
}

func order(c *cobra.Command) int {
	n, err := strconv.Atoi(c.Annotations["order"])
	if err != nil {
		return len(c.Name()) + 1000
	}
	return n
}
