package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/toolpane/toolpane/client"
	"github.com/toolpane/toolpane/pkg/types"
)

var (
	callCmdParams      string
	callCmdServer      string
	callCmdAccessToken string
	callCmdOperation   bool
)

var callCmd = &cobra.Command{
	Use:   "call <tool> <function>",
	Short: "Call a function of a tool on a running server",
	Long: "Invokes a function of a tool served by `toolpane dev` or `toolpane exec` and prints the result.\n\n" +
		"With --op, the second argument is a content operation instead (load, run, update or submit)\n" +
		"and the function is the one the tool's content uses for it.\n\n" +
		"eg: toolpane call users load --op --params '{\"page\": 1, \"pageSize\": 20}'",
	Args: cobra.ExactArgs(2),
	RunE: runCall,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "1",
	},
}

func init() {
	callCmd.Flags().StringVar(&callCmdParams, "params", "", "JSON object passed to the function")
	callCmd.Flags().StringVar(
		&callCmdServer,
		"server",
		"",
		"url of the toolpane server (defaults to http://localhost:<TOOLPANE_PORT>)",
	)
	callCmd.Flags().StringVar(&callCmdAccessToken, "access-token", "", "bearer token sent to the server (overrides env var TOOLPANE_ACCESS_TOKEN)")
	callCmd.Flags().BoolVar(&callCmdOperation, "op", false, "treat the second argument as a content operation")

	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	var params map[string]any
	if callCmdParams != "" {
		if err := json.Unmarshal([]byte(callCmdParams), &params); err != nil {
			return fmt.Errorf("invalid --params, must be a JSON object: %w", err)
		}
	}

	server := callCmdServer
	if server == "" {
		server = "http://localhost:" + settings.Port
	}
	token := callCmdAccessToken
	if token == "" {
		token = settings.AccessToken
	}
	c := client.NewClient(server, token, &http.Client{})

	var (
		resp *types.InvocationResponse
		err  error
	)
	if callCmdOperation {
		resp, err = c.InvokeOperation(args[0], types.Operation(args[1]), params)
	} else {
		resp, err = c.Invoke(args[0], args[1], params)
	}
	if err != nil {
		return fmt.Errorf("failed to call '%s' of tool '%s': %w", args[1], args[0], err)
	}

	if !resp.Fulfilled() {
		msg := "unknown error"
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return fmt.Errorf("call rejected: %s", msg)
	}

	out, err := json.MarshalIndent(resp.Value, "", "  ")
	if err != nil {
		// Simply print the raw value if we fail to marshal it
		cmd.Println(resp.Value)
		return nil
	}
	cmd.Println(string(out))
	return nil
}
