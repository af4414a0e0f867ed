package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/toolpane/toolpane/pkg/types"
)

// GetApp returns the title, mode and tools of the served app.
func (c *Client) GetApp() (*types.AppInfo, error) {
	u, _ := c.constructAPIEndpoint("/app")

	var info types.AppInfo
	if err := c.get(u, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) ListTools() ([]types.ToolInfo, error) {
	u, _ := c.constructAPIEndpoint("/tools")

	var tools []types.ToolInfo
	if err := c.get(u, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

func (c *Client) GetTool(id string) (*types.ToolInfo, error) {
	u, _ := c.constructAPIEndpoint("/tools/" + url.PathEscape(id))

	var tool types.ToolInfo
	if err := c.get(u, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// Invoke calls a function of a tool.
// A rejected invocation is not an error: it is reported in the returned response.
func (c *Client) Invoke(toolID, function string, params map[string]any) (*types.InvocationResponse, error) {
	u, _ := c.constructAPIEndpoint("/tools/" + url.PathEscape(toolID) + "/invoke")
	return c.post(u, &types.InvokeRequest{Function: function, Params: params})
}

// InvokeOperation calls the function that a tool's content uses for op, eg- "load" on a table.
func (c *Client) InvokeOperation(toolID string, op types.Operation, params map[string]any) (*types.InvocationResponse, error) {
	u, _ := c.constructAPIEndpoint("/tools/" + url.PathEscape(toolID) + "/ops/" + url.PathEscape(string(op)))
	return c.post(u, &types.OperationRequest{Params: params})
}

func (c *Client) get(u string, out any) error {
	req, err := c.newRequest(http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) post(u string, payload any) (*types.InvocationResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := c.newRequest(http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var out types.InvocationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
