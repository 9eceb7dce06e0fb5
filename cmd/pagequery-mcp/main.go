// pagequery-mcp is a stdio MCP server that forwards tool calls to a
// running pagequery API, letting agent clients run extraction pipelines
// without speaking HTTP themselves.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// queryRequest mirrors the pagequery API request model.
type queryRequest struct {
	URL      string          `json:"url"`
	Method   string          `json:"method,omitempty"`
	PostData string          `json:"post_data,omitempty"`
	Render   bool            `json:"render,omitempty"`
	Steps    json.RawMessage `json:"steps"`
}

// queryResponse mirrors the pagequery API response model.
type queryResponse struct {
	Success bool                `json:"success"`
	Records []map[string]string `json:"records"`
	Count   int                 `json:"count"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("PAGEQUERY_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PAGEQUERY_API_KEY")

	s := server.NewMCPServer(
		"pagequery",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	runQueryTool := mcp.NewTool("run_query",
		mcp.WithDescription("Run a declarative extraction pipeline against a web page and return structured records. Steps support go, waitFor, groupBy, select and eval."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The starting URL of the pipeline"),
		),
		mcp.WithString("steps",
			mcp.Required(),
			mcp.Description(`JSON array of pipeline steps, e.g. [{"type":"groupBy","selector":"body > div"},{"type":"select","fields":{"title":{"selector":"p"}}}]`),
		),
		mcp.WithBoolean("render",
			mcp.Description("Render the page in a headless browser before extraction (needed for JavaScript-heavy pages)"),
		),
	)
	s.AddTool(runQueryTool, handleRunQuery(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleRunQuery(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		steps, err := request.RequireString("steps")
		if err != nil {
			return mcp.NewToolResultError("steps is required"), nil
		}
		if !json.Valid([]byte(steps)) {
			return mcp.NewToolResultError("steps must be a JSON array"), nil
		}

		reqBody := queryRequest{
			URL:    url,
			Render: request.GetBool("render", false),
			Steps:  json.RawMessage(steps),
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/query", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var queryResp queryResponse
		if err := json.Unmarshal(respBody, &queryResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !queryResp.Success {
			errMsg := "query failed"
			if queryResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", queryResp.Error.Code, queryResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		out, err := json.MarshalIndent(queryResp.Records, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to render records: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%d records\n%s", queryResp.Count, out)), nil
	}
}
