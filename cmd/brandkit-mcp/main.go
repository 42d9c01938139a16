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

	"github.com/use-agent/brandkit/models"
)

func main() {
	apiURL := os.Getenv("BRANDKIT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("BRANDKIT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "BRANDKIT_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"brandkit",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	ingestTool := mcp.NewTool("ingest_brand",
		mcp.WithDescription("Build a brand profile for a merchant website: name, logo, hero image, colors, fonts, voice snippets and up to 8 catalog products. Renders the site in a headless browser within a 10 second budget."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The merchant website, e.g. 'example.com' or 'https://shop.example.com'"),
		),
	)
	s.AddTool(ingestTool, handleIngestBrand(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleIngestBrand(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		body, err := json.Marshal(models.BrandRequest{URL: url})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/brand", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-API-Key", apiKey)

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var brandResp models.BrandResponse
		if err := json.Unmarshal(respBody, &brandResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !brandResp.Success || brandResp.Profile == nil {
			errMsg := "ingestion failed"
			if brandResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", brandResp.Error.Code, brandResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		out, err := json.MarshalIndent(brandResp.Profile, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode profile: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}
