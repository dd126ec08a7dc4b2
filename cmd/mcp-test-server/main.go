// Command mcp-test-server runs a simple MCP server for exercising the
// MCP instrument. Provides "lookup" and "get_time" tools.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// answers holds canned lookup responses; anything else gets a miss reply.
var answers = map[string]string{
	"capital of france": "Paris",
	"capital of japan":  "Tokyo",
	"speed of light":    "299792458 m/s",
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "central-test-mcp", Version: "v1.0.0"},
		nil,
	)

	type LookupInput struct {
		Query string `json:"query" jsonschema_description:"The question to look up"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "lookup",
		Description: "Answers factual lookup queries",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input LookupInput) (*mcp.CallToolResult, struct{}, error) {
		key := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(input.Query), "?"))
		answer, ok := answers[key]
		if !ok {
			answer = fmt.Sprintf("No entry for %q", input.Query)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: answer}},
		}, struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_time",
		Description: "Returns the current UTC time",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Current time: %s", time.Now().UTC().Format(time.RFC3339))},
			},
		}, struct{}{}, nil
	})

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)

	httpMux := http.NewServeMux()
	httpMux.Handle("/mcp", handler)
	httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	log.Printf("MCP test server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, httpMux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
