package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/slidegen/internal/common"
	api "github.com/ternarybob/slidegen/internal/services/mcp"
)

func main() {
	var configFiles []string
	if path := os.Getenv("SLIDEGEN_CONFIG"); path != "" {
		configFiles = append(configFiles, path)
	} else if _, err := os.Stat("slidegen.toml"); err == nil {
		configFiles = append(configFiles, "slidegen.toml")
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP stream, keep logging quiet
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:       arbor_models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
	}).WithLevelFromString("warn")

	baseURL := os.Getenv("SLIDEGEN_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
	}
	client := api.NewClient(baseURL, config.Auth.APIKey, 30*time.Second)

	mcpServer := newMCPServer(client, logger)

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}

func newMCPServer(client *api.Client, logger arbor.ILogger) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"slidegen",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createGenerateOutlineTool(), handleGenerateOutline(client, logger))
	mcpServer.AddTool(createGenerateImageTool(), handleGenerateImage(client, logger))
	mcpServer.AddTool(createGenerateDeckTool(), handleGenerateDeck(client, logger))
	mcpServer.AddTool(createJobStatusTool(), handleJobStatus(client, logger))
	mcpServer.AddTool(createListJobsTool(), handleListJobs(client, logger))

	return mcpServer
}
