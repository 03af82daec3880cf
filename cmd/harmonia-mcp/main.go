package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/harmonia/internal/common"
	"github.com/ternarybob/harmonia/internal/services/harmonization"
	"github.com/ternarybob/harmonia/internal/storage"
)

func main() {
	configPath := os.Getenv("HARMONIA_CONFIG")
	if configPath == "" {
		configPath = "harmonia.toml"
	}

	var paths []string
	if _, err := os.Stat(configPath); err == nil {
		paths = append(paths, configPath)
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Stdout carries the MCP protocol, keep logging quiet
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:       arbor_models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
	}).WithLevelFromString("warn")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	storageManager, err := storage.NewStorageManager(ctx, logger, config)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
		os.Exit(1)
	}
	defer storageManager.Close()

	store := storageManager.DocumentStore()
	poller := harmonization.NewStorePoller(store, harmonization.PollOptions{}, logger)

	mcpServer := server.NewMCPServer(
		"harmonia",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createListSchemaVersionsTool(), handleListSchemaVersions(store, logger))
	mcpServer.AddTool(createGetKeyMapTool(), handleGetKeyMap(store, logger))
	mcpServer.AddTool(createGetTargetSchemaTool(), handleGetTargetSchema(store, logger))
	mcpServer.AddTool(createCheckCompletionTool(), handleCheckCompletion(poller, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
