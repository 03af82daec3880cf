package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
)

// completionChecker runs a single completion query
type completionChecker interface {
	Check(ctx context.Context, targetVersion string) (*models.PollResult, error)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleListSchemaVersions implements the list_schema_versions tool
func handleListSchemaVersions(store interfaces.DocumentStore, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		versions, err := store.ListSchemaVersions(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("ListSchemaVersions failed")
			return textResult(fmt.Sprintf("Store error: %v", err)), nil
		}
		return textResult(formatSchemaVersions(versions)), nil
	}
}

// handleGetKeyMap implements the get_keymap tool
func handleGetKeyMap(store interfaces.DocumentStore, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		provider, err := request.RequireString("provider_name")
		if err != nil || provider == "" {
			return textResult("Error: provider_name parameter is required"), nil
		}

		docs, err := store.FindKeyMapsByProvider(ctx, provider)
		if err != nil {
			logger.Error().Err(err).Str("provider", provider).Msg("FindKeyMapsByProvider failed")
			return textResult(fmt.Sprintf("Store error: %v", err)), nil
		}
		if len(docs) == 0 {
			return textResult(fmt.Sprintf("No keymap data found for %s", provider)), nil
		}
		return textResult(formatKeyMap(provider, docs[0])), nil
	}
}

// handleGetTargetSchema implements the get_target_schema tool
func handleGetTargetSchema(store interfaces.DocumentStore, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		version, err := request.RequireString("schema_version")
		if err != nil || version == "" {
			return textResult("Error: schema_version parameter is required"), nil
		}

		docs, err := store.FindSchemaByVersion(ctx, version)
		if err != nil {
			logger.Error().Err(err).Str("version", version).Msg("FindSchemaByVersion failed")
			return textResult(fmt.Sprintf("Store error: %v", err)), nil
		}
		if len(docs) == 0 {
			return textResult(fmt.Sprintf("No data found for %s", version)), nil
		}
		return textResult(formatSchemaDocuments(version, docs)), nil
	}
}

// handleCheckCompletion implements the check_completion tool
func handleCheckCompletion(checker completionChecker, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("target_schema_version")
		if err != nil || target == "" {
			return textResult("Error: target_schema_version parameter is required"), nil
		}

		result, err := checker.Check(ctx, target)
		if err != nil {
			logger.Error().Err(err).Str("target", target).Msg("Completion check failed")
			return textResult(fmt.Sprintf("Store error: %v", err)), nil
		}
		return textResult(formatCompletion(target, result)), nil
	}
}
