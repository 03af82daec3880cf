package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func createListSchemaVersionsTool() mcp.Tool {
	return mcp.NewTool("list_schema_versions",
		mcp.WithDescription("List every schema version known to the document store"),
	)
}

func createGetKeyMapTool() mcp.Tool {
	return mcp.NewTool("get_keymap",
		mcp.WithDescription("Show the source-to-target key mapping stored for a data provider"),
		mcp.WithString("provider_name",
			mcp.Required(),
			mcp.Description("Provider name as submitted with the harmonization request (e.g. AcmeCo)"),
		),
	)
}

func createGetTargetSchemaTool() mcp.Tool {
	return mcp.NewTool("get_target_schema",
		mcp.WithDescription("Show the master schema documents stored under a schema version"),
		mcp.WithString("schema_version",
			mcp.Required(),
			mcp.Description("Schema version (append _err to inspect a failed run)"),
		),
	)
}

func createCheckCompletionTool() mcp.Tool {
	return mcp.NewTool("check_completion",
		mcp.WithDescription("Run one completion query for a target schema version and classify the result"),
		mcp.WithString("target_schema_version",
			mcp.Required(),
			mcp.Description("Target schema version of the harmonization run"),
		),
	)
}
