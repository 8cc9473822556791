// Package mcpserver exposes the indexing pipeline and retrieval engine as
// tools over the line-delimited JSON-RPC server.
package mcpserver

import (
	"encoding/json"

	"github.com/samestrin/dirindex/internal/mcp"
)

// toolIndex indexes one or more directory roots.
var toolIndex = mcp.Tool{
	Name:        "index",
	Description: "Index one or more directories for semantic search. Accepts a single path or a comma-separated list.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"directory_path": {
				"type": "string",
				"description": "Directory to index. Multiple directories may be given comma-separated."
			}
		},
		"required": ["directory_path"]
	}`),
}

var toolSearch = mcp.Tool{
	Name:        "search",
	Description: "Search indexed content by semantic similarity to a natural-language query.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Natural-language query text."
			},
			"directory_path": {
				"type": "string",
				"description": "Restrict results to files under this directory."
			},
			"limit": {
				"type": "integer",
				"description": "Maximum number of results (default 10)."
			}
		},
		"required": ["query"]
	}`),
}

var toolSimilarFiles = mcp.Tool{
	Name:        "similar_files",
	Description: "Find indexed files whose content is most similar to a given file.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {
				"type": "string",
				"description": "Path of the file to compare against."
			},
			"limit": {
				"type": "integer",
				"description": "Maximum number of results (default 10)."
			}
		},
		"required": ["file_path"]
	}`),
}

var toolGetContent = mcp.Tool{
	Name:        "get_content",
	Description: "Return file content, optionally narrowed to a chunk range such as '5' or '1-5'.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {
				"type": "string",
				"description": "Path of the file to read."
			},
			"chunks": {
				"type": "string",
				"description": "Chunk selection: a single 1-indexed ordinal ('5') or an inclusive range ('1-5')."
			}
		},
		"required": ["file_path"]
	}`),
}

var toolServerInfo = mcp.Tool{
	Name:        "server_info",
	Description: "Report server identity, embedding model, and index statistics.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`),
}
