// Package mcptools exposes composition and pattern search as MCP tools.
//
// Each tool is a struct holding its dependencies, a Definition() returning
// the mcp.Tool schema and a Handle() serving calls.
package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// numberArg extracts a number argument; JSON numbers arrive as float64.
func numberArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringsArg accepts either a JSON array of strings or a comma separated string.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	switch v := req.GetArguments()[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		return splitList(v)
	}
	return nil
}
