package mcpserver

import (
	"encoding/json"
	"strings"

	"mcpbridge/internal/api"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolDescriptors converts a tool listing into descriptors whose input
// schema is a plain JSON object. A tool whose schema cannot be rendered gets
// an empty object schema.
func ToolDescriptors(tools []mcp.Tool) []api.ToolDescriptor {
	out := make([]api.ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, api.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: inputSchema(t),
		})
	}
	return out
}

// inputSchema round-trips the tool through its own JSON form so raw and
// structured schemas come out the same way.
func inputSchema(t mcp.Tool) map[string]interface{} {
	var wire struct {
		InputSchema map[string]interface{} `json:"inputSchema"`
	}
	data, err := json.Marshal(t)
	if err == nil {
		err = json.Unmarshal(data, &wire)
	}
	if err != nil || wire.InputSchema == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return wire.InputSchema
}

// ResultText joins the text content items of a tool result, one per line.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, c := range result.Content {
		if tc, ok := mcp.AsTextContent(c); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
