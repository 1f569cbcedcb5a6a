package foundry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petal-labs/foundryctl/tool"
)

func encodeJSON(t *testing.T, d tool.Descriptor) string {
	t.Helper()
	w, err := encodeTool(d)
	require.NoError(t, err)
	data, err := json.Marshal(w)
	require.NoError(t, err)
	return string(data)
}

func TestEncodeTool(t *testing.T) {
	tests := []struct {
		name string
		in   tool.Descriptor
		want string
	}{
		{
			name: "file search with store",
			in:   tool.FileSearchTool{Name: "docs", VectorStoreID: "vs_1"},
			want: `{"type":"file_search","vector_store_ids":["vs_1"]}`,
		},
		{
			name: "file search without store",
			in:   tool.FileSearchTool{Name: "docs"},
			want: `{"type":"file_search","vector_store_ids":[]}`,
		},
		{
			name: "openapi with connection",
			in:   tool.OpenAPITool{SpecURL: "https://x/spec.json", ConnectionID: "CONN"},
			want: `{"type":"openapi","openapi":{"spec_url":"https://x/spec.json","auth":{"type":"project_connection","project_connection_id":"CONN"}}}`,
		},
		{
			name: "mcp",
			in:   tool.MCPTool{Name: "docs", ServerURL: "https://mcp", AllowedTools: nil},
			want: `{"type":"mcp","server_label":"docs","server_url":"https://mcp","allowed_tools":[]}`,
		},
		{
			name: "code interpreter without limits",
			in:   tool.CodeInterpreterTool{Name: "code"},
			want: `{"type":"code_interpreter"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, encodeJSON(t, tt.in))
		})
	}
}

func TestEncodeTools_Empty(t *testing.T) {
	out, err := encodeTools(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
