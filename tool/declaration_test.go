package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDeclaration_UnmarshalYAML(t *testing.T) {
	src := `
- type: openapi
  id: WebSearch
  description: Search the web
  options:
    specification: https://example.com/spec.json
- kind: mcp
  name: Docs
  options:
    server_url: https://mcp.example.com
    allowed_tools: [search]
- type: code_interpreter
  kind: ignored
  id: Code
  name: ignored
`
	var decls []Declaration
	require.NoError(t, yaml.Unmarshal([]byte(src), &decls))
	require.Len(t, decls, 3)

	assert.Equal(t, "openapi", decls[0].Type)
	assert.Equal(t, "WebSearch", decls[0].ID)
	assert.Equal(t, "https://example.com/spec.json", decls[0].Options["specification"])

	assert.Equal(t, "mcp", decls[1].Type)
	assert.Equal(t, "Docs", decls[1].ID)
	assert.Equal(t, []any{"search"}, decls[1].Options["allowed_tools"])

	assert.Equal(t, "code_interpreter", decls[2].Type)
	assert.Equal(t, "Code", decls[2].ID)
	assert.NotNil(t, decls[2].Options)
	assert.Empty(t, decls[2].Options)
}

func TestDeclarationFromMap(t *testing.T) {
	tests := []struct {
		name     string
		in       map[string]any
		wantType string
		wantID   string
	}{
		{"primary fields", map[string]any{"type": "mcp", "id": "a"}, "mcp", "a"},
		{"legacy aliases", map[string]any{"kind": "mcp", "name": "a"}, "mcp", "a"},
		{"primary wins", map[string]any{"type": "mcp", "kind": "openapi", "id": "a", "name": "b"}, "mcp", "a"},
		{"empty primary falls back", map[string]any{"type": "", "kind": "openapi"}, "openapi", ""},
		{"nothing", map[string]any{}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DeclarationFromMap(tt.in)
			assert.Equal(t, tt.wantType, d.Type)
			assert.Equal(t, tt.wantID, d.ID)
			assert.NotNil(t, d.Options)
		})
	}
}

func TestDeclarationsFromMaps_MatchesBuildScenario(t *testing.T) {
	decls := DeclarationsFromMaps([]map[string]any{
		{
			"type": "azure_ai_search",
			"id":   "MySearch",
			"options": map[string]any{
				"connection_id": "CONN_1",
				"index_name":    "index-1",
			},
		},
	})
	tools, err := Build(decls, nil)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, SearchTool{Name: "MySearch", ConnectionID: "CONN_1", IndexName: "index-1"}, tools[0])
}
