package agent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleAgentYAML = `
name: simple-agent
model:
  id: gpt-4o
instructions: Answer questions about the weather.
metadata:
  team: platform
  version: 2
tools:
  - type: openapi
    id: WebSearch
    description: Search the web
    options:
      specification: https://example.com/spec.json
      auth:
        type: anonymous
  - kind: azure_ai_search
    name: Docs
`

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromBytes(t *testing.T) {
	def, err := LoadFromBytes([]byte(simpleAgentYAML))
	require.NoError(t, err)

	assert.Equal(t, "simple-agent", def.Name)
	assert.Equal(t, "gpt-4o", def.Model.ID)
	assert.Equal(t, "Answer questions about the weather.", def.EffectiveInstructions())
	assert.Equal(t, map[string]string{"team": "platform", "version": "2"}, def.Metadata)

	require.Len(t, def.Tools, 2)
	assert.Equal(t, "openapi", def.Tools[0].Type)
	assert.Equal(t, "WebSearch", def.Tools[0].ID)
	assert.Equal(t, "azure_ai_search", def.Tools[1].Type)
	assert.Equal(t, "Docs", def.Tools[1].ID)
}

func TestLoadFromBytes_Empty(t *testing.T) {
	for _, src := range []string{"", "   \n", "~", "{}"} {
		_, err := LoadFromBytes([]byte(src))
		assert.ErrorIs(t, err, ErrEmptyDefinition, "input %q", src)
	}
}

func TestLoadFromBytes_NotAMapping(t *testing.T) {
	_, err := LoadFromBytes([]byte("- a\n- b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapping")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestLoadFromBytes_InvalidYAML(t *testing.T) {
	_, err := LoadFromBytes([]byte("name: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing agent YAML")
}

func TestLoadFromFile(t *testing.T) {
	path := writeTestFile(t, "agent.yaml", simpleAgentYAML)
	def, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "simple-agent", def.Name)
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), "agent YAML not found")
}

func TestEffectiveInstructions_Default(t *testing.T) {
	def := &Definition{Name: "a", Model: Model{ID: "m"}}
	assert.Equal(t, DefaultInstructions, def.EffectiveInstructions())
}
