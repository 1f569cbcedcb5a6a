package tool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	warnings []Warning
	builds   []BuildObservation
}

func (r *recordingObserver) ObserveWarning(w Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

func (r *recordingObserver) ObserveBuild(o BuildObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builds = append(r.builds, o)
}

func (r *recordingObserver) codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.warnings))
	for _, w := range r.warnings {
		out = append(out, w.Code)
	}
	return out
}

func observe(t *testing.T) *recordingObserver {
	t.Helper()
	rec := &recordingObserver{}
	SetObserver(rec)
	t.Cleanup(func() { SetObserver(nil) })
	return rec
}

func decl(typ, id string, options map[string]any) Declaration {
	if options == nil {
		options = map[string]any{}
	}
	return Declaration{Type: typ, ID: id, Options: options}
}

func TestBuild_EmptyInput(t *testing.T) {
	rec := observe(t)

	tools, err := Build(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, tools)
	assert.Empty(t, tools)

	tools, err = Build([]Declaration{}, nil)
	require.NoError(t, err)
	assert.Empty(t, tools)
	assert.Empty(t, rec.warnings)
}

func TestBuild_OpenAPIWithSpecification(t *testing.T) {
	tools, err := Build([]Declaration{
		decl("openapi", "WebSearch", map[string]any{
			"specification": "https://example.com/spec.json",
			"auth":          map[string]any{"type": "anonymous"},
		}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, tools, 1)

	got, ok := tools[0].(OpenAPITool)
	require.True(t, ok, "expected OpenAPITool, got %T", tools[0])
	assert.Equal(t, "https://example.com/spec.json", got.SpecURL)
	assert.Empty(t, got.ConnectionID)
}

func TestBuild_OpenAPILegacySpecURLAndConnection(t *testing.T) {
	tools, err := Build([]Declaration{
		decl("openapi", "Weather", map[string]any{
			"spec_url":      "https://example.com/weather.json",
			"connection_id": "CONN_WEATHER",
		}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, OpenAPITool{
		SpecURL:      "https://example.com/weather.json",
		ConnectionID: "CONN_WEATHER",
	}, tools[0])
}

func TestBuild_OpenAPIMissingSpecificationAborts(t *testing.T) {
	rec := observe(t)

	tools, err := Build([]Declaration{
		decl("azure_ai_search", "Search", nil),
		decl("openapi", "Broken", map[string]any{"auth": map[string]any{"type": "anonymous"}}),
		decl("code_interpreter", "Code", nil),
	}, nil)
	require.Error(t, err)
	assert.Nil(t, tools)
	assert.Contains(t, err.Error(), "Broken")

	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, CodeMissingSpecification, verr.Code)
	assert.Equal(t, "Broken", verr.ToolID)
	assert.Equal(t, KindOpenAPI, verr.Kind)

	require.Len(t, rec.builds, 1)
	assert.True(t, rec.builds[0].Failed)
	assert.Equal(t, CodeMissingSpecification, rec.builds[0].ErrorCode)
}

func TestBuild_StringOptionsAreTrimmed(t *testing.T) {
	tools, err := Build([]Declaration{
		decl("openapi", "Padded", map[string]any{"specification": "  https://example.com/spec.json\n"}),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/spec.json", tools[0].(OpenAPITool).SpecURL)

	_, err = Build([]Declaration{
		decl("openapi", "Blank", map[string]any{"specification": "   "}),
	}, nil)
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, CodeMissingSpecification, verr.Code)
}

func TestBuild_MCP(t *testing.T) {
	t.Run("missing server_url aborts", func(t *testing.T) {
		_, err := Build([]Declaration{decl("mcp", "Docs", nil)}, nil)
		verr, ok := AsValidationError(err)
		require.True(t, ok, "expected ValidationError, got %v", err)
		assert.Equal(t, CodeMissingServerURL, verr.Code)
		assert.Contains(t, err.Error(), "Docs")
	})

	t.Run("allowed_tools defaults to empty", func(t *testing.T) {
		tools, err := Build([]Declaration{
			decl("mcp", "Docs", map[string]any{"server_url": "https://mcp.example.com"}),
		}, nil)
		require.NoError(t, err)
		require.Len(t, tools, 1)
		got := tools[0].(MCPTool)
		assert.Equal(t, "https://mcp.example.com", got.ServerURL)
		assert.NotNil(t, got.AllowedTools)
		assert.Empty(t, got.AllowedTools)
	})

	t.Run("allowed_tools from yaml list", func(t *testing.T) {
		tools, err := Build([]Declaration{
			decl("mcp", "Docs", map[string]any{
				"server_url":    "https://mcp.example.com",
				"allowed_tools": []any{"search", "fetch"},
			}),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"search", "fetch"}, tools[0].(MCPTool).AllowedTools)
	})

	t.Run("allowed_tools of wrong shape aborts", func(t *testing.T) {
		_, err := Build([]Declaration{
			decl("mcp", "Docs", map[string]any{
				"server_url":    "https://mcp.example.com",
				"allowed_tools": 3,
			}),
		}, nil)
		verr, ok := AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, CodeInvalidOption, verr.Code)
		assert.Equal(t, "allowed_tools", verr.Option)
	})
}

func TestBuild_AzureAISearchDefaults(t *testing.T) {
	tools, err := Build([]Declaration{decl("azure_ai_search", "Search", nil)}, nil)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, SearchTool{
		Name:         "Search",
		ConnectionID: "CONN_PRIMARY_SEARCH",
		IndexName:    "primary-search-index",
	}, tools[0])
}

func TestBuild_AzureAISearchExplicitValues(t *testing.T) {
	tools, err := Build([]Declaration{
		decl("azure_ai_search", "MySearch", map[string]any{
			"connection_id": "CONN_1",
			"index_name":    "index-1",
		}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, SearchTool{
		Name:         "MySearch",
		ConnectionID: "CONN_1",
		IndexName:    "index-1",
	}, tools[0])
}

func TestBuild_FileSearchMissingVectorStoreIsDegraded(t *testing.T) {
	rec := observe(t)

	tools, err := Build([]Declaration{decl("file_search", "Docs", nil)}, nil)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, FileSearchTool{Name: "Docs"}, tools[0])
	assert.Equal(t, []string{CodeMissingVectorStore}, rec.codes())

	require.Len(t, rec.builds, 1)
	assert.Equal(t, 1, rec.builds[0].Degraded)
	assert.Equal(t, 1, rec.builds[0].Built)
}

func TestBuild_CodeInterpreterOptionalLimits(t *testing.T) {
	tools, err := Build([]Declaration{
		decl("code_interpreter", "Plain", nil),
		decl("code_interpreter", "Tuned", map[string]any{
			"max_execution_time_seconds": 120,
			"memory_limit_mb":            float64(512),
		}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, tools, 2)

	plain := tools[0].(CodeInterpreterTool)
	assert.Nil(t, plain.MaxExecutionTimeSeconds)
	assert.Nil(t, plain.MemoryLimitMB)

	tuned := tools[1].(CodeInterpreterTool)
	require.NotNil(t, tuned.MaxExecutionTimeSeconds)
	require.NotNil(t, tuned.MemoryLimitMB)
	assert.Equal(t, 120, *tuned.MaxExecutionTimeSeconds)
	assert.Equal(t, 512, *tuned.MemoryLimitMB)
}

func TestBuild_CodeInterpreterRejectsBadLimit(t *testing.T) {
	_, err := Build([]Declaration{
		decl("code_interpreter", "Code", map[string]any{"memory_limit_mb": "lots"}),
	}, nil)
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "memory_limit_mb", verr.Option)
}

func TestBuild_UnknownTypeSkippedWithoutAffectingNeighbours(t *testing.T) {
	rec := observe(t)

	tools, err := Build([]Declaration{
		decl("azure_ai_search", "Before", nil),
		decl("bing_connection", "Bing", nil),
		decl("code_interpreter", "After", nil),
	}, nil)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "Before", tools[0].(SearchTool).Name)
	assert.Equal(t, "After", tools[1].(CodeInterpreterTool).Name)
	assert.Equal(t, []string{CodeUnsupportedType}, rec.codes())
	assert.Contains(t, rec.warnings[0].Message, `"bing_connection"`)
	assert.Contains(t, rec.warnings[0].Message, "azure_ai_search, file_search, openapi, mcp, code_interpreter")
}

func TestBuild_MissingTypeSkipped(t *testing.T) {
	rec := observe(t)

	tools, err := Build([]Declaration{
		{ID: "Nameless", Options: map[string]any{}},
		decl("file_search", "Docs", map[string]any{"vector_store_id": "vs_1"}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, FileSearchTool{Name: "Docs", VectorStoreID: "vs_1"}, tools[0])
	assert.Equal(t, []string{CodeMissingType}, rec.codes())
	assert.Equal(t, "Nameless", rec.warnings[0].ToolID)
	assert.Equal(t, "tools[0]", rec.warnings[0].Path)
}

func TestBuild_PreservesOrder(t *testing.T) {
	decls := []Declaration{
		decl("code_interpreter", "a", nil),
		decl("unknown", "x", nil),
		decl("file_search", "b", map[string]any{"vector_store_id": "vs"}),
		decl("mcp", "c", map[string]any{"server_url": "https://mcp"}),
		{ID: "y"},
		decl("azure_ai_search", "d", nil),
		decl("openapi", "e", map[string]any{"specification": "https://e"}),
	}
	tools, err := Build(decls, nil)
	require.NoError(t, err)

	kinds := make([]Kind, 0, len(tools))
	for _, d := range tools {
		kinds = append(kinds, d.Kind())
	}
	assert.Equal(t, []Kind{
		KindCodeInterpreter,
		KindFileSearch,
		KindMCP,
		KindAzureAISearch,
		KindOpenAPI,
	}, kinds)
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	options := map[string]any{"server_url": "https://mcp", "allowed_tools": []any{"a"}}
	_, err := Build([]Declaration{decl("mcp", "m", options)}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"server_url": "https://mcp", "allowed_tools": []any{"a"}}, options)
}

func TestCheck_CollectsWarningsWithoutObserver(t *testing.T) {
	rec := observe(t)

	tools, warnings, err := Check([]Declaration{
		decl("bing_connection", "Bing", nil),
		decl("file_search", "Docs", nil),
	})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Len(t, warnings, 2)
	assert.Equal(t, CodeUnsupportedType, warnings[0].Code)
	assert.Equal(t, CodeMissingVectorStore, warnings[1].Code)
	assert.Empty(t, rec.warnings)
	assert.Empty(t, rec.builds)
}
