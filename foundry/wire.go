package foundry

import (
	"fmt"

	"github.com/petal-labs/foundryctl/tool"
)

type searchIndexWire struct {
	ProjectConnectionID string `json:"project_connection_id"`
	IndexName           string `json:"index_name"`
}

type searchToolWire struct {
	Type          string `json:"type"`
	AzureAISearch struct {
		Indexes []searchIndexWire `json:"indexes"`
	} `json:"azure_ai_search"`
}

type fileSearchToolWire struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids"`
}

type openAPIAuthWire struct {
	Type                string `json:"type"`
	ProjectConnectionID string `json:"project_connection_id,omitempty"`
}

type openAPIToolWire struct {
	Type    string `json:"type"`
	OpenAPI struct {
		SpecURL string          `json:"spec_url"`
		Auth    openAPIAuthWire `json:"auth"`
	} `json:"openapi"`
}

type mcpToolWire struct {
	Type         string   `json:"type"`
	ServerLabel  string   `json:"server_label,omitempty"`
	ServerURL    string   `json:"server_url"`
	AllowedTools []string `json:"allowed_tools"`
}

type codeInterpreterLimitsWire struct {
	MaxExecutionTimeSeconds *int `json:"max_execution_time_seconds,omitempty"`
	MemoryLimitMB           *int `json:"memory_limit_mb,omitempty"`
}

type codeInterpreterToolWire struct {
	Type   string                     `json:"type"`
	Limits *codeInterpreterLimitsWire `json:"limits,omitempty"`
}

// encodeTools maps descriptors onto the service's tool JSON.
func encodeTools(descs []tool.Descriptor) ([]any, error) {
	if len(descs) == 0 {
		return nil, nil
	}
	out := make([]any, 0, len(descs))
	for i, d := range descs {
		w, err := encodeTool(d)
		if err != nil {
			return nil, fmt.Errorf("foundry: encode tools[%d]: %w", i, err)
		}
		out = append(out, w)
	}
	return out, nil
}

func encodeTool(d tool.Descriptor) (any, error) {
	switch t := d.(type) {
	case tool.SearchTool:
		var w searchToolWire
		w.Type = string(tool.KindAzureAISearch)
		w.AzureAISearch.Indexes = []searchIndexWire{{
			ProjectConnectionID: t.ConnectionID,
			IndexName:           t.IndexName,
		}}
		return w, nil
	case tool.FileSearchTool:
		ids := []string{}
		if t.VectorStoreID != "" {
			ids = append(ids, t.VectorStoreID)
		}
		return fileSearchToolWire{Type: string(tool.KindFileSearch), VectorStoreIDs: ids}, nil
	case tool.OpenAPITool:
		var w openAPIToolWire
		w.Type = string(tool.KindOpenAPI)
		w.OpenAPI.SpecURL = t.SpecURL
		w.OpenAPI.Auth = openAPIAuthWire{Type: "anonymous"}
		if t.ConnectionID != "" {
			w.OpenAPI.Auth = openAPIAuthWire{Type: "project_connection", ProjectConnectionID: t.ConnectionID}
		}
		return w, nil
	case tool.MCPTool:
		allowed := t.AllowedTools
		if allowed == nil {
			allowed = []string{}
		}
		return mcpToolWire{
			Type:         string(tool.KindMCP),
			ServerLabel:  t.Name,
			ServerURL:    t.ServerURL,
			AllowedTools: allowed,
		}, nil
	case tool.CodeInterpreterTool:
		w := codeInterpreterToolWire{Type: string(tool.KindCodeInterpreter)}
		if t.MaxExecutionTimeSeconds != nil || t.MemoryLimitMB != nil {
			w.Limits = &codeInterpreterLimitsWire{
				MaxExecutionTimeSeconds: t.MaxExecutionTimeSeconds,
				MemoryLimitMB:           t.MemoryLimitMB,
			}
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported tool descriptor %T", d)
	}
}
