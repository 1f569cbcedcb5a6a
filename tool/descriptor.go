package tool

// Kind identifies a supported tool type.
type Kind string

const (
	KindAzureAISearch   Kind = "azure_ai_search"
	KindFileSearch      Kind = "file_search"
	KindOpenAPI         Kind = "openapi"
	KindMCP             Kind = "mcp"
	KindCodeInterpreter Kind = "code_interpreter"
)

// Kinds returns the supported kinds in dispatch order.
func Kinds() []Kind {
	return []Kind{
		KindAzureAISearch,
		KindFileSearch,
		KindOpenAPI,
		KindMCP,
		KindCodeInterpreter,
	}
}

// Descriptor is a concrete tool ready to attach to an agent definition.
// The set of implementations is closed: only the types in this file satisfy
// it, so a type switch over them with a default branch covers every case.
type Descriptor interface {
	Kind() Kind
	descriptor()
}

// SearchTool binds an Azure AI Search index through a project connection.
type SearchTool struct {
	Name         string `json:"name,omitempty"`
	ConnectionID string `json:"connection_id"`
	IndexName    string `json:"index_name"`
}

// FileSearchTool searches a vector store. VectorStoreID may be empty when the
// declaration omitted it.
type FileSearchTool struct {
	Name          string `json:"name,omitempty"`
	VectorStoreID string `json:"vector_store_id"`
}

// OpenAPITool exposes an OpenAPI specification as a tool.
type OpenAPITool struct {
	SpecURL      string `json:"spec_url"`
	ConnectionID string `json:"connection_id,omitempty"`
}

// MCPTool connects to a remote MCP server.
type MCPTool struct {
	Name         string   `json:"name,omitempty"`
	ServerURL    string   `json:"server_url"`
	AllowedTools []string `json:"allowed_tools"`
}

// CodeInterpreterTool enables the sandboxed code interpreter.
type CodeInterpreterTool struct {
	Name                    string `json:"name,omitempty"`
	MaxExecutionTimeSeconds *int   `json:"max_execution_time_seconds,omitempty"`
	MemoryLimitMB           *int   `json:"memory_limit_mb,omitempty"`
}

func (SearchTool) Kind() Kind          { return KindAzureAISearch }
func (FileSearchTool) Kind() Kind      { return KindFileSearch }
func (OpenAPITool) Kind() Kind         { return KindOpenAPI }
func (MCPTool) Kind() Kind             { return KindMCP }
func (CodeInterpreterTool) Kind() Kind { return KindCodeInterpreter }

func (SearchTool) descriptor()          {}
func (FileSearchTool) descriptor()      {}
func (OpenAPITool) descriptor()         {}
func (MCPTool) descriptor()             {}
func (CodeInterpreterTool) descriptor() {}
