package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/petal-labs/foundryctl/diag"
)

const (
	defaultSearchConnectionID = "CONN_PRIMARY_SEARCH"
	defaultSearchIndexName    = "primary-search-index"
)

// ConnectionResolver resolves project connection names to connection ids.
// Build accepts one for tool kinds that need a live backend; none of the
// current kinds use it, so nil is always valid.
type ConnectionResolver interface {
	ResolveConnectionID(ctx context.Context, name string) (string, error)
}

// Warning is an advisory finding for a single declaration. The declaration
// is skipped or degraded; the build continues.
type Warning struct {
	diag.Diagnostic
	ToolID string `json:"tool_id,omitempty"`
	Type   string `json:"type,omitempty"`
}

// Build converts declarations into descriptors in input order.
//
// Entries without a type and entries of an unsupported type are skipped with a
// warning. A file_search without vector_store_id is kept with an empty id and
// a warning. An openapi without specification/spec_url, an mcp without
// server_url, or any malformed option returns a *ValidationError and no
// descriptors.
//
// The resolver is part of the signature for kinds that look up project
// connections; none of the current kinds do, so it is not consulted.
func Build(decls []Declaration, _ ConnectionResolver) ([]Descriptor, error) {
	return build(decls, currentObserver())
}

// Check runs the same conversion as Build without notifying the process
// observer, returning the warnings instead. Used for offline validation.
func Check(decls []Declaration) ([]Descriptor, []Warning, error) {
	collector := &warningCollector{}
	tools, err := build(decls, collector)
	return tools, collector.warnings, err
}

type warningCollector struct {
	warnings []Warning
}

func (c *warningCollector) ObserveWarning(w Warning)      { c.warnings = append(c.warnings, w) }
func (c *warningCollector) ObserveBuild(BuildObservation) {}

func build(decls []Declaration, observer Observer) ([]Descriptor, error) {
	tools := make([]Descriptor, 0, len(decls))
	obs := BuildObservation{Declared: len(decls)}

	for i, decl := range decls {
		path := fmt.Sprintf("tools[%d]", i)

		if decl.Type == "" {
			observer.ObserveWarning(newWarning(decl, CodeMissingType, path,
				"tool entry %q missing 'type', skipping", decl.ID))
			obs.Skipped++
			continue
		}

		desc, degraded, err := buildOne(decl, path, observer)
		if err != nil {
			obs.Failed = true
			if verr, ok := AsValidationError(err); ok {
				obs.ErrorCode = verr.Code
			}
			observer.ObserveBuild(obs)
			return nil, err
		}
		if desc == nil {
			obs.Skipped++
			continue
		}
		if degraded {
			obs.Degraded++
		}
		tools = append(tools, desc)
	}

	obs.Built = len(tools)
	observer.ObserveBuild(obs)
	return tools, nil
}

// buildOne dispatches one declaration. A nil descriptor with a nil error
// means the entry was skipped.
func buildOne(decl Declaration, path string, observer Observer) (Descriptor, bool, error) {
	switch Kind(decl.Type) {
	case KindAzureAISearch:
		d, err := buildSearch(decl)
		return d, false, err
	case KindFileSearch:
		return buildFileSearch(decl, path, observer)
	case KindOpenAPI:
		d, err := buildOpenAPI(decl)
		return d, false, err
	case KindMCP:
		d, err := buildMCP(decl)
		return d, false, err
	case KindCodeInterpreter:
		d, err := buildCodeInterpreter(decl)
		return d, false, err
	default:
		observer.ObserveWarning(newWarning(decl, CodeUnsupportedType, path+".type",
			"unsupported tool type %q (supported: %s), skipping", decl.Type, supportedKinds()))
		return nil, false, nil
	}
}

func buildSearch(decl Declaration) (Descriptor, error) {
	connectionID, err := stringOptionDefault(decl, "connection_id", defaultSearchConnectionID)
	if err != nil {
		return nil, err
	}
	indexName, err := stringOptionDefault(decl, "index_name", defaultSearchIndexName)
	if err != nil {
		return nil, err
	}
	return SearchTool{
		Name:         decl.ID,
		ConnectionID: connectionID,
		IndexName:    indexName,
	}, nil
}

func buildFileSearch(decl Declaration, path string, observer Observer) (Descriptor, bool, error) {
	vectorStoreID, ok, err := stringOption(decl, "vector_store_id")
	if err != nil {
		return nil, false, err
	}
	if !ok {
		observer.ObserveWarning(newWarning(decl, CodeMissingVectorStore, path+".options.vector_store_id",
			"file_search tool %q missing 'vector_store_id' in options", decl.ID))
	}
	return FileSearchTool{
		Name:          decl.ID,
		VectorStoreID: vectorStoreID,
	}, !ok, nil
}

func buildOpenAPI(decl Declaration) (Descriptor, error) {
	specURL, ok, err := firstStringOption(decl, "specification", "spec_url")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missingSpecification(decl)
	}
	connectionID, _, err := stringOption(decl, "connection_id")
	if err != nil {
		return nil, err
	}
	return OpenAPITool{
		SpecURL:      specURL,
		ConnectionID: connectionID,
	}, nil
}

func buildMCP(decl Declaration) (Descriptor, error) {
	serverURL, ok, err := stringOption(decl, "server_url")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missingServerURL(decl)
	}
	allowed, err := stringListOption(decl, "allowed_tools")
	if err != nil {
		return nil, err
	}
	return MCPTool{
		Name:         decl.ID,
		ServerURL:    serverURL,
		AllowedTools: allowed,
	}, nil
}

func buildCodeInterpreter(decl Declaration) (Descriptor, error) {
	maxSeconds, err := intOption(decl, "max_execution_time_seconds")
	if err != nil {
		return nil, err
	}
	memoryMB, err := intOption(decl, "memory_limit_mb")
	if err != nil {
		return nil, err
	}
	return CodeInterpreterTool{
		Name:                    decl.ID,
		MaxExecutionTimeSeconds: maxSeconds,
		MemoryLimitMB:           memoryMB,
	}, nil
}

func supportedKinds() string {
	kinds := Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func newWarning(decl Declaration, code, path, format string, args ...any) Warning {
	return Warning{
		Diagnostic: diag.Warnf(code, path, format, args...),
		ToolID:     decl.ID,
		Type:       decl.Type,
	}
}
