package tool

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Declaration is one entry of the "tools" list in an agent definition.
// Legacy aliases are resolved while decoding, so Type and ID are the only
// names the rest of the package looks at.
type Declaration struct {
	Type    string         `json:"type"`
	ID      string         `json:"id,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// rawDeclaration mirrors the accepted YAML shape, aliases included. Other
// keys, such as description, are ignored.
type rawDeclaration struct {
	Type    string         `yaml:"type"`
	Kind    string         `yaml:"kind"`
	ID      string         `yaml:"id"`
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options"`
}

// UnmarshalYAML decodes a declaration, preferring type over kind and id over
// name.
func (d *Declaration) UnmarshalYAML(node *yaml.Node) error {
	var raw rawDeclaration
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("tool: decode declaration at line %d: %w", node.Line, err)
	}
	*d = raw.resolve()
	return nil
}

func (r rawDeclaration) resolve() Declaration {
	options := r.Options
	if options == nil {
		options = map[string]any{}
	}
	return Declaration{
		Type:    firstNonEmpty(r.Type, r.Kind),
		ID:      firstNonEmpty(r.ID, r.Name),
		Options: options,
	}
}

// DeclarationFromMap builds a declaration from an already-parsed mapping,
// applying the same alias rules as UnmarshalYAML.
func DeclarationFromMap(m map[string]any) Declaration {
	raw := rawDeclaration{
		Type: scalarString(m["type"]),
		Kind: scalarString(m["kind"]),
		ID:   scalarString(m["id"]),
		Name: scalarString(m["name"]),
	}
	switch opts := m["options"].(type) {
	case map[string]any:
		raw.Options = opts
	case map[any]any:
		raw.Options = make(map[string]any, len(opts))
		for k, v := range opts {
			raw.Options[fmt.Sprint(k)] = v
		}
	}
	return raw.resolve()
}

// DeclarationsFromMaps converts a parsed list of mappings, preserving order.
func DeclarationsFromMaps(entries []map[string]any) []Declaration {
	decls := make([]Declaration, 0, len(entries))
	for _, entry := range entries {
		decls = append(decls, DeclarationFromMap(entry))
	}
	return decls
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case int, int64, float64, bool:
		return fmt.Sprint(s)
	default:
		return ""
	}
}
