package agent

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/foundryctl/tool"
)

// DefaultInstructions is used when a definition omits instructions.
const DefaultInstructions = "You are a helpful assistant that answers general questions"

var (
	// ErrEmptyDefinition is returned for a YAML document with no content.
	ErrEmptyDefinition = errors.New("agent definition is empty")
	// ErrInvalidDefinition wraps YAML that cannot be decoded as an agent.
	ErrInvalidDefinition = errors.New("invalid agent definition")
)

// Definition is the agent.yaml schema: a model, its instructions and the tool
// declarations to bind.
type Definition struct {
	Name         string             `yaml:"name" json:"name"`
	Model        Model              `yaml:"-" json:"model"`
	Instructions string             `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	Tools        []tool.Declaration `yaml:"tools,omitempty" json:"tools,omitempty"`
	Metadata     map[string]string  `yaml:"metadata,omitempty" json:"metadata,omitempty"`

	modelShape modelShape
}

// Model references a model deployment in the Foundry project.
type Model struct {
	ID string `yaml:"id" json:"id"`
}

type modelShape int

const (
	// modelUnchecked marks a Definition built in code rather than decoded.
	modelUnchecked modelShape = iota
	modelMissing
	modelMapping
	modelNotMapping
)

// definitionDocument is the on-disk shape; model is kept as a node so a
// scalar model can be reported instead of failing the decode.
type definitionDocument struct {
	Name         string             `yaml:"name"`
	Model        yaml.Node          `yaml:"model"`
	Instructions string             `yaml:"instructions"`
	Tools        []tool.Declaration `yaml:"tools"`
	Metadata     map[string]string  `yaml:"metadata"`
}

// UnmarshalYAML decodes an agent definition.
func (d *Definition) UnmarshalYAML(node *yaml.Node) error {
	var doc definitionDocument
	if err := node.Decode(&doc); err != nil {
		return err
	}

	def := Definition{
		Name:         strings.TrimSpace(doc.Name),
		Instructions: doc.Instructions,
		Tools:        doc.Tools,
		Metadata:     doc.Metadata,
	}

	switch {
	case doc.Model.Kind == 0 || doc.Model.Tag == "!!null":
		def.modelShape = modelMissing
	case doc.Model.Kind == yaml.MappingNode:
		def.modelShape = modelMapping
		if err := doc.Model.Decode(&def.Model); err != nil {
			return fmt.Errorf("decoding model at line %d: %w", doc.Model.Line, err)
		}
		def.Model.ID = strings.TrimSpace(def.Model.ID)
	default:
		def.modelShape = modelNotMapping
	}

	*d = def
	return nil
}

// EffectiveInstructions returns the instructions, or DefaultInstructions when
// none were given.
func (d *Definition) EffectiveInstructions() string {
	if strings.TrimSpace(d.Instructions) == "" {
		return DefaultInstructions
	}
	return d.Instructions
}

// LoadFromFile reads and parses an agent definition YAML file.
func LoadFromFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("agent YAML not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("reading agent YAML: %w", err)
	}
	def, err := LoadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// LoadFromBytes parses an agent definition from YAML bytes.
func LoadFromBytes(data []byte) (*Definition, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: parsing agent YAML: %w", ErrInvalidDefinition, err)
	}
	if len(root.Content) == 0 || isEmptyNode(root.Content[0]) {
		return nil, ErrEmptyDefinition
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: parsing agent YAML: top level must be a mapping", ErrInvalidDefinition)
	}

	var def Definition
	if err := root.Content[0].Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: parsing agent YAML: %w", ErrInvalidDefinition, err)
	}
	return &def, nil
}

func isEmptyNode(n *yaml.Node) bool {
	if n == nil || n.Tag == "!!null" {
		return true
	}
	return n.Kind == yaml.MappingNode && len(n.Content) == 0
}
