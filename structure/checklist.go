// Package structure verifies that a deployment repository still has the
// templates, pipelines and docs that foundryctl and the CI pipelines expect.
package structure

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// CheckKind selects how a Check is evaluated.
type CheckKind string

const (
	// KindExists passes when Path exists.
	KindExists CheckKind = "exists"
	// KindContains passes when Path exists and contains every needle.
	KindContains CheckKind = "contains"
	// KindGlob passes when Pattern matches at least one file.
	KindGlob CheckKind = "glob"
)

// Check is a single expectation about the repository.
type Check struct {
	Kind        CheckKind `yaml:"kind,omitempty" json:"kind"`
	Description string    `yaml:"description" json:"description"`
	Path        string    `yaml:"path,omitempty" json:"path,omitempty"`
	Contains    []string  `yaml:"contains,omitempty" json:"contains,omitempty"`
	Pattern     string    `yaml:"glob,omitempty" json:"glob,omitempty"`
}

// Section groups related checks under a heading.
type Section struct {
	Name   string  `yaml:"name" json:"name"`
	Checks []Check `yaml:"checks" json:"checks"`
}

// Checklist is an ordered list of sections.
type Checklist struct {
	Sections []Section `yaml:"sections" json:"sections"`
}

// effectiveKind infers the kind when it was left out of a YAML checklist.
func (c Check) effectiveKind() CheckKind {
	switch {
	case c.Kind != "":
		return c.Kind
	case c.Pattern != "":
		return KindGlob
	case len(c.Contains) > 0:
		return KindContains
	default:
		return KindExists
	}
}

// Validate reports malformed checks.
func (cl Checklist) Validate() error {
	var errs []error
	for si, sec := range cl.Sections {
		for ci, c := range sec.Checks {
			where := fmt.Sprintf("sections[%d].checks[%d]", si, ci)
			switch c.effectiveKind() {
			case KindExists:
				if c.Path == "" {
					errs = append(errs, fmt.Errorf("%s: exists check requires path", where))
				}
			case KindContains:
				if c.Path == "" || len(c.Contains) == 0 {
					errs = append(errs, fmt.Errorf("%s: contains check requires path and contains", where))
				}
			case KindGlob:
				if c.Pattern == "" || !doublestar.ValidatePattern(c.Pattern) {
					errs = append(errs, fmt.Errorf("%s: invalid glob pattern %q", where, c.Pattern))
				}
			default:
				errs = append(errs, fmt.Errorf("%s: unknown check kind %q", where, c.Kind))
			}
		}
	}
	return errors.Join(errs...)
}

// ParseChecklist decodes and validates a YAML checklist.
func ParseChecklist(data []byte) (Checklist, error) {
	var cl Checklist
	if err := yaml.Unmarshal(data, &cl); err != nil {
		return Checklist{}, fmt.Errorf("parsing checklist: %w", err)
	}
	if len(cl.Sections) == 0 {
		return Checklist{}, fmt.Errorf("parsing checklist: no sections defined")
	}
	if err := cl.Validate(); err != nil {
		return Checklist{}, err
	}
	return cl, nil
}

// LoadChecklist reads a YAML checklist from disk.
func LoadChecklist(path string) (Checklist, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return Checklist{}, fmt.Errorf("reading checklist: %w", err)
	}
	return ParseChecklist(data)
}

// DefaultChecklist describes the standard agent deployment repository.
func DefaultChecklist() Checklist {
	const (
		connectionsTemplate = "infrastructure/modules/connections/connection.bicep"
		connectionsParams   = "infrastructure/parameters/connections.bicepparam"
		guardrailsTemplate  = "infrastructure/modules/guardrails/content_filter.bicep"
		guardrailsParams    = "infrastructure/parameters/guardrails/guardrails.bicepparam"
	)
	return Checklist{Sections: []Section{
		{
			Name: "Infrastructure Files",
			Checks: []Check{
				{Kind: KindExists, Description: "Connections Bicep template", Path: connectionsTemplate},
				{Kind: KindExists, Description: "OpenAPI specification", Path: "infrastructure/modules/connections/api.json"},
				{Kind: KindExists, Description: "Guardrails Bicep template", Path: guardrailsTemplate},
				{Kind: KindExists, Description: "Connections parameters", Path: connectionsParams},
				{Kind: KindExists, Description: "Guardrails parameters", Path: guardrailsParams},
				{Kind: KindGlob, Description: "Bicep modules", Pattern: "infrastructure/modules/**/*.bicep"},
			},
		},
		{
			Name: "Agent Definition",
			Checks: []Check{
				{Kind: KindGlob, Description: "Agent YAML", Pattern: "{agent.yaml,agents/**/*.yaml}"},
			},
		},
		{
			Name: "CI/CD Pipelines",
			Checks: []Check{
				{Kind: KindExists, Description: "Infrastructure pipeline", Path: "pipelines/infrastructure-pipeline.yml"},
				{Kind: KindExists, Description: "Agent pipeline", Path: "pipelines/agent-pipeline.yml"},
				{Kind: KindExists, Description: "Guardrails pipeline", Path: "pipelines/guardrails-pipeline.yml"},
			},
		},
		{
			Name: "Pipeline Path References",
			Checks: []Check{
				{
					Kind:        KindContains,
					Description: "infrastructure-pipeline.yml paths",
					Path:        "pipelines/infrastructure-pipeline.yml",
					Contains:    []string{connectionsParams},
				},
				{
					Kind:        KindContains,
					Description: "guardrails-pipeline.yml paths",
					Path:        "pipelines/guardrails-pipeline.yml",
					Contains:    []string{guardrailsTemplate, guardrailsParams},
				},
			},
		},
		{
			Name: "Documentation",
			Checks: []Check{
				{Kind: KindExists, Description: "Main README", Path: "README.md"},
				{Kind: KindExists, Description: "Guardrails documentation", Path: "docs/GUARDRAILS.md"},
				{Kind: KindExists, Description: "Organization guide", Path: "ORGANIZATION.md"},
			},
		},
	}}
}

func cleanPath(p string) string {
	return strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./")
}
