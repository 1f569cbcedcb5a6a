// Package config reads foundryctl's environment variables in one place.
package config

import (
	"os"
	"strings"
)

const (
	// DefaultAgentYAMLPath is used when AGENT_YAML_PATH is unset.
	DefaultAgentYAMLPath = "agent.yaml"
	// DefaultResourceGroup is used when AZURE_RESOURCE_GROUP is unset.
	DefaultResourceGroup = "ad-usa-poc"
)

// Environment holds all foundryctl environment variables.
type Environment struct {
	// FoundryEndpoint is the AI Foundry project endpoint (FOUNDRY_ENDPOINT)
	FoundryEndpoint string

	// AgentYAMLPath is the agent definition file (AGENT_YAML_PATH)
	AgentYAMLPath string

	// ResourceGroup is the guardrails target resource group (AZURE_RESOURCE_GROUP)
	ResourceGroup string

	// GuardrailsEnvironment is the default guardrails environment (GUARDRAILS_ENVIRONMENT)
	GuardrailsEnvironment string

	// HistoryDB overrides the deployment history database path (FOUNDRYCTL_HISTORY_DB)
	HistoryDB string

	// OTLPEndpoint enables trace export (OTEL_EXPORTER_OTLP_TRACES_ENDPOINT, then OTEL_EXPORTER_OTLP_ENDPOINT)
	OTLPEndpoint string
}

// FromOS reads the process environment.
func FromOS() Environment {
	return Load(os.Getenv)
}

// Load builds an Environment from getenv. Tests pass a map lookup.
func Load(getenv func(string) string) Environment {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}
	return Environment{
		FoundryEndpoint:       get("FOUNDRY_ENDPOINT", ""),
		AgentYAMLPath:         get("AGENT_YAML_PATH", DefaultAgentYAMLPath),
		ResourceGroup:         get("AZURE_RESOURCE_GROUP", DefaultResourceGroup),
		GuardrailsEnvironment: get("GUARDRAILS_ENVIRONMENT", ""),
		HistoryDB:             get("FOUNDRYCTL_HISTORY_DB", ""),
		OTLPEndpoint:          get("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", tracesEndpoint(get("OTEL_EXPORTER_OTLP_ENDPOINT", ""))),
	}
}

// tracesEndpoint appends the OTLP/HTTP traces path to a base endpoint.
func tracesEndpoint(base string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/v1/traces"
}
