// Package foundry is a small client for the Azure AI Foundry project API:
// it registers agent versions and looks up project connections.
package foundry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/petal-labs/foundryctl/credential"
	"github.com/petal-labs/foundryctl/tool"
)

const (
	moduleName    = "foundryctl/foundry"
	moduleVersion = "v0.1.0"

	// DefaultAPIVersion is the project API version sent with every request.
	DefaultAPIVersion = "2025-11-15-preview"
)

// ErrInvalidEndpoint is returned for endpoints that are not absolute https URLs.
var ErrInvalidEndpoint = errors.New("foundry: endpoint must be an https URL like https://<account>.services.ai.azure.com/api/projects/<project>")

// ClientOptions configures a Client.
type ClientOptions struct {
	azcore.ClientOptions

	// APIVersion overrides DefaultAPIVersion.
	APIVersion string
}

// Client talks to one Foundry project endpoint.
type Client struct {
	endpoint   string
	apiVersion string
	pl         runtime.Pipeline
}

// NewClient creates a client authenticated with cred.
func NewClient(endpoint string, cred azcore.TokenCredential, opts *ClientOptions) (*Client, error) {
	clean, err := ValidateEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, errors.New("foundry: credential is required")
	}
	if opts == nil {
		opts = &ClientOptions{}
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	authPolicy := runtime.NewBearerTokenPolicy(cred, []string{credential.FoundryScope}, nil)
	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{authPolicy},
	}, &opts.ClientOptions)

	return &Client{
		endpoint:   clean,
		apiVersion: apiVersion,
		pl:         pl,
	}, nil
}

// Endpoint returns the normalized project endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// ValidateEndpoint checks the endpoint shape and strips a trailing slash.
func ValidateEndpoint(endpoint string) (string, error) {
	clean := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if clean == "" {
		return "", ErrInvalidEndpoint
	}
	u, err := url.Parse(clean)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return "", ErrInvalidEndpoint
	}
	return clean, nil
}

// PromptAgentDefinition is a model + instructions + tools agent.
type PromptAgentDefinition struct {
	Model        string
	Instructions string
	Tools        []tool.Descriptor
}

// AgentVersion is the service's record of a registered agent version.
type AgentVersion struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

type createAgentVersionBody struct {
	Definition promptDefinitionWire `json:"definition"`
	Metadata   map[string]string    `json:"metadata,omitempty"`
}

type promptDefinitionWire struct {
	Kind         string `json:"kind"`
	Model        string `json:"model"`
	Instructions string `json:"instructions,omitempty"`
	Tools        []any  `json:"tools,omitempty"`
}

// CreateAgentVersion registers a new version of the named agent.
func (c *Client) CreateAgentVersion(ctx context.Context, name string, def PromptAgentDefinition, metadata map[string]string) (AgentVersion, error) {
	if strings.TrimSpace(name) == "" {
		return AgentVersion{}, errors.New("foundry: agent name is required")
	}
	if strings.TrimSpace(def.Model) == "" {
		return AgentVersion{}, errors.New("foundry: model is required")
	}

	tools, err := encodeTools(def.Tools)
	if err != nil {
		return AgentVersion{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/agents/"+url.PathEscape(name)+"/versions")
	if err != nil {
		return AgentVersion{}, err
	}
	body := createAgentVersionBody{
		Definition: promptDefinitionWire{
			Kind:         "prompt",
			Model:        def.Model,
			Instructions: def.Instructions,
			Tools:        tools,
		},
		Metadata: metadata,
	}
	if err := runtime.MarshalAsJSON(req, body); err != nil {
		return AgentVersion{}, fmt.Errorf("foundry: encode agent version: %w", err)
	}

	resp, err := c.pl.Do(req)
	if err != nil {
		return AgentVersion{}, fmt.Errorf("foundry: create agent version: %w", err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK, http.StatusCreated) {
		return AgentVersion{}, runtime.NewResponseError(resp)
	}

	var out AgentVersion
	if err := runtime.UnmarshalAsJSON(resp, &out); err != nil {
		return AgentVersion{}, fmt.Errorf("foundry: decode agent version: %w", err)
	}
	if out.Name == "" {
		out.Name = name
	}
	return out, nil
}

// Connection is a project connection (search service, API key, ...).
type Connection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// GetConnection fetches a project connection by name.
func (c *Client) GetConnection(ctx context.Context, name string) (Connection, error) {
	if strings.TrimSpace(name) == "" {
		return Connection{}, errors.New("foundry: connection name is required")
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/connections/"+url.PathEscape(name))
	if err != nil {
		return Connection{}, err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return Connection{}, fmt.Errorf("foundry: get connection: %w", err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return Connection{}, runtime.NewResponseError(resp)
	}
	var out Connection
	if err := runtime.UnmarshalAsJSON(resp, &out); err != nil {
		return Connection{}, fmt.Errorf("foundry: decode connection: %w", err)
	}
	return out, nil
}

// ResolveConnectionID implements tool.ConnectionResolver.
func (c *Client) ResolveConnectionID(ctx context.Context, name string) (string, error) {
	conn, err := c.GetConnection(ctx, name)
	if err != nil {
		return "", err
	}
	return conn.ID, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*policy.Request, error) {
	req, err := runtime.NewRequest(ctx, method, runtime.JoinPaths(c.endpoint, path))
	if err != nil {
		return nil, fmt.Errorf("foundry: build request: %w", err)
	}
	q := req.Raw().URL.Query()
	q.Set("api-version", c.apiVersion)
	req.Raw().URL.RawQuery = q.Encode()
	req.Raw().Header.Set("Accept", "application/json")
	return req, nil
}
