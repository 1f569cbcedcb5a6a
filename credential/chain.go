// Package credential selects an Azure token credential by trying an ordered
// list of named providers until one can issue a token.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// FoundryScope is the token scope for Azure AI Foundry project endpoints.
const FoundryScope = "https://ai.azure.com/.default"

const defaultProbeTimeout = 30 * time.Second

// Remediation lists the operator steps printed when no provider works.
var Remediation = []string{
	"You have run 'az login' or authenticated via the pipeline service connection",
	"You have access to the Foundry project endpoint",
	"Your credentials have appropriate permissions on the project",
}

// Provider constructs one kind of credential.
type Provider struct {
	Name string
	New  func() (azcore.TokenCredential, error)
}

// DefaultProviders returns DefaultAzureCredential followed by
// AzureCliCredential, matching what local shells and CI agents provide.
func DefaultProviders() []Provider {
	return []Provider{
		{
			Name: "DefaultAzureCredential",
			New: func() (azcore.TokenCredential, error) {
				return azidentity.NewDefaultAzureCredential(nil)
			},
		},
		{
			Name: "AzureCliCredential",
			New: func() (azcore.TokenCredential, error) {
				return azidentity.NewAzureCLICredential(nil)
			},
		},
	}
}

// Chain tries providers in order.
type Chain struct {
	Providers []Provider
	// Scope is the token scope used to probe each provider. Defaults to FoundryScope.
	Scope string
	// ProbeTimeout bounds each provider's token request. Defaults to 30s.
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// Resolved is the credential chosen by Resolve.
type Resolved struct {
	Provider   string
	Credential azcore.TokenCredential
}

// Attempt records one failed provider.
type Attempt struct {
	Provider string
	Err      error
}

// ChainError is returned when every provider failed.
type ChainError struct {
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	var sb strings.Builder
	sb.WriteString("credential: no credential provider succeeded")
	for _, a := range e.Attempts {
		fmt.Fprintf(&sb, "\n  %s: %v", a.Provider, a.Err)
	}
	sb.WriteString("\n\nPlease ensure:")
	for i, step := range Remediation {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, step)
	}
	return sb.String()
}

// Unwrap exposes each provider failure to errors.Is/errors.As.
func (e *ChainError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// ErrNoProviders is returned by Resolve on an empty chain.
var ErrNoProviders = errors.New("credential: no providers configured")

// Resolve returns the first provider that can be constructed and can issue a
// token for the configured scope.
func (c *Chain) Resolve(ctx context.Context) (Resolved, error) {
	if len(c.Providers) == 0 {
		return Resolved{}, ErrNoProviders
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scope := c.Scope
	if strings.TrimSpace(scope) == "" {
		scope = FoundryScope
	}
	timeout := c.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	chainErr := &ChainError{}
	for _, p := range c.Providers {
		if err := ctx.Err(); err != nil {
			return Resolved{}, err
		}

		cred, err := probe(ctx, p, scope, timeout)
		if err != nil {
			logger.Warn("credential provider failed", "provider", p.Name, "error", err)
			chainErr.Attempts = append(chainErr.Attempts, Attempt{Provider: p.Name, Err: err})
			continue
		}
		logger.Info("credential provider selected", "provider", p.Name)
		return Resolved{Provider: p.Name, Credential: cred}, nil
	}
	return Resolved{}, chainErr
}

func probe(ctx context.Context, p Provider, scope string, timeout time.Duration) (azcore.TokenCredential, error) {
	if p.New == nil {
		return nil, errors.New("provider has no constructor")
	}
	cred, err := p.New()
	if err != nil {
		return nil, fmt.Errorf("construct: %w", err)
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := cred.GetToken(probeCtx, policy.TokenRequestOptions{Scopes: []string{scope}}); err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return cred, nil
}
