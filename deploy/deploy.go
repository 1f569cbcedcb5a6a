// Package deploy registers an agent definition with an AI Foundry project:
// load, validate, authenticate, build the tool registry, submit and record.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/foundryctl/agent"
	"github.com/petal-labs/foundryctl/credential"
	"github.com/petal-labs/foundryctl/diag"
	"github.com/petal-labs/foundryctl/foundry"
	"github.com/petal-labs/foundryctl/history"
	foundryotel "github.com/petal-labs/foundryctl/otel"
	"github.com/petal-labs/foundryctl/tool"
)

// ErrEndpointRequired is returned when no Foundry endpoint was given.
var ErrEndpointRequired = errors.New("foundry endpoint is required")

// AgentClient is the part of *foundry.Client used to deploy.
type AgentClient interface {
	tool.ConnectionResolver
	CreateAgentVersion(ctx context.Context, name string, def foundry.PromptAgentDefinition, metadata map[string]string) (foundry.AgentVersion, error)
}

// ClientFactory connects to an endpoint with a resolved credential.
type ClientFactory func(endpoint string, cred azcore.TokenCredential) (AgentClient, error)

// CredentialResolver picks the credential to authenticate with.
type CredentialResolver interface {
	Resolve(ctx context.Context) (credential.Resolved, error)
}

// Request identifies what to deploy and where.
type Request struct {
	Endpoint  string
	AgentPath string
}

// Result describes a registered agent version.
type Result struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Model      string            `json:"model"`
	Endpoint   string            `json:"endpoint"`
	ToolCount  int               `json:"tool_count"`
	Credential string            `json:"credential"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Warnings   []diag.Diagnostic `json:"warnings,omitempty"`
	HistoryID  string            `json:"history_id,omitempty"`
}

// Deployer runs agent deployments.
type Deployer struct {
	credentials CredentialResolver
	newClient   ClientFactory
	recorder    history.Recorder
	observer    foundryotel.DeploymentObserver
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithCredentials replaces the default DefaultAzureCredential/AzureCLI chain.
func WithCredentials(r CredentialResolver) Option {
	return func(d *Deployer) { d.credentials = r }
}

// WithClientFactory replaces foundry.NewClient.
func WithClientFactory(f ClientFactory) Option {
	return func(d *Deployer) { d.newClient = f }
}

// WithRecorder records each attempt.
func WithRecorder(r history.Recorder) Option {
	return func(d *Deployer) { d.recorder = r }
}

// WithObserver reports each finished deployment.
func WithObserver(o foundryotel.DeploymentObserver) Option {
	return func(d *Deployer) { d.observer = o }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(d *Deployer) { d.logger = l }
}

// WithTracer sets the tracer (default: global provider).
func WithTracer(t trace.Tracer) Option {
	return func(d *Deployer) { d.tracer = t }
}

// NewDeployer returns a Deployer wired to Azure by default.
func NewDeployer(opts ...Option) *Deployer {
	d := &Deployer{
		recorder: history.Nop{},
		logger:   slog.Default(),
		tracer:   otel.Tracer(foundryotel.ScopeName),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.credentials == nil {
		d.credentials = &credential.Chain{Providers: credential.DefaultProviders(), Logger: d.logger}
	}
	if d.newClient == nil {
		d.newClient = func(endpoint string, cred azcore.TokenCredential) (AgentClient, error) {
			return foundry.NewClient(endpoint, cred, nil)
		}
	}
	return d
}

// Load reads and validates an agent definition. Validation errors are
// returned as *diag.Error; warnings are returned alongside a nil error.
func Load(path string) (*agent.Definition, []diag.Diagnostic, error) {
	def, err := agent.LoadFromFile(path)
	if err != nil {
		return nil, nil, err
	}
	diags := agent.Validate(def)
	if diag.HasErrors(diags) {
		return def, diags, &diag.Error{Diagnostics: diag.Errors(diags)}
	}
	return def, diags, nil
}

// Deploy registers the agent at req.AgentPath as a new version on
// req.Endpoint. Every attempt that gets past loading is recorded in history.
// Returned errors are prefixed "failed to deploy agent" and keep their cause
// for errors.Is and errors.As.
func (d *Deployer) Deploy(ctx context.Context, req Request) (res Result, err error) {
	started := time.Now()
	ctx, span := d.tracer.Start(ctx, "deploy.agent", trace.WithAttributes(
		attribute.String("foundryctl.agent_path", req.AgentPath),
	))
	defer func() {
		if err != nil {
			err = fmt.Errorf("failed to deploy agent: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	endpoint, err := d.checkEndpoint(req.Endpoint)
	if err != nil {
		return Result{}, err
	}
	res.Endpoint = endpoint

	def, diags, err := d.load(ctx, req.AgentPath)
	if err != nil {
		return res, err
	}
	res.Name = def.Name
	res.Model = def.Model.ID
	res.Metadata = def.Metadata
	res.Warnings = diag.Warnings(diags)
	span.SetAttributes(
		attribute.String("foundryctl.agent", def.Name),
		attribute.String("foundryctl.model", def.Model.ID),
	)

	defer func() {
		res.HistoryID = d.record(ctx, res, err)
		if d.observer != nil {
			d.observer.ObserveDeployment(foundryotel.DeploymentObservation{
				Kind:      string(history.KindAgent),
				Name:      res.Name,
				Succeeded: err == nil,
				Duration:  time.Since(started),
			})
		}
	}()

	client, credName, err := d.connect(ctx, endpoint)
	if err != nil {
		return res, err
	}
	res.Credential = credName

	tools, err := d.buildTools(ctx, def, client)
	if err != nil {
		return res, err
	}
	res.ToolCount = len(tools)

	version, err := d.submit(ctx, client, def, tools)
	if err != nil {
		return res, err
	}
	res.ID = version.ID
	res.Version = version.Version
	if version.Name != "" {
		res.Name = version.Name
	}
	d.logger.Info("agent deployed",
		"id", res.ID,
		"name", res.Name,
		"version", res.Version,
		"tools", res.ToolCount,
	)
	return res, nil
}

func (d *Deployer) checkEndpoint(endpoint string) (string, error) {
	if strings.TrimSpace(endpoint) == "" {
		return "", ErrEndpointRequired
	}
	return foundry.ValidateEndpoint(endpoint)
}

func (d *Deployer) load(ctx context.Context, path string) (*agent.Definition, []diag.Diagnostic, error) {
	_, span := d.tracer.Start(ctx, "deploy.agent.load")
	defer span.End()

	d.logger.Info("loading agent", "path", path)
	def, diags, err := Load(path)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, diags, err
	}
	for _, w := range diag.Warnings(diags) {
		d.logger.Warn("agent definition warning", "code", w.Code, "path", w.Path, "message", w.Message)
	}
	return def, diags, nil
}

func (d *Deployer) connect(ctx context.Context, endpoint string) (AgentClient, string, error) {
	ctx, span := d.tracer.Start(ctx, "deploy.agent.connect")
	defer span.End()

	resolved, err := d.credentials.Resolve(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "credential resolution failed")
		return nil, "", err
	}
	span.SetAttributes(attribute.String("foundryctl.credential", resolved.Provider))

	client, err := d.newClient(endpoint, resolved.Credential)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, resolved.Provider, fmt.Errorf("connecting to %s: %w", endpoint, err)
	}
	d.logger.Info("connected to foundry", "endpoint", endpoint, "credential", resolved.Provider)
	return client, resolved.Provider, nil
}

func (d *Deployer) buildTools(ctx context.Context, def *agent.Definition, client AgentClient) ([]tool.Descriptor, error) {
	_, span := d.tracer.Start(ctx, "deploy.agent.tools", trace.WithAttributes(
		attribute.Int("foundryctl.tools.declared", len(def.Tools)),
	))
	defer span.End()

	tools, err := tool.Build(def.Tools, client)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("foundryctl.tools.built", len(tools)))
	return tools, nil
}

func (d *Deployer) submit(ctx context.Context, client AgentClient, def *agent.Definition, tools []tool.Descriptor) (foundry.AgentVersion, error) {
	ctx, span := d.tracer.Start(ctx, "deploy.agent.submit")
	defer span.End()

	d.logger.Info("deploying agent", "name", def.Name, "model", def.Model.ID, "tools", len(tools))
	version, err := client.CreateAgentVersion(ctx, def.Name, foundry.PromptAgentDefinition{
		Model:        def.Model.ID,
		Instructions: def.EffectiveInstructions(),
		Tools:        tools,
	}, def.Metadata)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return foundry.AgentVersion{}, err
	}
	return version, nil
}

func (d *Deployer) record(ctx context.Context, res Result, err error) string {
	rec := history.Record{
		Kind:   history.KindAgent,
		Name:   res.Name,
		Target: res.Endpoint,
		Status: history.StatusSucceeded,
		Attributes: map[string]string{
			"model":      res.Model,
			"agent_id":   res.ID,
			"version":    res.Version,
			"credential": res.Credential,
			"tool_count": fmt.Sprint(res.ToolCount),
		},
	}
	if err != nil {
		rec.Status = history.StatusFailed
		rec.Detail = err.Error()
	}
	saved, recErr := d.recorder.Record(context.WithoutCancel(ctx), rec)
	if recErr != nil {
		d.logger.Warn("recording deployment history failed", "error", recErr)
		return ""
	}
	return saved.ID
}
