// Package guardrails deploys the AI Foundry content-filter policies with
// Bicep templates through the az CLI, and verifies their provisioning state.
package guardrails

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/foundryctl/history"
	foundryotel "github.com/petal-labs/foundryctl/otel"
)

const (
	// DefaultEnvironment is used when no environment is given.
	DefaultEnvironment = "nonprod"
	// DefaultResourceGroup is used when AZURE_RESOURCE_GROUP is unset.
	DefaultResourceGroup = "ad-usa-poc"

	provisioningSucceeded = "Succeeded"
)

var (
	// TemplatePath is the Bicep template, relative to the project root.
	TemplatePath = filepath.Join("infrastructure", "modules", "guardrails", "content_filter.bicep")
	// ParametersPath is the Bicep parameters file, relative to the project root.
	ParametersPath = filepath.Join("infrastructure", "parameters", "guardrails", "guardrails.bicepparam")
)

// Step names a deployment phase.
type Step string

const (
	StepPreflight Step = "preflight"
	StepValidate  Step = "validate"
	StepWhatIf    Step = "what-if"
	StepDeploy    Step = "deploy"
	StepVerify    Step = "verify"
)

// StepError is a failed phase with the command's stderr.
type StepError struct {
	Step   Step
	Stderr string
	Err    error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("guardrails: %s failed: %v", e.Step, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

// ErrNotSucceeded is wrapped when the deployment reports a state other than Succeeded.
var ErrNotSucceeded = errors.New("deployment did not succeed")

// Config locates the templates and the target resource group.
type Config struct {
	// ProjectRoot is resolved to an absolute path by NewDeployer so the
	// template arguments do not depend on the runner's working directory.
	ProjectRoot   string
	ResourceGroup string
	Environment   string
	// AZ is the az executable. Defaults to "az".
	AZ string
}

// Result summarises a deployment.
type Result struct {
	DeploymentName    string
	ResourceGroup     string
	Environment       string
	Template          string
	Parameters        string
	WhatIf            string
	WhatIfError       string
	Outputs           string
	ProvisioningState string
}

// Deployer runs the guardrail deployment phases.
type Deployer struct {
	cfg      Config
	runner   Runner
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder history.Recorder
	observer foundryotel.DeploymentObserver
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deployer) { d.logger = logger }
}

// WithTracer sets the tracer (default: global provider).
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Deployer) { d.tracer = tracer }
}

// WithRecorder records each deployment attempt.
func WithRecorder(recorder history.Recorder) Option {
	return func(d *Deployer) { d.recorder = recorder }
}

// WithObserver reports each finished deployment, e.g. to *otel.Metrics.
func WithObserver(observer foundryotel.DeploymentObserver) Option {
	return func(d *Deployer) { d.observer = observer }
}

// NewDeployer normalises cfg and returns a Deployer.
func NewDeployer(cfg Config, runner Runner, opts ...Option) *Deployer {
	cfg.Environment = NormalizeEnvironment(cfg.Environment)
	if strings.TrimSpace(cfg.ResourceGroup) == "" {
		cfg.ResourceGroup = DefaultResourceGroup
	}
	if strings.TrimSpace(cfg.AZ) == "" {
		cfg.AZ = "az"
	}
	if root, err := filepath.Abs(cfg.ProjectRoot); err == nil {
		cfg.ProjectRoot = root
	}
	if runner == nil {
		runner = &OSRunner{Dir: cfg.ProjectRoot}
	}
	d := &Deployer{
		cfg:      cfg,
		runner:   runner,
		logger:   slog.Default(),
		tracer:   otel.Tracer(foundryotel.ScopeName),
		recorder: history.Nop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// NormalizeEnvironment lower-cases env and applies the default.
func NormalizeEnvironment(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" {
		return DefaultEnvironment
	}
	return env
}

// Config returns the effective configuration.
func (d *Deployer) Config() Config {
	return d.cfg
}

// DeploymentName is the ARM deployment name for the environment.
func (d *Deployer) DeploymentName() string {
	return "guardrails-" + d.cfg.Environment
}

func (d *Deployer) templateFile() string {
	return filepath.Join(d.cfg.ProjectRoot, TemplatePath)
}

func (d *Deployer) parametersFile() string {
	return filepath.Join(d.cfg.ProjectRoot, ParametersPath)
}

// Deploy validates the template, previews changes, deploys and verifies.
// A failed what-if is reported in the result but does not stop the deploy.
func (d *Deployer) Deploy(ctx context.Context) (res Result, err error) {
	started := time.Now()
	ctx, span := d.tracer.Start(ctx, "deploy.guardrails", trace.WithAttributes(
		attribute.String("foundryctl.environment", d.cfg.Environment),
		attribute.String("foundryctl.resource_group", d.cfg.ResourceGroup),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		d.record(ctx, res, err)
		if d.observer != nil {
			d.observer.ObserveDeployment(foundryotel.DeploymentObservation{
				Kind:      string(history.KindGuardrails),
				Name:      d.DeploymentName(),
				Succeeded: err == nil,
				Duration:  time.Since(started),
			})
		}
	}()

	res = Result{
		DeploymentName: d.DeploymentName(),
		ResourceGroup:  d.cfg.ResourceGroup,
		Environment:    d.cfg.Environment,
		Template:       d.templateFile(),
		Parameters:     d.parametersFile(),
	}

	if err := d.preflight(); err != nil {
		return res, err
	}

	d.logger.Info("validating bicep template", "template", res.Template)
	if _, err := d.run(ctx, StepValidate, "bicep", "build", "--file", res.Template); err != nil {
		return res, err
	}

	d.logger.Info("running what-if analysis", "deployment", res.DeploymentName+"-whatif")
	whatIf, whatIfErr := d.run(ctx, StepWhatIf, "deployment", "group", "what-if",
		"--resource-group", res.ResourceGroup,
		"--template-file", res.Template,
		"--parameters", res.Parameters,
		"--name", res.DeploymentName+"-whatif",
	)
	res.WhatIf = whatIf
	if whatIfErr != nil {
		res.WhatIfError = whatIfErr.Error()
		d.logger.Warn("what-if analysis failed, continuing", "error", whatIfErr)
	}

	d.logger.Info("deploying content filter", "deployment", res.DeploymentName)
	outputs, err := d.run(ctx, StepDeploy, "deployment", "group", "create",
		"--resource-group", res.ResourceGroup,
		"--template-file", res.Template,
		"--parameters", res.Parameters,
		"--name", res.DeploymentName,
	)
	if err != nil {
		return res, err
	}
	res.Outputs = outputs

	state, err := d.ProvisioningState(ctx)
	res.ProvisioningState = state
	if err != nil {
		return res, err
	}
	d.logger.Info("deployment verified", "state", state)
	return res, nil
}

// ProvisioningState reads the deployment's provisioning state. Any state
// other than Succeeded is returned together with an error wrapping
// ErrNotSucceeded.
func (d *Deployer) ProvisioningState(ctx context.Context) (string, error) {
	out, err := d.run(ctx, StepVerify, "deployment", "group", "show",
		"--resource-group", d.cfg.ResourceGroup,
		"--name", d.DeploymentName(),
		"--query", "properties.provisioningState",
		"-o", "tsv",
	)
	if err != nil {
		return "", err
	}
	state := strings.TrimSpace(out)
	if state != provisioningSucceeded {
		return state, &StepError{
			Step: StepVerify,
			Err:  fmt.Errorf("%w: state %q", ErrNotSucceeded, state),
		}
	}
	return state, nil
}

func (d *Deployer) preflight() error {
	for _, f := range []struct{ label, path string }{
		{"bicep template", d.templateFile()},
		{"parameters file", d.parametersFile()},
	} {
		if _, err := os.Stat(f.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return &StepError{Step: StepPreflight, Err: fmt.Errorf("%s not found: %s: %w", f.label, f.path, err)}
			}
			return &StepError{Step: StepPreflight, Err: err}
		}
	}
	return nil
}

func (d *Deployer) run(ctx context.Context, step Step, args ...string) (string, error) {
	ctx, span := d.tracer.Start(ctx, "guardrails."+string(step))
	defer span.End()

	stdout, stderr, err := d.runner.Run(ctx, d.cfg.AZ, args...)
	if err != nil {
		stepErr := &StepError{Step: step, Stderr: string(stderr), Err: err}
		span.RecordError(stepErr)
		span.SetStatus(codes.Error, err.Error())
		return string(stdout), stepErr
	}
	return string(stdout), nil
}

func (d *Deployer) record(ctx context.Context, res Result, err error) {
	rec := history.Record{
		Kind:        history.KindGuardrails,
		Name:        d.DeploymentName(),
		Target:      d.cfg.ResourceGroup,
		Environment: d.cfg.Environment,
		Status:      history.StatusSucceeded,
		Attributes: map[string]string{
			"provisioning_state": res.ProvisioningState,
		},
	}
	if err != nil {
		rec.Status = history.StatusFailed
		rec.Detail = err.Error()
	}
	if _, recErr := d.recorder.Record(context.WithoutCancel(ctx), rec); recErr != nil {
		d.logger.Warn("recording deployment history failed", "error", recErr)
	}
}
