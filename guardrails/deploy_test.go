package guardrails

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/petal-labs/foundryctl/guardrails/guardrailstest"
	"github.com/petal-labs/foundryctl/history"
	foundryotel "github.com/petal-labs/foundryctl/otel"
)

func writeTemplates(t *testing.T) string {
	t.Helper()
	return writeTemplatesAt(t, t.TempDir())
}

func writeTemplatesAt(t *testing.T, root string) string {
	t.Helper()
	for _, rel := range []string{TemplatePath, ParametersPath} {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("// test\n"), 0o600))
	}
	return root
}

type memRecorder struct {
	records []history.Record
}

func (m *memRecorder) Record(_ context.Context, rec history.Record) (history.Record, error) {
	m.records = append(m.records, rec)
	return rec, nil
}

func succeedingRunner() *guardrailstest.Runner {
	return guardrailstest.NewRunner().
		On("az deployment group create", guardrailstest.Response{Stdout: `{"properties":{"outputs":{}}}`}).
		On("az deployment group show", guardrailstest.Response{Stdout: "Succeeded\n"})
}

func TestDeploy_RunsAllSteps(t *testing.T) {
	root := writeTemplates(t)
	runner := succeedingRunner()
	rec := &memRecorder{}
	d := NewDeployer(Config{ProjectRoot: root, ResourceGroup: "rg-test", Environment: "Prod"}, runner, WithRecorder(rec))

	res, err := d.Deploy(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "guardrails-prod", res.DeploymentName)
	assert.Equal(t, "rg-test", res.ResourceGroup)
	assert.Equal(t, "prod", res.Environment)
	assert.Equal(t, "Succeeded", res.ProvisioningState)
	assert.Empty(t, res.WhatIfError)

	lines := runner.CallLines()
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "az bicep build --file "+filepath.Join(root, TemplatePath)))
	assert.Contains(t, lines[1], "az deployment group what-if --resource-group rg-test")
	assert.Contains(t, lines[1], "--name guardrails-prod-whatif")
	assert.Contains(t, lines[2], "az deployment group create --resource-group rg-test")
	assert.True(t, strings.HasSuffix(lines[2], "--name guardrails-prod"))
	assert.Equal(t, "az deployment group show --resource-group rg-test --name guardrails-prod --query properties.provisioningState -o tsv", lines[3])

	require.Len(t, rec.records, 1)
	assert.Equal(t, history.KindGuardrails, rec.records[0].Kind)
	assert.Equal(t, history.StatusSucceeded, rec.records[0].Status)
	assert.Equal(t, "prod", rec.records[0].Environment)
}

func TestDeploy_Defaults(t *testing.T) {
	d := NewDeployer(Config{}, guardrailstest.NewRunner())
	cfg := d.Config()
	assert.Equal(t, DefaultEnvironment, cfg.Environment)
	assert.Equal(t, DefaultResourceGroup, cfg.ResourceGroup)
	assert.Equal(t, "az", cfg.AZ)
	assert.Equal(t, "guardrails-nonprod", d.DeploymentName())
}

func TestDeploy_MissingTemplate(t *testing.T) {
	runner := guardrailstest.NewRunner()
	rec := &memRecorder{}
	d := NewDeployer(Config{ProjectRoot: t.TempDir()}, runner, WithRecorder(rec))

	_, err := d.Deploy(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepPreflight, stepErr.Step)
	assert.Empty(t, runner.Calls)

	require.Len(t, rec.records, 1)
	assert.Equal(t, history.StatusFailed, rec.records[0].Status)
}

func TestDeploy_BicepBuildFailureStops(t *testing.T) {
	runner := guardrailstest.NewRunner().On("az bicep build", guardrailstest.Response{
		Stderr: "Error BCP018: Expected the \"}\" character",
		Err:    &guardrailstest.ExitError{Code: 1},
	})
	d := NewDeployer(Config{ProjectRoot: writeTemplates(t)}, runner)

	_, err := d.Deploy(context.Background())
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepValidate, stepErr.Step)
	assert.Contains(t, err.Error(), "BCP018")
	assert.Len(t, runner.Calls, 1)
}

func TestDeploy_WhatIfFailureIsNotFatal(t *testing.T) {
	runner := succeedingRunner().On("az deployment group what-if", guardrailstest.Response{
		Stderr: "what-if unavailable",
		Err:    &guardrailstest.ExitError{Code: 1},
	})
	d := NewDeployer(Config{ProjectRoot: writeTemplates(t)}, runner)

	res, err := d.Deploy(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.WhatIfError, "what-if unavailable")
	assert.Len(t, runner.Calls, 4)
}

func TestDeploy_CreateFailureStops(t *testing.T) {
	runner := guardrailstest.NewRunner().On("az deployment group create", guardrailstest.Response{
		Stderr: "AuthorizationFailed",
		Err:    &guardrailstest.ExitError{Code: 1},
	})
	d := NewDeployer(Config{ProjectRoot: writeTemplates(t)}, runner)

	_, err := d.Deploy(context.Background())
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepDeploy, stepErr.Step)
	assert.Equal(t, "AuthorizationFailed", stepErr.Stderr)
	assert.Len(t, runner.Calls, 3)
}

func TestDeploy_VerifyRejectsFailedState(t *testing.T) {
	runner := guardrailstest.NewRunner().On("az deployment group show", guardrailstest.Response{Stdout: "Failed\n"})
	d := NewDeployer(Config{ProjectRoot: writeTemplates(t)}, runner)

	res, err := d.Deploy(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotSucceeded))
	assert.Equal(t, "Failed", res.ProvisioningState)
}

// fakeAZ fails unless every --file, --template-file and --parameters
// argument exists relative to its working directory.
const fakeAZ = `#!/bin/sh
prev=""
for arg in "$@"; do
	case "$prev" in
	--file|--template-file|--parameters)
		if [ ! -f "$arg" ]; then
			echo "cwd=$(pwd) missing $arg" >&2
			exit 1
		fi
		;;
	esac
	prev="$arg"
done
case "$*" in
*"deployment group show"*) echo Succeeded ;;
esac
`

func TestDeploy_RelativeProjectRootWithOSRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "az")
	require.NoError(t, os.WriteFile(bin, []byte(fakeAZ), 0o755))

	parent := t.TempDir()
	writeTemplatesAt(t, filepath.Join(parent, "repo"))
	t.Chdir(parent)

	d := NewDeployer(Config{ProjectRoot: "repo", AZ: bin}, nil)
	assert.True(t, filepath.IsAbs(d.Config().ProjectRoot))

	res, err := d.Deploy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Succeeded", res.ProvisioningState)
	assert.Equal(t, filepath.Join(parent, "repo", TemplatePath), res.Template)
}

func TestNormalizeEnvironment(t *testing.T) {
	assert.Equal(t, "nonprod", NormalizeEnvironment(""))
	assert.Equal(t, "nonprod", NormalizeEnvironment("  "))
	assert.Equal(t, "prod", NormalizeEnvironment(" PROD "))
}

type deploymentLog struct {
	observations []foundryotel.DeploymentObservation
}

func (l *deploymentLog) ObserveDeployment(o foundryotel.DeploymentObservation) {
	l.observations = append(l.observations, o)
}

func TestDeploy_TracesStepsAndReportsObservation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	obs := &deploymentLog{}
	d := NewDeployer(Config{ProjectRoot: writeTemplates(t)}, succeedingRunner(),
		WithTracer(tp.Tracer("test")),
		WithObserver(obs),
	)
	_, err := d.Deploy(context.Background())
	require.NoError(t, err)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{
		"guardrails.validate",
		"guardrails.what-if",
		"guardrails.deploy",
		"guardrails.verify",
		"deploy.guardrails",
	}, names)

	require.Len(t, obs.observations, 1)
	assert.Equal(t, "guardrails", obs.observations[0].Kind)
	assert.Equal(t, "guardrails-nonprod", obs.observations[0].Name)
	assert.True(t, obs.observations[0].Succeeded)
}
