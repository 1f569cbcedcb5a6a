package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/foundryctl/guardrails"
)

// defaultWatchSchedule checks every fifteen minutes.
const defaultWatchSchedule = "*/15 * * * *"

// newCommandRunner builds the az runner; tests replace it.
var newCommandRunner = func(dir string) guardrails.Runner {
	return &guardrails.OSRunner{Dir: dir}
}

// NewGuardrailsCmd creates the "guardrails" command group.
func NewGuardrailsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guardrails",
		Short: "Deploy and monitor content filter policies",
	}
	cmd.PersistentFlags().String("project-root", ".", "Repository root containing infrastructure/")
	cmd.PersistentFlags().String("resource-group", "", "Target resource group (default: $AZURE_RESOURCE_GROUP or ad-usa-poc)")
	cmd.PersistentFlags().String("az", "az", "Path to the az CLI")

	cmd.AddCommand(newGuardrailsDeployCmd())
	cmd.AddCommand(newGuardrailsWatchCmd())
	return cmd
}

func newGuardrailsDeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy [environment]",
		Short: "Validate, preview and deploy the guardrails Bicep template",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGuardrailsDeploy,
	}
}

func newGuardrailsWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [environment]",
		Short: "Re-check the guardrails provisioning state on a cron schedule (UTC)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGuardrailsWatch,
	}
	cmd.Flags().String("schedule", defaultWatchSchedule, "Five-field cron expression, evaluated in UTC")
	return cmd
}

func (s *session) guardrailsDeployer(args []string, opts ...guardrails.Option) *guardrails.Deployer {
	flags := s.cmd.Flags()
	root, _ := flags.GetString("project-root")
	rg, _ := flags.GetString("resource-group")
	az, _ := flags.GetString("az")
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	env := s.env.GuardrailsEnvironment
	if len(args) > 0 {
		env = args[0]
	}
	if strings.TrimSpace(rg) == "" {
		rg = s.env.ResourceGroup
	}

	opts = append([]guardrails.Option{
		guardrails.WithLogger(s.logger),
		guardrails.WithObserver(s.metrics),
	}, opts...)
	return guardrails.NewDeployer(guardrails.Config{
		ProjectRoot:   root,
		ResourceGroup: rg,
		Environment:   env,
		AZ:            az,
	}, newCommandRunner(root), opts...)
}

func runGuardrailsDeploy(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	recorder, closeHistory := s.recorder()
	defer closeHistory()

	d := s.guardrailsDeployer(args, guardrails.WithRecorder(recorder))
	cfg := d.Config()
	out := cmd.OutOrStdout()

	banner(out, "Guardrails Deployment")
	fmt.Fprintf(out, "Environment:     %s\n", cfg.Environment)
	fmt.Fprintf(out, "Resource Group:  %s\n", cfg.ResourceGroup)
	fmt.Fprintf(out, "Deployment Name: %s\n\n", d.DeploymentName())

	res, err := d.Deploy(cmd.Context())
	if res.WhatIf != "" {
		fmt.Fprintln(out, "What-if analysis:")
		fmt.Fprintln(out, strings.TrimSpace(res.WhatIf))
		fmt.Fprintln(out)
	}
	if res.WhatIfError != "" {
		fmt.Fprintf(out, "%s What-if analysis failed (continuing): %s\n", checkMark(false), res.WhatIfError)
	}
	if err != nil {
		fmt.Fprintf(out, "%s Guardrails deployment failed: %v\n", checkMark(false), err)
		return classify(err)
	}

	fmt.Fprintf(out, "%s Guardrails deployed successfully (state: %s)\n", checkMark(true), res.ProvisioningState)
	return nil
}

func runGuardrailsWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	schedule, _ := cmd.Flags().GetString("schedule")
	if _, err := guardrails.ParseSchedule(schedule); err != nil {
		return exitError(exitValidation, "%v", err)
	}

	d := s.guardrailsDeployer(args)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s in %s (schedule %q, UTC)\n", d.DeploymentName(), d.Config().ResourceGroup, schedule)

	err = d.Watch(cmd.Context(), schedule, func(c guardrails.Check) {
		ok := c.Err == nil
		state := c.State
		if state == "" {
			state = "unknown"
		}
		fmt.Fprintf(out, "%s %s %s\n", checkMark(ok), c.At.Format("2006-01-02T15:04:05Z"), state)
	})
	return classify(err)
}
