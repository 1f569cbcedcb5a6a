package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/petal-labs/foundryctl/agent"
	"github.com/petal-labs/foundryctl/deploy"
	"github.com/petal-labs/foundryctl/diag"
	"github.com/petal-labs/foundryctl/tool"
)

var (
	// deployOptions supplies extra deployer options; tests replace it.
	deployOptions = func() []deploy.Option { return nil }

	stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

// NewAgentCmd creates the "agent" command group.
func NewAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Validate and deploy agent definitions",
	}
	cmd.AddCommand(newAgentDeployCmd())
	cmd.AddCommand(newAgentValidateCmd())
	return cmd
}

func newAgentDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy [endpoint] [agent.yaml]",
		Short: "Register an agent definition as a new version in an AI Foundry project",
		Long: "Deploy an agent.yaml to an AI Foundry project.\n\n" +
			"The endpoint defaults to $FOUNDRY_ENDPOINT and the file to $AGENT_YAML_PATH\n" +
			"(or agent.yaml). On a terminal, a missing endpoint is prompted for.\n" +
			"Endpoint format: https://<account>.services.ai.azure.com/api/projects/<project-name>",
		Args: cobra.MaximumNArgs(2),
		RunE: runAgentDeploy,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

func runAgentDeploy(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	endpoint := s.env.FoundryEndpoint
	if len(args) > 0 {
		endpoint = args[0]
	}
	agentPath := s.env.AgentYAMLPath
	if len(args) > 1 {
		agentPath = args[1]
	}

	if strings.TrimSpace(endpoint) == "" {
		if !stdinIsTerminal() {
			return exitError(exitValidation, "foundry endpoint is required: pass it as an argument or set FOUNDRY_ENDPOINT")
		}
		endpoint, err = promptEndpoint(cmd.InOrStdin(), out)
		if err != nil {
			return exitError(exitValidation, "reading endpoint: %v", err)
		}
	}

	if format != "json" {
		banner(out, "Azure AI Foundry Agent Deployment")
		fmt.Fprintf(out, "Loading agent from: %s\n", agentPath)
	}

	recorder, closeHistory := s.recorder()
	defer closeHistory()

	opts := []deploy.Option{
		deploy.WithLogger(s.logger),
		deploy.WithRecorder(recorder),
		deploy.WithObserver(s.metrics),
	}
	opts = append(opts, deployOptions()...)

	res, err := deploy.NewDeployer(opts...).Deploy(cmd.Context(), deploy.Request{
		Endpoint:  endpoint,
		AgentPath: agentPath,
	})
	if err != nil {
		var diagErr *diag.Error
		if errors.As(err, &diagErr) {
			printDiagnostics(out, diagErr.Diagnostics, format)
		}
		if format != "json" {
			fmt.Fprintf(out, "\n%s DEPLOYMENT FAILED: %v\n", checkMark(false), err)
		}
		return classify(err)
	}

	if format == "json" {
		writeJSON(out, res)
		return nil
	}
	fmt.Fprintf(out, "Agent name: %s\n", res.Name)
	fmt.Fprintf(out, "Model: %s\n", res.Model)
	fmt.Fprintf(out, "%s Connected to Azure AI Foundry (using %s)\n", checkMark(true), res.Credential)
	fmt.Fprintf(out, "Tools: %d tool(s) configured\n", res.ToolCount)
	fmt.Fprintf(out, "\n%s Agent deployed successfully!\n", checkMark(true))
	fmt.Fprintf(out, "  Agent ID: %s\n", res.ID)
	fmt.Fprintf(out, "  Agent Name: %s\n", res.Name)
	fmt.Fprintf(out, "  Version: %s\n", res.Version)
	fmt.Fprintf(out, "  Endpoint: %s\n", res.Endpoint)
	return nil
}

func promptEndpoint(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprintln(out, "You need the Foundry Project endpoint URL.")
	fmt.Fprintln(out, "Format: https://<account>.services.ai.azure.com/api/projects/<project-name>")
	fmt.Fprint(out, "\nFoundry endpoint: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	endpoint := strings.TrimSpace(line)
	if endpoint == "" {
		return "", errors.New("no endpoint entered")
	}
	return endpoint, nil
}

func newAgentValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [agent.yaml]",
		Short: "Validate an agent definition and its tools without deploying",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAgentValidate,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Bool("strict", false, "Treat warnings as errors")
	return cmd
}

func runAgentValidate(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	format, _ := cmd.Flags().GetString("format")
	strict, _ := cmd.Flags().GetBool("strict")
	out := cmd.OutOrStdout()

	path := s.env.AgentYAMLPath
	if len(args) > 0 {
		path = args[0]
	}

	def, err := agent.LoadFromFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exitError(exitFileNotFound, "file not found: %s", path)
		}
		printDiagnostics(out, []diag.Diagnostic{
			diag.Errorf("AG-000", "", "Failed to load agent definition: %v", err),
		}, format)
		return exitError(exitValidation, "validation failed")
	}

	diags := agent.Validate(def)
	diags = append(diags, toolDiagnostics(def.Tools)...)
	printDiagnostics(out, diags, format)

	if diag.HasErrors(diags) || (strict && len(diag.Warnings(diags)) > 0) {
		return exitError(exitValidation, "validation failed")
	}
	return nil
}

// toolDiagnostics dry-runs the tool registry so that skipped, degraded and
// fatal declarations show up alongside the definition's own diagnostics.
func toolDiagnostics(decls []tool.Declaration) []diag.Diagnostic {
	_, warnings, err := tool.Check(decls)
	diags := make([]diag.Diagnostic, 0, len(warnings)+1)
	for _, w := range warnings {
		diags = append(diags, w.Diagnostic)
	}
	if verr, ok := tool.AsValidationError(err); ok {
		path := ""
		for i, d := range decls {
			if d.ID == verr.ToolID && string(verr.Kind) == d.Type {
				path = fmt.Sprintf("tools[%d]", i)
				break
			}
		}
		if verr.Option != "" && path != "" {
			path += ".options." + verr.Option
		}
		diags = append(diags, diag.Errorf(verr.Code, path, "%s", verr.Message))
	}
	return diags
}
