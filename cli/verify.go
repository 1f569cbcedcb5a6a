package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/petal-labs/foundryctl/structure"
)

// NewVerifyCmd creates the "verify" command group.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify repository health",
	}
	cmd.AddCommand(newVerifyStructureCmd())
	return cmd
}

func newVerifyStructureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "structure",
		Short: "Check that templates, pipelines and docs are where deployments expect them",
		Args:  cobra.NoArgs,
		RunE:  runVerifyStructure,
	}
	cmd.Flags().String("root", ".", "Repository root to verify")
	cmd.Flags().String("checklist", "", "YAML checklist to use instead of the built-in one")
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

func runVerifyStructure(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	root, _ := cmd.Flags().GetString("root")
	checklistPath, _ := cmd.Flags().GetString("checklist")
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return exitError(exitFileNotFound, "repository root not found: %s", root)
	}

	s.logger.Debug("verifying repository structure", "root", root, "checklist", checklistPath)
	checklist := structure.DefaultChecklist()
	if checklistPath != "" {
		checklist, err = structure.LoadChecklist(checklistPath)
		if err != nil {
			return classify(err)
		}
	}

	report := structure.Run(os.DirFS(root), checklist)

	if format == "json" {
		writeJSON(out, struct {
			Passed  bool               `json:"passed"`
			Results []structure.Result `json:"results"`
		}{report.Passed(), report.Results})
	} else {
		printStructureReport(out, report)
	}

	if !report.Passed() {
		return exitError(exitStructure, "%d structure %s failed", len(report.Failed()), pluralize("check", len(report.Failed())))
	}
	return nil
}

func printStructureReport(w io.Writer, report structure.Report) {
	banner(w, "Repository Structure Verification")

	section := ""
	for _, res := range report.Results {
		if res.Section != section {
			section = res.Section
			fmt.Fprintf(w, "\n%s:\n", section)
		}
		c := res.Check
		switch {
		case len(res.Needles) > 0:
			if res.Detail == "file not found" {
				fmt.Fprintf(w, "%s %s: File not found - %s\n", checkMark(false), c.Description, c.Path)
				continue
			}
			for _, n := range res.Needles {
				verb := "Found"
				if !n.Found {
					verb = "Missing"
				}
				fmt.Fprintf(w, "%s %s: %s '%s'\n", checkMark(n.Found), c.Description, verb, n.Needle)
			}
		case c.Pattern != "":
			fmt.Fprintf(w, "%s %s: %s (%d matched)\n", checkMark(res.Passed), c.Description, c.Pattern, len(res.Matches))
		default:
			fmt.Fprintf(w, "%s %s: %s\n", checkMark(res.Passed), c.Description, c.Path)
		}
	}

	fmt.Fprintln(w)
	if report.Passed() {
		banner(w, checkMark(true)+" All checks passed! Repository structure is correct.")
	} else {
		banner(w, checkMark(false)+" Some checks failed. Please review the output above.")
	}
}
