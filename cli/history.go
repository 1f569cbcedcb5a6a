package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/foundryctl/history"
)

// NewHistoryCmd creates the "history" command group.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded deployments",
	}
	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent deployments, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of records")
	cmd.Flags().String("kind", "", "Filter by kind: agent | guardrails")
	cmd.Flags().String("name", "", "Filter by agent or deployment name")
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	limit, _ := cmd.Flags().GetInt("limit")
	kind, _ := cmd.Flags().GetString("kind")
	name, _ := cmd.Flags().GetString("name")
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	switch history.Kind(kind) {
	case "", history.KindAgent, history.KindGuardrails:
	default:
		return exitError(exitValidation, "unknown kind %q (want agent or guardrails)", kind)
	}

	store, err := s.openHistory()
	if err != nil {
		return exitError(exitRuntime, "opening deployment history: %v", err)
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), history.ListFilter{
		Kind:  history.Kind(kind),
		Name:  name,
		Limit: limit,
	})
	if err != nil {
		return classify(err)
	}

	if format == "json" {
		if records == nil {
			records = []history.Record{}
		}
		writeJSON(out, records)
		return nil
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No deployments recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tKIND\tNAME\tTARGET\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %s\n",
			r.CreatedAt.Local().Format(time.DateTime),
			r.Kind,
			r.Name,
			r.Target,
			checkMark(r.Status == history.StatusSucceeded),
			r.Status,
		)
	}
	return tw.Flush()
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one deployment record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	store, err := s.openHistory()
	if err != nil {
		return exitError(exitRuntime, "opening deployment history: %v", err)
	}
	defer store.Close()

	rec, ok, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return classify(err)
	}
	if !ok {
		return exitError(exitFileNotFound, "deployment %s not found", args[0])
	}
	writeJSON(cmd.OutOrStdout(), rec)
	return nil
}
