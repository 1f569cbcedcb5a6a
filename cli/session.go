package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/petal-labs/foundryctl/config"
	"github.com/petal-labs/foundryctl/history"
	foundryotel "github.com/petal-labs/foundryctl/otel"
	"github.com/petal-labs/foundryctl/tool"
)

// session carries per-invocation wiring: logger, telemetry and the
// environment. Commands open one at the start of RunE and close it on return.
type session struct {
	env       config.Environment
	logger    *slog.Logger
	metrics   *foundryotel.Metrics
	providers *foundryotel.Providers
	cmd       *cobra.Command
}

func openSession(cmd *cobra.Command) (*session, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")
	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor {
		color.NoColor = true
	}

	s := &session{
		env:    config.FromOS(),
		logger: newLogger(cmd.ErrOrStderr(), verbose, quiet),
		cmd:    cmd,
	}

	if s.env.OTLPEndpoint != "" {
		providers, err := foundryotel.Setup(cmd.Context(), foundryotel.Config{
			ServiceVersion: cmd.Root().Version,
			Endpoint:       s.env.OTLPEndpoint,
		})
		if err != nil {
			s.logger.Warn("telemetry disabled", "error", err)
		} else {
			s.providers = providers
		}
	}

	metrics, err := foundryotel.NewMetrics(otel.Meter(foundryotel.ScopeName))
	if err != nil {
		return nil, err
	}
	s.metrics = metrics

	tool.SetObserver(tool.NewMultiObserver(tool.NewLogObserver(s.logger), metrics))
	return s, nil
}

func (s *session) close() {
	tool.SetObserver(nil)
	if s.providers == nil {
		return
	}
	if err := s.providers.Shutdown(context.WithoutCancel(s.cmd.Context())); err != nil {
		s.logger.Debug("telemetry shutdown failed", "error", err)
	}
}

// historyPath resolves --history-db, then FOUNDRYCTL_HISTORY_DB, then the
// default under the home directory.
func (s *session) historyPath() (string, error) {
	if p, _ := s.cmd.Flags().GetString("history-db"); p != "" {
		return p, nil
	}
	if s.env.HistoryDB != "" {
		return s.env.HistoryDB, nil
	}
	return history.DefaultPath()
}

func (s *session) openHistory() (*history.Store, error) {
	path, err := s.historyPath()
	if err != nil {
		return nil, err
	}
	return history.Open(path)
}

// recorder opens the history store for a deploy. Deploys still run when the
// store is unavailable.
func (s *session) recorder() (history.Recorder, func()) {
	store, err := s.openHistory()
	if err != nil {
		s.logger.Warn("deployment history unavailable", "error", err)
		return history.Nop{}, func() {}
	}
	return store, func() { _ = store.Close() }
}

func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
