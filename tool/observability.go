package tool

import (
	"context"
	"log/slog"
	"sync"
)

// BuildObservation captures one Build outcome.
type BuildObservation struct {
	Declared  int
	Built     int
	Skipped   int
	Degraded  int
	Failed    bool
	ErrorCode string
}

// Observer receives registry-level observability events.
type Observer interface {
	ObserveWarning(warning Warning)
	ObserveBuild(observation BuildObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveWarning(Warning)        {}
func (noopObserver) ObserveBuild(BuildObservation) {}

var (
	observerMu     sync.RWMutex
	activeObserver Observer = noopObserver{}
)

// SetObserver sets the process-wide registry observer. Passing nil restores
// the noop observer.
func SetObserver(observer Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	if observer == nil {
		activeObserver = noopObserver{}
		return
	}
	activeObserver = observer
}

func currentObserver() Observer {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return activeObserver
}

// MultiObserver fans out events to several observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver forwards events to all non-nil observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &MultiObserver{observers: filtered}
}

func (m *MultiObserver) ObserveWarning(warning Warning) {
	for _, obs := range m.observers {
		obs.ObserveWarning(warning)
	}
}

func (m *MultiObserver) ObserveBuild(observation BuildObservation) {
	for _, obs := range m.observers {
		obs.ObserveBuild(observation)
	}
}

// LogObserver writes warnings and build summaries to a slog.Logger.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver. A nil logger uses slog.Default().
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) ObserveWarning(warning Warning) {
	o.logger.LogAttrs(context.Background(), slog.LevelWarn, warning.Message,
		slog.String("code", warning.Code),
		slog.String("path", warning.Path),
		slog.String("tool_id", warning.ToolID),
		slog.String("tool_type", warning.Type),
	)
}

func (o *LogObserver) ObserveBuild(observation BuildObservation) {
	attrs := []slog.Attr{
		slog.Int("declared", observation.Declared),
		slog.Int("built", observation.Built),
		slog.Int("skipped", observation.Skipped),
		slog.Int("degraded", observation.Degraded),
	}
	if observation.Failed {
		attrs = append(attrs, slog.String("error_code", observation.ErrorCode))
		o.logger.LogAttrs(context.Background(), slog.LevelError, "tool build failed", attrs...)
		return
	}
	o.logger.LogAttrs(context.Background(), slog.LevelDebug, "tool build finished", attrs...)
}
