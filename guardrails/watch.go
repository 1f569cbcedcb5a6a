package guardrails

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var watchScheduleParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// ParseSchedule parses a five-field cron expression (or descriptor such as
// "@hourly") evaluated in UTC.
func ParseSchedule(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := watchScheduleParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// Check is one provisioning-state observation made by Watch.
type Check struct {
	At      time.Time
	State   string
	Drifted bool
	Err     error
}

// Watch re-reads the provisioning state on schedule until ctx is cancelled.
// Each observation is passed to fn (may be nil) and logged; a state other
// than Succeeded is logged as drift. Returns nil on cancellation.
func (d *Deployer) Watch(ctx context.Context, expr string, fn func(Check)) error {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return err
	}
	return d.watch(ctx, schedule, time.Now, time.After, fn)
}

func (d *Deployer) watch(
	ctx context.Context,
	schedule cron.Schedule,
	now func() time.Time,
	after func(time.Duration) <-chan time.Time,
	fn func(Check),
) error {
	for {
		current := now().UTC()
		next := schedule.Next(current)
		if next.IsZero() {
			return fmt.Errorf("cron schedule has no future runs")
		}
		d.logger.Debug("next guardrails check scheduled", "at", next)

		select {
		case <-ctx.Done():
			return nil
		case <-after(next.Sub(current)):
		}

		check := d.check(ctx)
		if fn != nil {
			fn(check)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (d *Deployer) check(ctx context.Context) Check {
	state, err := d.ProvisioningState(ctx)
	c := Check{At: time.Now().UTC(), State: state, Err: err}
	switch {
	case errors.Is(err, ErrNotSucceeded):
		c.Drifted = true
		d.logger.Warn("guardrails deployment drifted",
			"deployment", d.DeploymentName(),
			"resource_group", d.cfg.ResourceGroup,
			"state", state,
		)
	case err != nil:
		d.logger.Error("guardrails state check failed",
			"deployment", d.DeploymentName(),
			"error", err,
		)
	default:
		d.logger.Info("guardrails deployment healthy",
			"deployment", d.DeploymentName(),
			"state", state,
		)
	}
	return c
}
