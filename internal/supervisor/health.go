package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"mcpbridge/pkg/logging"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard five-field expressions and descriptors
// such as "@every 30s" or "@hourly".
var scheduleParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// HealthScheduler runs Supervisor.CheckHealth on a cron schedule.
type HealthScheduler struct {
	supervisor *Supervisor
	schedule   cron.Schedule
	spec       string

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewHealthScheduler parses spec and binds it to sup.
func NewHealthScheduler(sup *Supervisor, spec string) (*HealthScheduler, error) {
	if sup == nil {
		return nil, errors.New("supervisor: health scheduler needs a supervisor")
	}
	clean := strings.TrimSpace(spec)
	if clean == "" {
		return nil, errors.New("supervisor: health check schedule is required")
	}
	schedule, err := scheduleParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid health check schedule %q: %w", clean, err)
	}
	return &HealthScheduler{supervisor: sup, schedule: schedule, spec: clean}, nil
}

// Start begins periodic checks. Calling Start on a running scheduler is a
// no-op.
func (h *HealthScheduler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cron != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithParser(scheduleParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(h.schedule, cron.FuncJob(func() { h.RunOnce(runCtx) }))
	c.Start()

	h.cron = c
	h.cancel = cancel
	logging.Info("HealthScheduler", "Health checks scheduled (%s)", h.spec)
	return nil
}

// Stop cancels any running check and waits for it to return.
func (h *HealthScheduler) Stop() {
	h.mu.Lock()
	c, cancel := h.cron, h.cancel
	h.cron, h.cancel = nil, nil
	h.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	logging.Debug("HealthScheduler", "Health checks stopped")
}

// RunOnce performs one health sweep and returns the evicted server names.
func (h *HealthScheduler) RunOnce(ctx context.Context) []string {
	if ctx.Err() != nil {
		return nil
	}
	unhealthy := h.supervisor.CheckHealth(ctx)
	if len(unhealthy) > 0 {
		logging.Warn("HealthScheduler", "Evicted unhealthy MCP servers: %s", strings.Join(unhealthy, ", "))
	}
	return unhealthy
}
