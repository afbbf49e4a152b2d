package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner schedules both cycles. Each run gets its own timeout and its
// errors are contained, so a failed cycle only skips that iteration.
type Runner struct {
	notifier *Notifier
	cron     *cron.Cron
}

func NewRunner(notifier *Notifier, newEvery, updatedEvery time.Duration) (*Runner, error) {
	r := &Runner{notifier: notifier, cron: cron.New()}

	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", newEvery), func() {
		r.runCycle("new-events", r.notifier.NewEventsCycle)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule new-events cycle: %w", err)
	}
	_, err = r.cron.AddFunc(fmt.Sprintf("@every %s", updatedEvery), func() {
		r.runCycle("updated-events", r.notifier.UpdatedEventsCycle)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule updated-events cycle: %w", err)
	}
	return r, nil
}

func (r *Runner) runCycle(name string, cycle func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := cycle(ctx); err != nil {
		log.Printf("WARN: %s cycle failed: %v", name, err)
	}
}

func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for an in-flight cycle to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}
