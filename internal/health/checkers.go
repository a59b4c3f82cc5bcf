package health

import (
	"context"
	"fmt"
	"time"
)

// PingChecker adapts a store Ping method into a Checker.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingChecker creates a checker around a ping function.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// QueueChecker degrades readiness as the job queue fills up.
type QueueChecker struct {
	depth    func() int
	capacity func() int
}

// NewQueueChecker creates a checker over queue depth accessors.
func NewQueueChecker(depth, capacity func() int) *QueueChecker {
	return &QueueChecker{depth: depth, capacity: capacity}
}

func (c *QueueChecker) Name() string { return "queue" }

func (c *QueueChecker) Check(_ context.Context) CheckResult {
	d, size := c.depth(), c.capacity()
	msg := fmt.Sprintf("%d/%d queued", d, size)
	switch {
	case size > 0 && d >= size:
		return CheckResult{Status: StatusUnhealthy, Message: msg}
	case size > 0 && d*10 >= size*8: // 80% full
		return CheckResult{Status: StatusDegraded, Message: msg}
	default:
		return CheckResult{Status: StatusHealthy, Message: msg}
	}
}

// LastRunChecker surfaces the outcome of the most recent enrichment run.
// A daemon that has not processed anything yet is still healthy; webhook
// traffic may simply not have arrived.
type LastRunChecker struct {
	getLastRun func() (time.Time, string)
}

// NewLastRunChecker creates a checker for last run status.
func NewLastRunChecker(getLastRun func() (time.Time, string)) *LastRunChecker {
	return &LastRunChecker{getLastRun: getLastRun}
}

func (c *LastRunChecker) Name() string { return "last_run" }

func (c *LastRunChecker) Check(_ context.Context) CheckResult {
	lastRun, lastError := c.getLastRun()

	if lastRun.IsZero() {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "no runs yet",
		}
	}

	if lastError != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   lastError,
			Message: "last run failed",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "last run successful",
	}
}
