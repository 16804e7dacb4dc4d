package cvapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultPollInterval is how often job state is re-read while waiting.
const DefaultPollInterval = 10 * time.Second

// DefaultActionTimeout bounds how long kill/pause/resume wait for the job
// to reach the requested state.
const DefaultActionTimeout = 10 * time.Minute

var finishedStatuses = map[string]bool{
	"completed":                         true,
	"completed w/ one or more errors":   true,
	"completed w/ one or more warnings": true,
	"committed":                         true,
	"failed":                            true,
	"failed to start":                   true,
	"killed":                            true,
}

var failedStatuses = map[string]bool{
	"failed":          true,
	"failed to start": true,
	"killed":          true,
}

// IsFinished reports whether a job status is terminal.
func IsFinished(status string) bool {
	return finishedStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// IsSuccessful reports whether a terminal status counts as success.
// Completion with errors or warnings still counts.
func IsSuccessful(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	return finishedStatuses[s] && !failedStatuses[s]
}

// pollJob re-reads a job until done reports true or the timeout elapses.
// The first read happens immediately. It returns the last summary seen and
// whether done was reached.
func pollJob(ctx context.Context, clk clock.Clock, interval, timeout time.Duration,
	read func(context.Context) (JobSummary, error), done func(JobSummary) bool, onUpdate func(JobSummary)) (JobSummary, bool, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = clk.Now().Add(timeout)
	}
	ticker := clk.Ticker(interval)
	defer ticker.Stop()
	for {
		s, err := read(ctx)
		if err != nil {
			return s, false, err
		}
		if onUpdate != nil {
			onUpdate(s)
		}
		if done(s) {
			return s, true, nil
		}
		if !deadline.IsZero() && !clk.Now().Before(deadline) {
			return s, false, nil
		}
		select {
		case <-ctx.Done():
			return s, false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitForCompletion is the shared WaitForCompletion body.
func waitForCompletion(ctx context.Context, clk clock.Clock, interval, timeout time.Duration,
	read func(context.Context) (JobSummary, error), onUpdate func(JobSummary)) (bool, error) {
	s, finished, err := pollJob(ctx, clk, interval, timeout, read, func(s JobSummary) bool { return IsFinished(s.Status) }, onUpdate)
	if err != nil || !finished {
		return false, err
	}
	return IsSuccessful(s.Status), nil
}

// waitForStatus is used by kill/pause/resume when the caller asks to wait.
// It gives up with a RemoteOperationError once timeout elapses.
func waitForStatus(ctx context.Context, clk clock.Clock, interval, timeout time.Duration,
	read func(context.Context) (JobSummary, error), verb string, statuses ...string) error {
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	s, reached, err := pollJob(ctx, clk, interval, timeout, read, func(s JobSummary) bool {
		for _, want := range statuses {
			if strings.EqualFold(s.Status, want) {
				return true
			}
		}
		return IsFinished(s.Status)
	}, nil)
	if err != nil {
		return err
	}
	if !reached {
		return &RemoteOperationError{
			Operation: verb,
			Message:   fmt.Sprintf("job %s still %s after %s", s.JobID, s.Status, timeout),
		}
	}
	return nil
}
