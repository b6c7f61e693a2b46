// Package scheduler runs OneBot actions on cron schedules, e.g. a periodic
// get_status probe or a daily group announcement.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/sipeed/onebot-go/pkg/config"
	"github.com/sipeed/onebot-go/pkg/logger"
)

// Invoker issues an action and waits for its result. *onebot.Client
// satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, action string, params any) (json.RawMessage, error)
}

// Job is one scheduled action.
type Job struct {
	Name     string         `json:"name"`
	Expr     string         `json:"expr"`
	Action   string         `json:"action"`
	Params   map[string]any `json:"params,omitempty"`
	Disabled bool           `json:"disabled,omitempty"`
}

// JobState is a job plus its run history.
type JobState struct {
	Job
	NextRun   time.Time `json:"next_run,omitempty"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
}

// Service fires due jobs against an Invoker.
type Service struct {
	inv     Invoker
	timeout time.Duration
	isDue   func(expr string, ref ...time.Time) (bool, error)

	mu      sync.Mutex
	jobs    []*JobState
	running bool
}

// New validates every job's cron expression. timeout bounds each action;
// 0 leaves it to the caller's context.
func New(inv Invoker, jobs []Job, timeout time.Duration) (*Service, error) {
	gron := gronx.New()

	var errs []error
	states := make([]*JobState, 0, len(jobs))
	for i, j := range jobs {
		if j.Name == "" {
			j.Name = fmt.Sprintf("%s#%d", j.Action, i)
		}
		if j.Action == "" {
			errs = append(errs, fmt.Errorf("job %s: action is required", j.Name))
			continue
		}
		if !gron.IsValid(j.Expr) {
			errs = append(errs, fmt.Errorf("job %s: invalid cron expression %q", j.Name, j.Expr))
			continue
		}
		states = append(states, &JobState{Job: j})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Service{
		inv:     inv,
		timeout: timeout,
		isDue:   gron.IsDue,
		jobs:    states,
	}, nil
}

// JobsFromConfig converts the schedules section of a config file.
func JobsFromConfig(schedules []config.ScheduleConfig) []Job {
	jobs := make([]Job, 0, len(schedules))
	for _, s := range schedules {
		jobs = append(jobs, Job{
			Name:     s.Name,
			Expr:     s.Cron,
			Action:   s.Action,
			Params:   s.Params,
			Disabled: s.Disabled,
		})
	}
	return jobs
}

// Run fires jobs at their scheduled times until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	logger.InfoCF("scheduler", "Scheduler started", map[string]interface{}{
		"jobs": len(s.jobs),
	})

	for {
		next, ok := s.plan(time.Now())
		if !ok {
			logger.InfoC("scheduler", "No enabled jobs, scheduler idle")
			<-ctx.Done()
			return nil
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			s.RunDue(ctx, next)
		}
	}
}

// plan records each job's next run after now and returns the earliest.
func (s *Service) plan(now time.Time) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earliest time.Time
	for _, j := range s.jobs {
		if j.Disabled {
			continue
		}
		next, err := gronx.NextTickAfter(j.Expr, now, false)
		if err != nil {
			logger.WarnCF("scheduler", "Cannot compute next run", map[string]interface{}{
				"job":   j.Name,
				"error": err.Error(),
			})
			continue
		}
		j.NextRun = next
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	return earliest, !earliest.IsZero()
}

// RunDue invokes, one after another, every enabled job due at the given
// time, and returns how many ran.
func (s *Service) RunDue(ctx context.Context, at time.Time) int {
	s.mu.Lock()
	var due []*JobState
	for _, j := range s.jobs {
		if j.Disabled {
			continue
		}
		ok, err := s.isDue(j.Expr, at)
		if err != nil || !ok {
			continue
		}
		due = append(due, j)
	}
	s.mu.Unlock()

	for _, j := range due {
		s.runJob(ctx, j, at)
	}
	return len(due)
}

func (s *Service) runJob(ctx context.Context, j *JobState, at time.Time) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var params any
	if j.Params != nil {
		params = j.Params
	}
	_, err := s.inv.Invoke(ctx, j.Action, params)

	s.mu.Lock()
	j.LastRun = at
	j.Runs++
	if err != nil {
		j.Failures++
		j.LastError = err.Error()
	} else {
		j.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		logger.WarnCF("scheduler", "Scheduled action failed", map[string]interface{}{
			"job":    j.Name,
			"action": j.Action,
			"error":  err.Error(),
		})
		return
	}
	logger.DebugCF("scheduler", "Scheduled action done", map[string]interface{}{
		"job":    j.Name,
		"action": j.Action,
	})
}

// ListJobs returns a snapshot of the jobs, optionally including disabled ones.
func (s *Service) ListJobs(includeDisabled bool) []JobState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobState, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.Disabled && !includeDisabled {
			continue
		}
		out = append(out, *j)
	}
	return out
}

// Status summarizes the scheduler.
func (s *Service) Status() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	enabled, failures := 0, 0
	var next time.Time
	for _, j := range s.jobs {
		failures += j.Failures
		if j.Disabled {
			continue
		}
		enabled++
		if !j.NextRun.IsZero() && (next.IsZero() || j.NextRun.Before(next)) {
			next = j.NextRun
		}
	}

	status := map[string]interface{}{
		"running":  s.running,
		"jobs":     len(s.jobs),
		"enabled":  enabled,
		"failures": failures,
	}
	if !next.IsZero() {
		status["next_run"] = next.Format(time.RFC3339)
	}
	return status
}
