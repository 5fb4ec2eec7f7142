// Package schedule runs the Edge Discoverer (and future job types) on a
// cron-style cadence from a YAML job list: Job{Name,Schedule,Type,Enabled}
// entries dispatched to handlers keyed by Type, e.g.
// "discover.weekly"/"discover.oncall".
package schedule

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Job is one scheduled entry.
type Job struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"` // 5-field cron: minute hour day-of-month month day-of-week
	Type     string `yaml:"type"`     // dispatch key, e.g. "discover.weekly"
	Enabled  bool   `yaml:"enabled"`
}

// Config is the on-disk job list.
type Config struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadConfig reads a job list from a YAML file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("schedule: read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("schedule: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Handler runs one job's Type. Returning an error does not stop the
// scheduler — it is logged, and the job runs again the next time its
// Schedule matches.
type Handler func(ctx context.Context, job Job) error

// Scheduler ticks once a minute and dispatches every enabled Job whose
// cron Schedule matches the current minute to its registered Handler.
type Scheduler struct {
	jobs     []Job
	handlers map[string]Handler
	log      zerolog.Logger
}

// New builds a Scheduler from a loaded Config.
func New(cfg Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{jobs: cfg.Jobs, handlers: make(map[string]Handler), log: log.With().Str("component", "scheduler").Logger()}
}

// Register binds a job Type to the function that runs it. An unregistered
// Type that comes due is logged and skipped, never a fatal error.
func (s *Scheduler) Register(jobType string, h Handler) {
	s.handlers[jobType] = h
}

// Run blocks, checking every enabled job against the clock once a minute,
// until ctx is cancelled. Each due job runs in its own goroutine so a slow
// discovery run never delays the next tick's dispatch.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler starting")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.dispatchDue(ctx, now)
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context, now time.Time) {
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		due, err := cronMatches(job.Schedule, now)
		if err != nil {
			s.log.Warn().Err(err).Str("job", job.Name).Msg("invalid cron schedule, skipping")
			continue
		}
		if !due {
			continue
		}
		handler, ok := s.handlers[job.Type]
		if !ok {
			s.log.Warn().Str("job", job.Name).Str("type", job.Type).Msg("no handler registered for job type")
			continue
		}
		go func(j Job, h Handler) {
			if err := h(ctx, j); err != nil {
				s.log.Error().Err(err).Str("job", j.Name).Msg("scheduled job failed")
			}
		}(job, handler)
	}
}

// cronMatches evaluates a standard 5-field cron expression (minute hour
// day-of-month month day-of-week) against t, supporting "*" and "*/N" step
// values per field — enough to express weekly/on-call cadences
// without pulling in a cron library for five fields of integer matching.
func cronMatches(expr string, t time.Time) (bool, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false, fmt.Errorf("cron expression %q must have 5 fields", expr)
	}
	values := []int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, field := range fields {
		ok, err := fieldMatches(field, values[i])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func fieldMatches(field string, value int) (bool, error) {
	if field == "*" {
		return true, nil
	}
	if step, ok := strings.CutPrefix(field, "*/"); ok {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 {
			return false, fmt.Errorf("invalid step %q", field)
		}
		return value%n == 0, nil
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return false, fmt.Errorf("unsupported cron field %q", field)
	}
	return value == n, nil
}
