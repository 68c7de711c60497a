package cron

import (
	"context"
	"fmt"
	"time"
)

// Job is one unit of periodic maintenance run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job   Job
	every time.Duration
	next  time.Time
}

// Registry holds jobs with their cadence. A zero cadence means "every tick".
type Registry struct {
	entries []*entry
	names   map[string]struct{}
}

// NewRegistry registers jobs to run on every tick. Nil jobs are skipped.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		_ = registry.Register(job, 0)
	}
	return registry
}

// Register adds job to run at most once per every. Names must be unique so
// metrics and logs stay attributable.
func (r *Registry) Register(job Job, every time.Duration) error {
	if job == nil {
		return nil
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("cron job %q already registered", job.Name())
	}
	if every < 0 {
		every = 0
	}
	r.names[job.Name()] = struct{}{}
	r.entries = append(r.entries, &entry{job: job, every: every})
	return nil
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}

// due returns the jobs whose next run is at or before now and books their
// following run.
func (r *Registry) due(now time.Time) []Job {
	var jobs []Job
	for _, e := range r.entries {
		if !e.next.IsZero() && now.Before(e.next) {
			continue
		}
		jobs = append(jobs, e.job)
		e.next = now.Add(e.every)
	}
	return jobs
}
