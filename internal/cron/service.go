package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/metrics"
)

const defaultInterval = time.Hour

// ServiceParams configure the cron service. JobTimeout defaults to Interval.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding the
// cluster-wide lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

// CycleResult summarises one cycle. Skipped is set when another instance
// held the lock.
type CycleResult struct {
	Skipped bool
	Results map[string]string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := params.JobTimeout
	if timeout <= 0 {
		timeout = interval
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: timeout,
		now:        time.Now,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.cycle(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
}

// RunOnce executes one cycle. Job failures are reported in the result;
// only a lock error is returned.
func (s *Service) RunOnce(ctx context.Context) (CycleResult, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.IncSkipped()
		s.logg.Info(ctx, "another cron instance holds the lock; skipping cycle")
		return CycleResult{Skipped: true}, nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	res := CycleResult{Results: map[string]string{}}
	s.logg.Info(s.logg.WithField(ctx, "jobs", s.registry.Names()), "scheduled run starting")
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			break
		}
		res.Results[job.Name()] = s.runJob(ctx, job)
	}
	s.logg.Info(s.logg.WithField(ctx, "results", res.Results), "scheduled run complete")
	return res, nil
}

func (s *Service) runJob(ctx context.Context, job Job) string {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	s.logg.Info(jobCtx, "job start")
	start := s.now()
	err := job.Run(runCtx)
	duration := s.now().Sub(start)

	result := classify(runCtx, err)
	s.metrics.ObserveRun(job.Name(), result, duration, s.now())

	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms": duration.Milliseconds(),
		"result":      result,
	})
	switch result {
	case metrics.JobResultSuccess:
		s.logg.Info(jobCtx, "job completed")
	case metrics.JobResultFindings:
		s.logg.Warn(s.logg.WithError(jobCtx, err), "job completed with findings")
	default:
		s.logg.Error(jobCtx, "job failed", err)
	}
	return result
}

// classify maps a job error to a metrics result. Reconciliation errors mean
// the job ran to completion and found something to report.
func classify(runCtx context.Context, err error) string {
	switch {
	case err == nil:
		return metrics.JobResultSuccess
	case pkgerrors.Is(err, pkgerrors.CodeReconciliation):
		return metrics.JobResultFindings
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return metrics.JobResultTimeout
	default:
		return metrics.JobResultFailure
	}
}
