package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/assetledger/pkg/enums"
	"github.com/angelmondragon/assetledger/pkg/logger"
)

const outboxRetentionDays = 30

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	// DeadLetters is optional; when set the sweep reports the DLQ backlog.
	DeadLetters deadLetterCounter
	Retention   int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterCounter interface {
	CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Repository == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		dlq:       params.DeadLetters,
		retention: time.Duration(retention) * 24 * time.Hour,
		now:       time.Now,
	}, nil
}

// outboxRetentionJob purges inventory events that reached Pub/Sub long
// enough ago. Unpublished and dead-lettered rows are never touched.
type outboxRetentionJob struct {
	logg      *logger.Logger
	repo      outboxRetentionRepo
	dlq       deadLetterCounter
	retention time.Duration
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge published events before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	fields := map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}

	if j.dlq != nil {
		backlog, err := j.dlq.CountByReason(ctx)
		if err != nil {
			return fmt.Errorf("count dead letters: %w", err)
		}
		var total int64
		for reason, n := range backlog {
			fields["dlq_"+reason.String()] = n
			total += n
		}
		fields["dlq_total"] = total
		if total > 0 {
			j.logg.Warn(j.logg.WithFields(ctx, fields), "outbox retention sweep found dead-lettered events")
			return nil
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention sweep complete")
	return nil
}
