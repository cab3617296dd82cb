package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
	"github.com/angelmondragon/assetledger/pkg/keylock"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/metrics"
)

const (
	defaultMaxRetries   = 5
	defaultRetryBackoff = 10 * time.Millisecond
)

// ErrConflict marks a lost optimistic-concurrency race on an inventory row.
var ErrConflict = errors.New("inventory row changed concurrently")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GuardParams configures a Guard.
type GuardParams struct {
	Tx           txRunner
	Locks        *keylock.Locker
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *logger.Logger
	Metrics      *metrics.InventoryMetrics
}

// Guard runs inventory mutations with in-process key locks held and retries
// whole transactions that lose a version race.
type Guard struct {
	tx         txRunner
	locks      *keylock.Locker
	maxRetries int
	backoff    time.Duration
	logg       *logger.Logger
	metrics    *metrics.InventoryMetrics
}

func NewGuard(params GuardParams) (*Guard, error) {
	if params.Tx == nil {
		return nil, errors.New("tx runner required")
	}
	locks := params.Locks
	if locks == nil {
		locks = keylock.New()
	}
	maxRetries := params.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := params.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &Guard{
		tx:         params.Tx,
		locks:      locks,
		maxRetries: maxRetries,
		backoff:    backoff,
		logg:       params.Logger,
		metrics:    params.Metrics,
	}, nil
}

// Run locks keys in sorted order, then executes fn in a transaction. A
// transaction failing with ErrConflict is rolled back and retried; once the
// budget is spent the caller gets CONCURRENT_MODIFICATION.
func (g *Guard) Run(ctx context.Context, op string, keys []keylock.Key, fn func(tx *gorm.DB) error) error {
	unlock, err := g.locks.Lock(ctx, keys...)
	if err != nil {
		return err
	}
	defer unlock()

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(g.maxRetries), retry.NewConstant(g.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		txErr := g.tx.WithTx(ctx, fn)
		if errors.Is(txErr, ErrConflict) {
			g.metrics.IncConflict(op)
			if g.logg != nil {
				logCtx := g.logg.WithFields(ctx, map[string]any{"operation": op, "attempt": attempt})
				g.logg.Warn(logCtx, "inventory.conflict.retry")
			}
			return retry.RetryableError(txErr)
		}
		return txErr
	})
	if errors.Is(err, ErrConflict) {
		g.metrics.IncRetriesExhausted(op)
		return pkgerrors.Wrap(pkgerrors.CodeConcurrentModification, err, "inventory changed concurrently, retry budget exhausted").
			WithDetails(map[string]any{"operation": op, "attempts": attempt})
	}
	return err
}
