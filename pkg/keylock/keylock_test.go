package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestSortedDeduplicatesAndOrders(t *testing.T) {
	got := Sorted(
		Key{PartID: "P2", LocationID: "A"},
		Key{PartID: "P1", LocationID: "B"},
		Key{PartID: "P1", LocationID: "A"},
		Key{PartID: "P1", LocationID: "B"},
	)
	assert.Equal(t, []Key{
		{PartID: "P1", LocationID: "A"},
		{PartID: "P1", LocationID: "B"},
		{PartID: "P2", LocationID: "A"},
	}, got)
}

func TestLockIsExclusivePerKey(t *testing.T) {
	l := New()
	ctx := context.Background()
	key := Key{PartID: "P1", LocationID: "A"}

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			unlock, err := l.Lock(gctx, key)
			if err != nil {
				return err
			}
			defer unlock()
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.size())
}

func TestOppositeOrderDoesNotDeadlock(t *testing.T) {
	l := New()
	a := Key{PartID: "P1", LocationID: "A"}
	b := Key{PartID: "P1", LocationID: "B"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 50; i++ {
		first, second := a, b
		if i%2 == 1 {
			first, second = b, a
		}
		g.Go(func() error {
			unlock, err := l.Lock(gctx, first, second)
			if err != nil {
				return err
			}
			unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestLockHonoursCancellation(t *testing.T) {
	l := New()
	key := Key{PartID: "P1", LocationID: "A"}

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, Key{PartID: "P0", LocationID: "Z"}, key)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, l.size())
}
