package serial

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

func TestDo_SerializesSameKey(t *testing.T) {
	l := New()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), "leave:user-1", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside, "only one writer may hold a key at a time")
}

func TestDo_TimesOutWhileShardHeld(t *testing.T) {
	l := New(WithTimeout(20 * time.Millisecond))
	release := make(chan struct{})
	held := make(chan struct{})

	go func() {
		_ = l.Do(context.Background(), "payroll:f1:2025-01", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := l.Do(context.Background(), "payroll:f1:2025-01", func(context.Context) error { return nil })
	close(release)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestDo_CancelledContext(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := l.Do(ctx, "k", func(context.Context) error { called = true; return nil })

	require.Error(t, err)
	assert.False(t, called)
}
