package tenant

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker(t *testing.T) {
	l := NewLocker()

	unlock := l.Lock("school_1")
	_, ok := l.TryLock("school_1")
	assert.False(t, ok)

	other, ok := l.TryLock("school_2")
	require.True(t, ok)
	other()

	unlock()
	again, ok := l.TryLock("school_1")
	require.True(t, ok)
	again()
	assert.Equal(t, 0, l.Len())
}

func TestLockerSerializesKey(t *testing.T) {
	l := NewLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("school_42")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxInside)
	assert.Equal(t, 0, l.Len())
}
