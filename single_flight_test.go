/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package expirecache

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSingleFlight(t *testing.T) {
	t.Run("different keys", func(t *testing.T) {
		var sfGroup singleFlightGroup[string, int]
		var callCount int32

		const numGoroutines = 10
		var wg sync.WaitGroup
		results := make([]int, numGoroutines)
		errs := make([]error, numGoroutines)

		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(i int) {
				defer wg.Done()
				res, err := sfGroup.Do("key"+strconv.Itoa(i), func() (int, error) {
					atomic.AddInt32(&callCount, 1)
					time.Sleep(100 * time.Millisecond)
					return (i + 1) * 10, nil
				})
				results[i] = res
				errs[i] = err
			}(i)
		}
		wg.Wait()

		require.Equal(t, int32(numGoroutines), callCount, "expected fn to be called for every key")
		for i, err := range errs {
			require.NoError(t, err, "goroutine %d: unexpected error", i)
			require.Equal(t, (i+1)*10, results[i], "goroutine %d: unexpected result", i)
		}
	})

	t.Run("same key", func(t *testing.T) {
		var sfGroup singleFlightGroup[string, int]
		var callCount int32

		fn := func() (int, error) {
			atomic.AddInt32(&callCount, 1)
			time.Sleep(100 * time.Millisecond)
			return 42, nil
		}

		const numGoroutines = 10
		var wg sync.WaitGroup
		results := make([]int, numGoroutines)
		errs := make([]error, numGoroutines)

		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = sfGroup.Do("key", fn)
			}(i)
		}
		wg.Wait()

		require.Equal(t, int32(1), callCount, "expected fn to be called exactly once")
		for i := 0; i < numGoroutines; i++ {
			require.NoError(t, errs[i], "goroutine %d: unexpected error", i)
			require.Equal(t, 42, results[i], "goroutine %d: unexpected result", i)
		}
	})

	t.Run("error is shared between callers", func(t *testing.T) {
		var sfGroup singleFlightGroup[string, int]
		wantErr := errors.New("load failed")

		const numGoroutines = 4
		var wg sync.WaitGroup
		errs := make([]error, numGoroutines)

		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(i int) {
				defer wg.Done()
				_, errs[i] = sfGroup.Do("key", func() (int, error) {
					time.Sleep(50 * time.Millisecond)
					return 0, wantErr
				})
			}(i)
		}
		wg.Wait()

		for i := 0; i < numGoroutines; i++ {
			require.ErrorIs(t, errs[i], wantErr, "goroutine %d", i)
		}
	})

	t.Run("calls are not cached", func(t *testing.T) {
		var sfGroup singleFlightGroup[string, int]
		var callCount int32

		fn := func() (int, error) {
			atomic.AddInt32(&callCount, 1)
			return 42, nil
		}

		_, err := sfGroup.Do("key", fn)
		require.NoError(t, err)
		_, err = sfGroup.Do("key", fn)
		require.NoError(t, err)
		require.Equal(t, int32(2), callCount, "sequential calls must each execute fn")
	})

	t.Run("panic is re-raised on the caller goroutine", func(t *testing.T) {
		var sfGroup singleFlightGroup[string, int]

		require.PanicsWithValue(t, "boom", func() {
			_, _ = sfGroup.Do("key", func() (int, error) {
				panic("boom")
			})
		})

		// The key must not stay occupied by the panicked call.
		val, err := sfGroup.Do("key", func() (int, error) { return 1, nil })
		require.NoError(t, err)
		require.Equal(t, 1, val)
	})
}
