package lock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestKeyLockMutualExclusionProperty checks that for any interleaving of
// goroutines incrementing a shared counter under the same key, no update is
// lost.
func TestKeyLockMutualExclusionProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		kl := NewKeyLock()
		key := rapid.StringMatching(`[a-z_]{1,16}`).Draw(rt, "key")
		workers := rapid.IntRange(2, 8).Draw(rt, "workers")
		iters := rapid.IntRange(1, 50).Draw(rt, "iters")

		counter := 0
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < iters; i++ {
					kl.Lock(key)
					counter++
					kl.Unlock(key)
				}
			}()
		}
		wg.Wait()

		if counter != workers*iters {
			rt.Fatalf("lost updates: expected %d, got %d", workers*iters, counter)
		}
	})
}

func TestKeyLockTryLock(t *testing.T) {
	kl := NewKeyLock()

	assert.True(t, kl.TryLock("user_data"))
	assert.False(t, kl.TryLock("user_data"), "second TryLock on a held key must fail")

	// A different key is independent
	assert.True(t, kl.TryLock("user_auth"))
	kl.Unlock("user_auth")

	kl.Unlock("user_data")
	assert.True(t, kl.TryLock("user_data"), "lock must be reacquirable after release")
	kl.Unlock("user_data")
}
