// internal/core/services/sessions_test.go
package services_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/services"
	"github.com/ammerola/inventory-bot/test/helpers"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemorySessionStore_GetPutDelete(t *testing.T) {
	clock := newFakeClock()
	store := services.NewMemorySessionStore(time.Minute, helpers.TestLogger(), services.WithClock(clock.Now))

	assert.Nil(t, store.Get(1))

	sess := domain.NewSession(1, domain.FlowAddProduct, domain.StateCompanyName, clock.Now())
	sess.Scratch[domain.ScratchCompanyName] = "Acme"
	store.Put(sess)

	got := store.Get(1)
	require.NotNil(t, got)
	assert.Equal(t, domain.FlowAddProduct, got.Flow)
	assert.Equal(t, "Acme", got.Scratch[domain.ScratchCompanyName])

	got.Scratch[domain.ScratchCompanyName] = "changed"
	assert.Equal(t, "Acme", store.Get(1).Scratch[domain.ScratchCompanyName])

	assert.Nil(t, store.Get(2))

	store.Delete(1)
	assert.Nil(t, store.Get(1))
	assert.Equal(t, 0, store.Len())
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	clock := newFakeClock()
	store := services.NewMemorySessionStore(time.Minute, helpers.TestLogger(), services.WithClock(clock.Now))

	store.Put(domain.NewSession(1, domain.FlowSetThreshold, domain.StateThreshold, clock.Now()))
	store.Put(domain.NewSession(2, domain.FlowAddAdmin, domain.StateAdminID, clock.Now()))

	clock.Advance(45 * time.Second)
	store.Put(store.Get(2))

	clock.Advance(30 * time.Second)
	assert.Nil(t, store.Get(1))
	assert.NotNil(t, store.Get(2))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.EvictExpired(clock.Now()))
	assert.Equal(t, 0, store.Len())
}

func TestMemorySessionStore_ZeroTTLNeverExpires(t *testing.T) {
	clock := newFakeClock()
	store := services.NewMemorySessionStore(0, helpers.TestLogger(), services.WithClock(clock.Now))

	store.Put(domain.NewSession(1, domain.FlowSetThreshold, domain.StateThreshold, clock.Now()))
	clock.Advance(1000 * time.Hour)

	assert.NotNil(t, store.Get(1))
	assert.Equal(t, 0, store.EvictExpired(clock.Now()))
}

func TestMemorySessionStore_LockSerializesPerRequester(t *testing.T) {
	store := services.NewMemorySessionStore(time.Minute, helpers.TestLogger())

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := store.Lock(7)
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestMemorySessionStore_LocksAreIndependent(t *testing.T) {
	store := services.NewMemorySessionStore(time.Minute, helpers.TestLogger())

	unlockA := store.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := store.Lock(2)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for a different requester blocked")
	}
}
