package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Limits(t *testing.T) {
	m := NewManager(
		Config{Name: "erp", MaxConcurrency: 2},
		Config{Name: "crm", RateLimit: 1},
	)

	// Unconfigured queues are neither limited nor tracked.
	for range 5 {
		require.True(t, m.Acquire("default"))
	}
	assert.Zero(t, m.ActiveCount("default"))

	assert.True(t, m.Acquire("erp"))
	assert.True(t, m.Acquire("erp"))
	assert.False(t, m.Acquire("erp"))
	m.Release("erp")
	assert.True(t, m.Acquire("erp"))

	assert.True(t, m.Acquire("crm"))
	m.Release("crm")
	assert.False(t, m.Acquire("crm"), "burst of 1 is spent")

	assert.Equal(t, []Stats{
		{Config: Config{Name: "crm", RateLimit: 1}, Active: 0, Rejected: 1},
		{Config: Config{Name: "erp", MaxConcurrency: 2}, Active: 2, Rejected: 1},
	}, m.Stats())
}

func TestManager_RateRefills(t *testing.T) {
	m := NewManager(Config{Name: "crm", RateLimit: 20, RateBurst: 1})
	require.True(t, m.Acquire("crm"))
	m.Release("crm")
	assert.Eventually(t, func() bool {
		if !m.Acquire("crm") {
			return false
		}
		m.Release("crm")
		return true
	}, time.Second, 10*time.Millisecond)
}

func TestManager_FullQueueKeepsRateBudget(t *testing.T) {
	m := NewManager(Config{Name: "erp", MaxConcurrency: 1, RateLimit: 0.001, RateBurst: 2})

	require.True(t, m.Acquire("erp"))
	require.False(t, m.Acquire("erp"))
	m.Release("erp")
	assert.True(t, m.Acquire("erp"), "second token was not spent on the rejected attempt")
	assert.False(t, m.Acquire("erp"))
}

func TestManager_SetQueueConfigKeepsRunningJobs(t *testing.T) {
	m := NewManager(Config{Name: "erp", MaxConcurrency: 1})
	require.True(t, m.Acquire("erp"))
	require.False(t, m.Acquire("erp"))

	m.SetQueueConfig(Config{Name: "erp", MaxConcurrency: 3})
	assert.True(t, m.Acquire("erp"))
	assert.Equal(t, 2, m.ActiveCount("erp"))
	assert.Equal(t, 1, m.Stats()[0].Rejected)

	m.SetQueueConfig(Config{Name: "new", MaxConcurrency: 1})
	assert.Len(t, m.Stats(), 2)
}

func TestManager_ParallelSlots(t *testing.T) {
	m := NewManager(Config{Name: "erp", MaxConcurrency: 4})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		peak int
	)
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !m.Acquire("erp") {
				return
			}
			mu.Lock()
			peak = max(peak, m.ActiveCount("erp"))
			mu.Unlock()
			m.Release("erp")
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 4)
	assert.Zero(t, m.ActiveCount("erp"))
	m.Release("erp")
	assert.Zero(t, m.ActiveCount("erp"), "release below zero is ignored")
}
