package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/crisispulse/CrisisPulse/internal/pkg/env"
	"github.com/crisispulse/CrisisPulse/internal/pkg/metrics/counter"
)

// Manager manages the global job queue and the periodic background triggers
type Manager struct {
	queue            *Queue
	clusteringTicker *time.Ticker
	counterTicker    *time.Ticker
	stopCh           chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// Setup initializes the global job queue manager with its processors.
func Setup(processors *Processors) *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if raw := env.GetEnv("JOBQUEUE_WORKERS", ""); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				workerCount = parsed
			}
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount, processors),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	if globalManager == nil {
		panic("Job queue manager not initialized. Call Setup first.")
	}
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and the periodic clustering trigger
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true

	m.queue.Start()

	interval := 10 * time.Minute
	if raw := env.GetEnv("CLUSTERING_INTERVAL", ""); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			interval = parsed
		}
	}

	m.clusteringTicker = time.NewTicker(interval)
	m.wg.Add(1)
	go m.clusteringLoop()

	flushInterval := 1 * time.Minute
	if raw := env.GetEnv("COUNTER_FLUSH_INTERVAL", ""); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			flushInterval = parsed
		}
	}

	m.counterTicker = time.NewTicker(flushInterval)
	m.wg.Add(1)
	go m.counterFlushLoop()

	log.Infof("[JobQueue] Manager started (clustering every %s, counter flush every %s)", interval, flushInterval)
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false

	close(m.stopCh)
	if m.clusteringTicker != nil {
		m.clusteringTicker.Stop()
	}
	if m.counterTicker != nil {
		m.counterTicker.Stop()
	}
	m.wg.Wait()
	m.queue.Stop()

	// Drain counters so pending views survive a restart.
	if err := counter.FlushAll(); err != nil {
		log.Errorf("[JobQueue] Final counter flush failed: %v", err)
	}
	log.Info("[JobQueue] Manager stopped")
}

// clusteringLoop enqueues a clustering run per tick. The run itself is
// single-flighted inside the clusterer, so an overlapping tick is harmless.
func (m *Manager) clusteringLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			return
		case <-m.clusteringTicker.C:
			payload := ClusteringJobPayload{Limit: 0} // 0 = clusterer default
			if _, err := m.queue.EnqueueJob(JobTypeClusteringRun, payload.ToMap()); err != nil {
				log.Errorf("[JobQueue] Failed to enqueue clustering run: %v", err)
			}
		}
	}
}

// counterFlushLoop periodically moves accumulated view counters from Redis
// into the database.
func (m *Manager) counterFlushLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			return
		case <-m.counterTicker.C:
			if err := counter.FlushAll(); err != nil {
				log.Errorf("[JobQueue] Counter flush failed: %v", err)
			}
		}
	}
}
