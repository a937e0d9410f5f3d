package memory

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"mediadrop/internal/logging"
	"mediadrop/internal/metrics"
)

// ErrMemoryPressure is returned by Admit when an upload should be refused.
var ErrMemoryPressure = errors.New("server is under memory pressure")

// Config holds admission thresholds.
type Config struct {
	// LimitBytes is the heap budget; zero uses GOMEMLIMIT.
	LimitBytes int64
	// HighWaterMark is the usage ratio below which a paused monitor resumes.
	HighWaterMark float64
	// CriticalWaterMark is the usage ratio at which new uploads are refused.
	CriticalWaterMark float64
	CheckInterval     time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     2 * time.Second,
	}
}

// Monitor samples heap usage and decides whether a new upload may start.
type Monitor struct {
	config   Config
	limit    int64
	readHeap func() uint64

	mu      sync.RWMutex
	current uint64
	paused  bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor creates a monitor. Without a limit it admits everything.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
		}
	}
	if limit == 0 {
		logging.Info("Memory admission disabled (no GOMEMLIMIT or MEMORY_LIMIT)")
	} else {
		logging.Info("Memory admission enabled: limit %s, refuse above %.0f%%",
			formatBytes(limit), config.CriticalWaterMark*100)
	}

	return &Monitor{
		config:   config,
		limit:    limit,
		readHeap: heapAlloc,
		stop:     make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Start begins sampling in the background.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	m.check()
	go m.loop()
}

// Stop ends sampling. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) check() {
	alloc := m.readHeap()
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = alloc

	switch {
	case !m.paused && usage >= m.config.CriticalWaterMark:
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		logging.Warn("Memory critical (%.1f%% of limit), refusing new uploads", usage*100)
		go runtime.GC()
	case m.paused && usage < m.config.HighWaterMark:
		m.paused = false
		metrics.MemoryPaused.Set(0)
		logging.Info("Memory recovered (%.1f%% of limit), accepting uploads", usage*100)
	}
}

// Admit reports whether an upload of size bytes may start. It refuses while
// paused, and when the upload would push usage past the critical mark.
func (m *Monitor) Admit(size int64) error {
	if m == nil || m.limit == 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.paused {
		return ErrMemoryPressure
	}
	projected := float64(m.current) + float64(size)
	if projected >= float64(m.limit)*m.config.CriticalWaterMark {
		return fmt.Errorf("%w: %s upload would exceed %.0f%% of %s",
			ErrMemoryPressure, formatBytes(size), m.config.CriticalWaterMark*100, formatBytes(m.limit))
	}
	return nil
}

// IsPaused reports whether new uploads are being refused.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Stats is a snapshot for the health endpoint.
type Stats struct {
	HeapBytes  int64   `json:"heapBytes"`
	LimitBytes int64   `json:"limitBytes"`
	Usage      float64 `json:"usage"`
	Paused     bool    `json:"paused"`
}

// GetStats returns the latest sample.
func (m *Monitor) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{LimitBytes: m.limit, Paused: m.paused}
	if m.current > 1<<62 {
		s.HeapBytes = 1 << 62
	} else {
		s.HeapBytes = int64(m.current)
	}
	if m.limit > 0 {
		s.Usage = float64(m.current) / float64(m.limit)
	}
	return s
}
