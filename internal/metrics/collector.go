package metrics

import (
	"time"

	"mediadrop/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current upload history totals
type Stats struct {
	TotalUploads    int   `json:"totalUploads"`
	BlossomUploads  int   `json:"blossomUploads"`
	FallbackUploads int   `json:"fallbackUploads"`
	TotalBytes      int64 `json:"totalBytes"`
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	HistoryUploadsTotal.WithLabelValues("blossom").Set(float64(stats.BlossomUploads))
	HistoryUploadsTotal.WithLabelValues("fallback").Set(float64(stats.FallbackUploads))
	HistoryBytesTotal.Set(float64(stats.TotalBytes))

	logging.Debug("Metrics collected: uploads=%d (blossom=%d, fallback=%d), bytes=%d",
		stats.TotalUploads, stats.BlossomUploads, stats.FallbackUploads, stats.TotalBytes)
}
