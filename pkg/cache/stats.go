package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks cache performance metrics.
//
// Hits and total requests are updated together under one lock, so Misses is
// always exactly TotalRequests minus Hits, even while lookups are in flight.
type Statistics struct {
	// Protected by reqMu
	reqMu    sync.Mutex
	hits     int64
	requests int64

	// Atomic counters for thread-safe updates
	sets        int64
	deletes     int64
	evictions   int64
	expirations int64
	rejections  int64

	// Protected by mu
	mu          sync.RWMutex
	startTime   time.Time
	currentSize int64
	maxSize     int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Request records one lookup and whether it found the key.
func (s *Statistics) Request(hit bool) {
	s.reqMu.Lock()
	s.requests++
	if hit {
		s.hits++
	}
	s.reqMu.Unlock()
}

// Set records a successful put.
func (s *Statistics) Set() {
	atomic.AddInt64(&s.sets, 1)
}

// Delete records a removal by key.
func (s *Statistics) Delete() {
	atomic.AddInt64(&s.deletes, 1)
}

// Eviction records a capacity eviction.
func (s *Statistics) Eviction() {
	atomic.AddInt64(&s.evictions, 1)
}

// Expiration records an entry removed by its expiry timer.
func (s *Statistics) Expiration() {
	atomic.AddInt64(&s.expirations, 1)
}

// Rejection records a put refused because the cache was full.
func (s *Statistics) Rejection() {
	atomic.AddInt64(&s.rejections, 1)
}

// UpdateSize updates the current cache size.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

// Hits returns the total number of cache hits.
func (s *Statistics) Hits() int64 {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	return s.hits
}

// TotalRequests returns the number of lookups, hit or not.
func (s *Statistics) TotalRequests() int64 {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	return s.requests
}

// Misses returns the total number of cache misses.
func (s *Statistics) Misses() int64 {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	return s.requests - s.hits
}

func (s *Statistics) requestCounts() (hits, requests int64) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	return s.hits, s.requests
}

// Sets returns the total number of set operations.
func (s *Statistics) Sets() int64 {
	return atomic.LoadInt64(&s.sets)
}

// Deletes returns the total number of delete operations.
func (s *Statistics) Deletes() int64 {
	return atomic.LoadInt64(&s.deletes)
}

// Evictions returns the total number of evictions.
func (s *Statistics) Evictions() int64 {
	return atomic.LoadInt64(&s.evictions)
}

// Expirations returns the number of entries removed by their expiry timer.
func (s *Statistics) Expirations() int64 {
	return atomic.LoadInt64(&s.expirations)
}

// Rejections returns the number of puts refused because the cache was full.
func (s *Statistics) Rejections() int64 {
	return atomic.LoadInt64(&s.rejections)
}

// CurrentSize returns the current number of entries in the cache.
func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

// MaxSize returns the maximum number of entries the cache has held.
func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// HitRatio returns the cache hit ratio (0.0 to 1.0).
func (s *Statistics) HitRatio() float64 {
	hits, total := s.requestCounts()
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

// MissRatio returns the cache miss ratio (0.0 to 1.0). It is 0 before any lookup.
func (s *Statistics) MissRatio() float64 {
	hits, total := s.requestCounts()
	if total == 0 {
		return 0.0
	}
	return float64(total-hits) / float64(total)
}

// RequestsPerSecond returns the average number of lookups per second.
func (s *Statistics) RequestsPerSecond() float64 {
	elapsed := s.Uptime()
	if elapsed <= 0 {
		return 0.0
	}
	return float64(s.TotalRequests()) / elapsed.Seconds()
}

// Uptime returns how long the cache has been running.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Reset resets all statistics to zero.
func (s *Statistics) Reset() {
	s.reqMu.Lock()
	s.hits = 0
	s.requests = 0
	s.reqMu.Unlock()

	atomic.StoreInt64(&s.sets, 0)
	atomic.StoreInt64(&s.deletes, 0)
	atomic.StoreInt64(&s.evictions, 0)
	atomic.StoreInt64(&s.expirations, 0)
	atomic.StoreInt64(&s.rejections, 0)

	s.mu.Lock()
	s.startTime = time.Now()
	s.currentSize = 0
	s.maxSize = 0
	s.mu.Unlock()
}

// StatsSummary returns a snapshot of all statistics.
type StatsSummary struct {
	Hits              int64         `json:"hits"`
	Misses            int64         `json:"misses"`
	TotalRequests     int64         `json:"total_requests"`
	Sets              int64         `json:"sets"`
	Deletes           int64         `json:"deletes"`
	Evictions         int64         `json:"evictions"`
	Expirations       int64         `json:"expirations"`
	Rejections        int64         `json:"rejections"`
	CurrentSize       int64         `json:"current_size"`
	MaxSize           int64         `json:"max_size"`
	HitRatio          float64       `json:"hit_ratio"`
	MissRatio         float64       `json:"miss_ratio"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	Uptime            time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	hits, total := s.requestCounts()
	summary := StatsSummary{
		Hits:              hits,
		Misses:            total - hits,
		TotalRequests:     total,
		Sets:              s.Sets(),
		Deletes:           s.Deletes(),
		Evictions:         s.Evictions(),
		Expirations:       s.Expirations(),
		Rejections:        s.Rejections(),
		CurrentSize:       s.CurrentSize(),
		MaxSize:           s.MaxSize(),
		RequestsPerSecond: s.RequestsPerSecond(),
		Uptime:            s.Uptime(),
	}
	if total > 0 {
		summary.HitRatio = float64(hits) / float64(total)
		summary.MissRatio = float64(total-hits) / float64(total)
	}
	return summary
}
