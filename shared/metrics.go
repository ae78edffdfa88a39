package shared

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const maxLatencySamples = 1000

// ServiceMetrics tracks performance and success metrics for services
type ServiceMetrics struct {
	serviceName         string
	totalRequests       int64
	successfulRequests  int64
	failedRequests      int64
	totalProcessingTime time.Duration
	lastUpdated         time.Time
	counters            map[string]int64
	performance         *PerformanceMetrics
	mutex               sync.RWMutex
}

// ServiceMetricsSnapshot is a point-in-time copy of ServiceMetrics, safe to serialize
type ServiceMetricsSnapshot struct {
	ServiceName           string                     `json:"service_name"`
	TotalRequests         int64                      `json:"total_requests"`
	SuccessfulRequests    int64                      `json:"successful_requests"`
	FailedRequests        int64                      `json:"failed_requests"`
	SuccessRate           float64                    `json:"success_rate"`
	AverageProcessingTime time.Duration              `json:"average_processing_time"`
	LastUpdated           time.Time                  `json:"last_updated"`
	Counters              map[string]int64           `json:"counters"`
	Performance           PerformanceMetricsSnapshot `json:"performance"`
}

// NewServiceMetrics creates a new metrics tracker for a service
func NewServiceMetrics(serviceName string) *ServiceMetrics {
	return &ServiceMetrics{
		serviceName: serviceName,
		lastUpdated: time.Now(),
		counters:    make(map[string]int64),
		performance: NewPerformanceMetrics(),
	}
}

// RecordRequest records a request with its success status and processing time
func (m *ServiceMetrics) RecordRequest(success bool, processingTime time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalRequests++
	m.totalProcessingTime += processingTime

	if success {
		m.successfulRequests++
	} else {
		m.failedRequests++
	}

	m.lastUpdated = time.Now()
	m.performance.RecordProcessingTime(processingTime)
}

// IncrementCounter increments a named counter
func (m *ServiceMetrics) IncrementCounter(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[key]++
	m.lastUpdated = time.Now()
}

// Counter returns the current value of a named counter
func (m *ServiceMetrics) Counter(key string) int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.counters[key]
}

// GetSnapshot returns a thread-safe snapshot of current metrics
func (m *ServiceMetrics) GetSnapshot() ServiceMetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}

	snapshot := ServiceMetricsSnapshot{
		ServiceName:        m.serviceName,
		TotalRequests:      m.totalRequests,
		SuccessfulRequests: m.successfulRequests,
		FailedRequests:     m.failedRequests,
		LastUpdated:        m.lastUpdated,
		Counters:           counters,
		Performance:        m.performance.GetPerformanceSnapshot(),
	}
	if m.totalRequests > 0 {
		snapshot.SuccessRate = float64(m.successfulRequests) / float64(m.totalRequests) * 100.0
		snapshot.AverageProcessingTime = time.Duration(int64(m.totalProcessingTime) / m.totalRequests)
	}
	return snapshot
}

// LogSummary logs a comprehensive metrics summary
func (m *ServiceMetrics) LogSummary() {
	snapshot := m.GetSnapshot()

	logrus.WithFields(logrus.Fields{
		"service_name":            snapshot.ServiceName,
		"total_requests":          snapshot.TotalRequests,
		"successful_requests":     snapshot.SuccessfulRequests,
		"failed_requests":         snapshot.FailedRequests,
		"success_rate":            snapshot.SuccessRate,
		"average_processing_time": snapshot.AverageProcessingTime,
		"min_processing_time":     snapshot.Performance.MinProcessingTime,
		"max_processing_time":     snapshot.Performance.MaxProcessingTime,
		"p95_processing_time":     snapshot.Performance.P95ProcessingTime,
		"p99_processing_time":     snapshot.Performance.P99ProcessingTime,
		"counters":                snapshot.Counters,
	}).Info("Service metrics summary")
}

// DatabaseMetrics tracks database operation performance and success rates
type DatabaseMetrics struct {
	totalQueries      int64
	successfulQueries int64
	failedQueries     int64
	slowQueries       int64
	totalQueryTime    time.Duration
	mutex             sync.RWMutex
}

// DatabaseMetricsSnapshot is a point-in-time copy of DatabaseMetrics
type DatabaseMetricsSnapshot struct {
	TotalQueries      int64         `json:"total_queries"`
	SuccessfulQueries int64         `json:"successful_queries"`
	FailedQueries     int64         `json:"failed_queries"`
	SlowQueries       int64         `json:"slow_queries"`
	SuccessRate       float64       `json:"success_rate"`
	AverageQueryTime  time.Duration `json:"average_query_time"`
}

// NewDatabaseMetrics creates a new database metrics tracker
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// RecordQuery records a database query with its success status and execution time
func (dm *DatabaseMetrics) RecordQuery(success bool, queryTime time.Duration, isSlowQuery bool) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.totalQueries++
	dm.totalQueryTime += queryTime

	if success {
		dm.successfulQueries++
	} else {
		dm.failedQueries++
	}

	if isSlowQuery {
		dm.slowQueries++
	}
}

// GetSnapshot returns a thread-safe snapshot of database metrics
func (dm *DatabaseMetrics) GetSnapshot() DatabaseMetricsSnapshot {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	snapshot := DatabaseMetricsSnapshot{
		TotalQueries:      dm.totalQueries,
		SuccessfulQueries: dm.successfulQueries,
		FailedQueries:     dm.failedQueries,
		SlowQueries:       dm.slowQueries,
	}
	if dm.totalQueries > 0 {
		snapshot.SuccessRate = float64(dm.successfulQueries) / float64(dm.totalQueries) * 100.0
		snapshot.AverageQueryTime = time.Duration(int64(dm.totalQueryTime) / dm.totalQueries)
	}
	return snapshot
}

// LogDatabaseSummary logs comprehensive database metrics
func (dm *DatabaseMetrics) LogDatabaseSummary() {
	snapshot := dm.GetSnapshot()

	logrus.WithFields(logrus.Fields{
		"total_queries":      snapshot.TotalQueries,
		"successful_queries": snapshot.SuccessfulQueries,
		"failed_queries":     snapshot.FailedQueries,
		"slow_queries":       snapshot.SlowQueries,
		"query_success_rate": snapshot.SuccessRate,
		"average_query_time": snapshot.AverageQueryTime,
	}).Info("Database metrics summary")
}

// PerformanceMetrics tracks detailed performance measurements
type PerformanceMetrics struct {
	minProcessingTime time.Duration
	maxProcessingTime time.Duration
	mutex             sync.RWMutex
	processingTimes   []time.Duration
}

// PerformanceMetricsSnapshot is a point-in-time copy of PerformanceMetrics
type PerformanceMetricsSnapshot struct {
	MinProcessingTime time.Duration `json:"min_processing_time"`
	MaxProcessingTime time.Duration `json:"max_processing_time"`
	P95ProcessingTime time.Duration `json:"p95_processing_time"`
	P99ProcessingTime time.Duration `json:"p99_processing_time"`
}

// NewPerformanceMetrics creates a new performance metrics tracker
func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{
		processingTimes: make([]time.Duration, 0, maxLatencySamples),
	}
}

// RecordProcessingTime records a processing time sample
func (pm *PerformanceMetrics) RecordProcessingTime(duration time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pm.minProcessingTime == 0 || duration < pm.minProcessingTime {
		pm.minProcessingTime = duration
	}
	if duration > pm.maxProcessingTime {
		pm.maxProcessingTime = duration
	}

	// keep the last maxLatencySamples samples
	if len(pm.processingTimes) >= maxLatencySamples {
		pm.processingTimes = pm.processingTimes[1:]
	}
	pm.processingTimes = append(pm.processingTimes, duration)
}

// GetPerformanceSnapshot returns a thread-safe snapshot of performance metrics
func (pm *PerformanceMetrics) GetPerformanceSnapshot() PerformanceMetricsSnapshot {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	snapshot := PerformanceMetricsSnapshot{
		MinProcessingTime: pm.minProcessingTime,
		MaxProcessingTime: pm.maxProcessingTime,
	}
	if len(pm.processingTimes) == 0 {
		return snapshot
	}

	times := make([]time.Duration, len(pm.processingTimes))
	copy(times, pm.processingTimes)
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	snapshot.P95ProcessingTime = times[percentileIndex(len(times), 0.95)]
	snapshot.P99ProcessingTime = times[percentileIndex(len(times), 0.99)]
	return snapshot
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// ExtractionMetrics tracks per-field and per-strategy hit rates of OCR field extraction
type ExtractionMetrics struct {
	attempts       map[string]int64
	hits           map[string]int64
	strategyHits   map[string]int64
	emptyDocuments int64
	mutex          sync.RWMutex
}

// ExtractionMetricsSnapshot is a point-in-time copy of ExtractionMetrics
type ExtractionMetricsSnapshot struct {
	Attempts       map[string]int64   `json:"attempts"`
	Hits           map[string]int64   `json:"hits"`
	HitRates       map[string]float64 `json:"hit_rates"`
	StrategyHits   map[string]int64   `json:"strategy_hits"`
	EmptyDocuments int64              `json:"empty_documents"`
}

// NewExtractionMetrics creates a new extraction metrics tracker
func NewExtractionMetrics() *ExtractionMetrics {
	return &ExtractionMetrics{
		attempts:     make(map[string]int64),
		hits:         make(map[string]int64),
		strategyHits: make(map[string]int64),
	}
}

// RecordFieldAttempt records one extraction attempt for a field
func (m *ExtractionMetrics) RecordFieldAttempt(field string, success bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.attempts[field]++
	if success {
		m.hits[field]++
	}
}

// RecordStrategyHit records which strategy produced a field value
func (m *ExtractionMetrics) RecordStrategyHit(field, strategy string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.strategyHits[field+"."+strategy]++
}

// RecordEmptyDocument records a submission that carried no usable OCR text
func (m *ExtractionMetrics) RecordEmptyDocument() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.emptyDocuments++
}

func (m *ExtractionMetrics) hitRateLocked(field string) float64 {
	if m.attempts[field] == 0 {
		return 0.0
	}
	return float64(m.hits[field]) / float64(m.attempts[field]) * 100.0
}

// GetSnapshot returns a thread-safe snapshot of extraction metrics
func (m *ExtractionMetrics) GetSnapshot() ExtractionMetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snapshot := ExtractionMetricsSnapshot{
		Attempts:       make(map[string]int64, len(m.attempts)),
		Hits:           make(map[string]int64, len(m.hits)),
		HitRates:       make(map[string]float64, len(m.attempts)),
		StrategyHits:   make(map[string]int64, len(m.strategyHits)),
		EmptyDocuments: m.emptyDocuments,
	}
	for field, n := range m.attempts {
		snapshot.Attempts[field] = n
		snapshot.Hits[field] = m.hits[field]
		snapshot.HitRates[field] = m.hitRateLocked(field)
	}
	for key, n := range m.strategyHits {
		snapshot.StrategyHits[key] = n
	}
	return snapshot
}

// LogSummary logs a comprehensive extraction metrics summary
func (m *ExtractionMetrics) LogSummary() {
	snapshot := m.GetSnapshot()

	logrus.WithFields(logrus.Fields{
		"attempts":        snapshot.Attempts,
		"hit_rates":       snapshot.HitRates,
		"strategy_hits":   snapshot.StrategyHits,
		"empty_documents": snapshot.EmptyDocuments,
	}).Info("Extraction metrics summary")
}
