package cache

import "sync/atomic"

// Recorder receives one event per cache operation, e.g. a prometheus
// counter vector labeled by op and result.
type Recorder interface {
	RecordCacheOp(op, result string)
}

type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Errors  int64 `json:"errors"`
}

type CacheMetrics struct {
	hits     atomic.Int64
	misses   atomic.Int64
	sets     atomic.Int64
	deletes  atomic.Int64
	errors   atomic.Int64
	recorder Recorder
}

func NewCacheMetrics(recorder Recorder) *CacheMetrics {
	return &CacheMetrics{recorder: recorder}
}

func (m *CacheMetrics) record(op, result string) {
	if m.recorder != nil {
		m.recorder.RecordCacheOp(op, result)
	}
}

func (m *CacheMetrics) RecordHit() {
	m.hits.Add(1)
	m.record("get", "hit")
}

func (m *CacheMetrics) RecordMiss() {
	m.misses.Add(1)
	m.record("get", "miss")
}

func (m *CacheMetrics) RecordSet() {
	m.sets.Add(1)
	m.record("set", "ok")
}

func (m *CacheMetrics) RecordDelete() {
	m.deletes.Add(1)
	m.record("delete", "ok")
}

func (m *CacheMetrics) RecordError(op string) {
	m.errors.Add(1)
	m.record(op, "error")
}

func (m *CacheMetrics) GetStats() CacheStats {
	return CacheStats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Sets:    m.sets.Load(),
		Deletes: m.deletes.Load(),
		Errors:  m.errors.Load(),
	}
}

// HitRate is a percentage in [0, 100].
func (m *CacheMetrics) HitRate() float64 {
	hits := m.hits.Load()
	total := hits + m.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func (m *CacheMetrics) Reset() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.sets.Store(0)
	m.deletes.Store(0)
	m.errors.Store(0)
}
