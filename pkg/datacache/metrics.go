package datacache

import "go.uber.org/atomic"

// metrics holds live operation counters. Counters are atomic so Stats can
// read them without the cache lock.
type metrics struct {
	hits          atomic.Int64
	misses        atomic.Int64
	sets          atomic.Int64
	deletes       atomic.Int64
	evictions     atomic.Int64
	expirations   atomic.Int64
	persistErrors atomic.Int64
}

func (m *metrics) recordHit()          { m.hits.Inc() }
func (m *metrics) recordMiss()         { m.misses.Inc() }
func (m *metrics) recordSet()          { m.sets.Inc() }
func (m *metrics) recordDelete()       { m.deletes.Inc() }
func (m *metrics) recordEviction()     { m.evictions.Inc() }
func (m *metrics) recordExpiration()   { m.expirations.Inc() }
func (m *metrics) recordPersistError() { m.persistErrors.Inc() }

// fill copies the counters into s.
func (m *metrics) fill(s *Stats) {
	s.Hits = m.hits.Load()
	s.Misses = m.misses.Load()
	s.Sets = m.sets.Load()
	s.Deletes = m.deletes.Load()
	s.Evictions = m.evictions.Load()
	s.Expirations = m.expirations.Load()
	s.PersistErrors = m.persistErrors.Load()

	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}
