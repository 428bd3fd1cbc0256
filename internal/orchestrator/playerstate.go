package orchestrator

import (
	"sync"
	"time"

	"playercore/internal/fileid"
	"playercore/internal/resolver"
	"playercore/internal/transport"
)

// PlayerState holds everything the Orchestrator mutates across
// collection cycles. It is owned exclusively by the Orchestrator's
// single actor goroutine; every other caller communicates through
// events rather than touching it directly, per the concurrency model's
// "PlayerState is mutated only by the Orchestrator task" rule.
type PlayerState struct {
	mu sync.Mutex

	collecting      bool
	currentLayout   *fileid.ID
	pendingLayouts  map[fileid.ID][]fileid.ID // layout -> missing deps
	collectInterval time.Duration
	env             resolver.Env
	plays           map[string]playBucket // scheduleID -> current hour bucket and its play count

	queuedStats []transport.StatRecord
	queuedLogs  []transport.LogRecord
}

// NewPlayerState creates an empty PlayerState with a default collect
// interval; the first successful Register call overwrites it.
func NewPlayerState(defaultInterval time.Duration) *PlayerState {
	return &PlayerState{
		pendingLayouts:  make(map[fileid.ID][]fileid.ID),
		collectInterval: defaultInterval,
		plays:           make(map[string]playBucket),
	}
}

// BeginCollecting reports whether a collection cycle may start: it
// atomically sets collecting to true and returns true, or returns false
// if a cycle is already in progress (collect() is non-reentrant).
func (s *PlayerState) BeginCollecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collecting {
		return false
	}
	s.collecting = true
	return true
}

// EndCollecting clears the in-progress flag.
func (s *PlayerState) EndCollecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collecting = false
}

// IsCollecting reports whether a cycle is currently in progress.
func (s *PlayerState) IsCollecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collecting
}

// CurrentLayout returns the currently-playing main layout, if any.
func (s *PlayerState) CurrentLayout() (fileid.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentLayout == nil {
		return fileid.ID{}, false
	}
	return *s.currentLayout, true
}

// SetCurrentLayout commits id as the layout now playing.
func (s *PlayerState) SetCurrentLayout(id fileid.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := id
	s.currentLayout = &cp
}

// ClearCurrentLayout unsets the current layout, so the next resolver
// pass cannot short-circuit via layout_already_playing.
func (s *PlayerState) ClearCurrentLayout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentLayout = nil
}

// SetPending records that layout id is waiting on missing dependencies.
func (s *PlayerState) SetPending(id fileid.ID, missing []fileid.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]fileid.ID(nil), missing...)
	s.pendingLayouts[id] = cp
}

// ClearPending removes id from the pending set, e.g. once it becomes ready.
func (s *PlayerState) ClearPending(id fileid.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingLayouts, id)
}

// ScanPendingForReady removes ready from every pending layout's missing
// set and returns the layout IDs whose missing set became empty as a
// result — the spec's "pending-layout completion" scan. Namespace
// disambiguation falls out of fileid.ID equality: (Layout, 78) and
// (Media, 78) never match the same entry.
func (s *PlayerState) ScanPendingForReady(ready fileid.ID) []fileid.ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nowReady []fileid.ID
	for layoutID, missing := range s.pendingLayouts {
		kept := missing[:0:0]
		for _, dep := range missing {
			if dep != ready {
				kept = append(kept, dep)
			}
		}
		if len(kept) == 0 {
			nowReady = append(nowReady, layoutID)
			delete(s.pendingLayouts, layoutID)
		} else {
			s.pendingLayouts[layoutID] = kept
		}
	}
	return nowReady
}

// PendingMissing returns the current missing-dependency set for id.
func (s *PlayerState) PendingMissing(id fileid.ID) ([]fileid.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	missing, ok := s.pendingLayouts[id]
	return append([]fileid.ID(nil), missing...), ok
}

// SetCollectInterval updates the periodic tick interval, as applied from
// Transport.Register's settings.
func (s *PlayerState) SetCollectInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectInterval = d
}

// CollectInterval returns the current periodic tick interval.
func (s *PlayerState) CollectInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectInterval
}

// Env returns a copy of the current resolver environment.
func (s *PlayerState) Env() resolver.Env {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env
}

// SetDisplayProperty updates one key of env.DisplayProperties, as
// applied by a criteria_update push command.
func (s *PlayerState) SetDisplayProperty(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.env.DisplayProperties == nil {
		s.env.DisplayProperties = make(map[string]string)
	}
	s.env.DisplayProperties[key] = value
}

// SetLocation updates env.Location, as applied by a
// current_geo_location push command carrying coordinates.
func (s *PlayerState) SetLocation(loc resolver.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := loc
	s.env.Location = &cp
}

// playBucket counts plays within a single fixed clock hour, identified
// by its truncated start time. The count resets whenever the current
// time's truncated hour no longer matches bucketStart — a wall-clock
// boundary crossing, not a trailing duration: a play still counts
// against this hour right up to the top of the hour, then the counter
// drops to zero regardless of how recently that play happened.
type playBucket struct {
	bucketStart time.Time
	count       int
}

// RecordPlay logs a play of scheduleID at "at", for max-plays-per-hour
// throttling.
func (s *PlayerState) RecordPlay(scheduleID string, at time.Time) {
	if scheduleID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := rolledLocked(s.plays[scheduleID], at)
	b.count++
	s.plays[scheduleID] = b
}

// CountInCurrentHour implements resolver.PlayCounter.
func (s *PlayerState) CountInCurrentHour(scheduleID string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rolledLocked(s.plays[scheduleID], now).count
}

// rolledLocked rolls b forward to now's hour bucket, resetting its
// count to zero on a boundary crossing. Caller holds s.mu.
func rolledLocked(b playBucket, now time.Time) playBucket {
	start := now.Truncate(time.Hour)
	if !b.bucketStart.Equal(start) {
		return playBucket{bucketStart: start}
	}
	return b
}

// QueueStat appends a proof-of-play record awaiting the next stats flush.
func (s *PlayerState) QueueStat(r transport.StatRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queuedStats = append(s.queuedStats, r)
}

// QueueLog appends a log line awaiting the next log flush.
func (s *PlayerState) QueueLog(r transport.LogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queuedLogs = append(s.queuedLogs, r)
}

// DrainStats removes and returns every queued stat record.
func (s *PlayerState) DrainStats() []transport.StatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queuedStats
	s.queuedStats = nil
	return out
}

// DrainLogs removes and returns every queued log record.
func (s *PlayerState) DrainLogs() []transport.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queuedLogs
	s.queuedLogs = nil
	return out
}
