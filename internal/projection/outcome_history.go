package projection

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// OutcomeEntry is one completed game's result.
type OutcomeEntry struct {
	GameID      uuid.UUID `json:"game_id"`
	Round       uint64    `json:"round"`
	Outcome     int       `json:"outcome"`
	TotalBets   int       `json:"total_bets"`
	PaidOut     int64     `json:"paid_out"`
	Swept       int64     `json:"swept"`
	CompletedAt time.Time `json:"completed_at"`
}

// OutcomeHistory keeps the most recent completed games in memory plus
// cumulative per-pocket frequencies. Read by HTTP handlers while the
// projection worker appends, hence the lock.
type OutcomeHistory struct {
	mu       sync.RWMutex
	entries  []OutcomeEntry
	capacity int
	counts   map[int]int64
	total    int64
}

func NewOutcomeHistory(capacity int) *OutcomeHistory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &OutcomeHistory{
		entries:  make([]OutcomeEntry, 0, capacity),
		capacity: capacity,
		counts:   make(map[int]int64),
	}
}

// Add records a completed game, evicting the oldest entry once capacity
// is reached. Frequency counts are cumulative and never evicted.
func (h *OutcomeHistory) Add(entry OutcomeEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[1:]
	}
	h.counts[entry.Outcome]++
	h.total++
}

// Recent returns up to limit entries, newest first.
func (h *OutcomeHistory) Recent(limit int) []OutcomeEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.entries) {
		limit = len(h.entries)
	}
	result := make([]OutcomeEntry, 0, limit)
	for i := len(h.entries) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, h.entries[i])
	}
	return result
}

// Frequencies returns the cumulative outcome counts and the total number
// of completed games observed.
func (h *OutcomeHistory) Frequencies() (map[int]int64, int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[int]int64, len(h.counts))
	for pocket, n := range h.counts {
		counts[pocket] = n
	}
	return counts, h.total
}
