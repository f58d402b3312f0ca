package record

import (
	"sort"
	"sync"
)

// Store is the single owner of the live record set.
//
// Every increment and every read copy happens under one lock, so readers
// (flush, backup, rank queries) always observe each record either before or
// after an increment, never in between. Records keep their insertion order:
// load order first, then the order in which new members earned a first point.
// That order is the tie-break between members with equal XP.
type Store struct {
	mu      sync.RWMutex
	records []Record
	index   map[string]int
}

// NewStore builds a store from a previously persisted record set.
// The slice is copied; its order becomes the insertion order.
func NewStore(records []Record) (*Store, error) {
	if err := validateSet(records); err != nil {
		return nil, err
	}

	s := &Store{
		records: make([]Record, len(records)),
		index:   make(map[string]int, len(records)),
	}
	copy(s.records, records)
	for i, r := range s.records {
		s.index[r.MemberID] = i
	}
	return s, nil
}

// NewEmptyStore returns a store without records.
func NewEmptyStore() *Store {
	return &Store{index: make(map[string]int)}
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTATION
// ══════════════════════════════════════════════════════════════════════════════

// UpsertIncrement adds exactly one XP point to a member, creating the record
// with 1 XP when the member has none yet. It is the only mutation primitive.
func (s *Store) UpsertIncrement(memberID string) (Increment, error) {
	if err := (Record{MemberID: memberID}).Validate(); err != nil {
		return Increment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[memberID]
	if !ok {
		s.records = append(s.records, Record{MemberID: memberID, XP: 1})
		s.index[memberID] = len(s.records) - 1
		return Increment{MemberID: memberID, OldXP: 0, NewXP: 1, Created: true}, nil
	}

	old := s.records[i].XP
	s.records[i].XP = old + 1
	return Increment{MemberID: memberID, OldXP: old, NewXP: old + 1}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

// Get returns the member's record, if any.
func (s *Store) Get(memberID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[memberID]
	if !ok {
		return Record{}, false
	}
	return s.records[i], true
}

// Snapshot returns a point-in-time copy of the record set in insertion order.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// TotalXP returns the sum of all records' XP.
func (s *Store) TotalXP() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, r := range s.records {
		total += r.XP
	}
	return total
}

// RankedDescending returns every record ordered by XP descending. Members with
// equal XP keep their insertion order.
func (s *Store) RankedDescending() []Record {
	return rank(s.Snapshot())
}

// Top returns the first n records of RankedDescending.
func (s *Store) Top(n int) []Record {
	if n <= 0 {
		return []Record{}
	}
	ranked := s.RankedDescending()
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// RankOf returns the zero-based position of the member in RankedDescending,
// or -1 when the member has no record.
func (s *Store) RankOf(memberID string) int {
	pos, _ := s.Standing(memberID)
	return pos
}

// Standing returns the member's zero-based rank (-1 when absent) together with
// the total number of ranked records, both taken from the same snapshot.
func (s *Store) Standing(memberID string) (rank, total int) {
	ranked := s.RankedDescending()
	for i, r := range ranked {
		if r.MemberID == memberID {
			return i, len(ranked)
		}
	}
	return -1, len(ranked)
}

func rank(records []Record) []Record {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].XP > records[j].XP
	})
	return records
}
