package availability

import (
	"fmt"
	"sync"
	"time"
)

// Range is a closed interval of calendar days.
type Range struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Contains is boundary inclusive: both the first and the last day are busy.
func (r Range) Contains(day time.Time) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

func (r Range) Overlaps(o Range) bool {
	return !o.End.Before(r.Start) && !o.Start.After(r.End)
}

type Bound int

const (
	Start Bound = iota
	End
)

func (b Bound) String() string {
	if b == End {
		return "end"
	}
	return "start"
}

func ParseBound(s string) (Bound, error) {
	switch s {
	case "start":
		return Start, nil
	case "end":
		return End, nil
	}
	return 0, fmt.Errorf("unknown bound %q (start/end)", s)
}

type State int

const (
	Empty State = iota
	PartiallySet
	BothSet
)

func (s State) String() string {
	switch s {
	case PartiallySet:
		return "partial"
	case BothSet:
		return "complete"
	}
	return "empty"
}

// Selection is the start/end pair a user builds before booking. A zero time
// is an unset bound.
type Selection struct {
	Start time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End   time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

func (s Selection) State() State {
	switch {
	case !s.Start.IsZero() && !s.End.IsZero():
		return BothSet
	case !s.Start.IsZero() || !s.End.IsZero():
		return PartiallySet
	}
	return Empty
}

func (s Selection) Range() Range {
	return Range{Start: s.Start, End: s.End}
}

// BusyCache maps room id to its busy ranges.
type BusyCache struct {
	mu sync.RWMutex
	m  map[int64][]Range
}

func NewBusyCache() *BusyCache {
	return &BusyCache{m: make(map[int64][]Range)}
}

// Get returns a copy of the cached ranges and whether the room was ever
// fetched.
func (c *BusyCache) Get(roomID int64) ([]Range, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rs, ok := c.m[roomID]
	return append([]Range(nil), rs...), ok
}

func (c *BusyCache) Set(roomID int64, ranges []Range) {
	c.mu.Lock()
	c.m[roomID] = append([]Range(nil), ranges...)
	c.mu.Unlock()
}

func (c *BusyCache) Clear(roomID int64) {
	c.mu.Lock()
	delete(c.m, roomID)
	c.mu.Unlock()
}

// Selections maps room id to the selection in progress.
type Selections struct {
	mu sync.RWMutex
	m  map[int64]Selection
}

func NewSelections() *Selections {
	return &Selections{m: make(map[int64]Selection)}
}

func (s *Selections) Get(roomID int64) Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[roomID]
}

func (s *Selections) Set(roomID int64, sel Selection) {
	s.mu.Lock()
	if sel.State() == Empty {
		delete(s.m, roomID)
	} else {
		s.m[roomID] = sel
	}
	s.mu.Unlock()
}

func (s *Selections) Clear(roomID int64) {
	s.mu.Lock()
	delete(s.m, roomID)
	s.mu.Unlock()
}

// update applies fn to the current selection under the lock.
func (s *Selections) update(roomID int64, fn func(Selection) Selection) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.m[roomID])
	if next.State() == Empty {
		delete(s.m, roomID)
	} else {
		s.m[roomID] = next
	}
	return next
}
