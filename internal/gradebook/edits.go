package gradebook

import (
	"sort"
	"sync"
	"time"
)

// CellKey identifies one editable gradebook cell.
type CellKey struct {
	SectionID    int64 `json:"sectionId"`
	Kind         Kind  `json:"kind"`
	AssessmentID int64 `json:"assessmentId"`
	UserID       int64 `json:"userId"`
	ProblemID    int64 `json:"problemId"`
}

// EditState is an in-flight score edit. A nil Value is an empty editor.
type EditState struct {
	Key       CellKey   `json:"key"`
	Value     *float64  `json:"value"`
	Original  *float64  `json:"original"`
	StartedAt time.Time `json:"startedAt"`
}

// EditStore holds score edits that have not been saved yet. One cell has at
// most one edit; different cells may be edited at the same time. Nothing here
// guards against an older save landing after a newer one.
type EditStore struct {
	mu    sync.Mutex
	cells map[CellKey]EditState
	now   func() time.Time
}

func NewEditStore(now func() time.Time) *EditStore {
	if now == nil {
		now = time.Now
	}
	return &EditStore{cells: map[CellKey]EditState{}, now: now}
}

// Begin opens an editor seeded with the cell's current score. Beginning an
// already open cell returns the existing edit untouched.
func (s *EditStore) Begin(key CellKey, current *float64) EditState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.cells[key]; ok {
		return st
	}
	st := EditState{
		Key:       key,
		Value:     copyScore(current),
		Original:  copyScore(current),
		StartedAt: s.now(),
	}
	s.cells[key] = st
	return st
}

func (s *EditStore) Update(key CellKey, value *float64) (EditState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.cells[key]
	if !ok {
		return EditState{}, ErrNoSession
	}
	st.Value = copyScore(value)
	s.cells[key] = st
	return st, nil
}

func (s *EditStore) Get(key CellKey) (EditState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.cells[key]
	return st, ok
}

// Cancel drops an edit without writing anything.
func (s *EditStore) Cancel(key CellKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cells[key]; !ok {
		return ErrNoSession
	}
	delete(s.cells, key)
	return nil
}

func (s *EditStore) clear(key CellKey) {
	s.mu.Lock()
	delete(s.cells, key)
	s.mu.Unlock()
}

// ClearSection drops every open edit of the section and reports how many
// were dropped.
func (s *EditStore) ClearSection(sectionID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.cells {
		if k.SectionID == sectionID {
			delete(s.cells, k)
			n++
		}
	}
	return n
}

// Open lists the section's open edits ordered by assessment, student, problem.
func (s *EditStore) Open(sectionID int64) []EditState {
	s.mu.Lock()
	out := make([]EditState, 0, len(s.cells))
	for k, st := range s.cells {
		if k.SectionID == sectionID {
			out = append(out, st)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.AssessmentID != b.AssessmentID {
			return a.AssessmentID < b.AssessmentID
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.ProblemID < b.ProblemID
	})
	return out
}

func copyScore(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
