package effect

import "github.com/rickgao/effectwatch/internal/model"

// Snapshot is an immutable view of the effect collection at one point in
// time. Methods return copies; a Snapshot is safe to share between
// goroutines.
type Snapshot struct {
	records    map[string]model.EffectRecord
	order      []string // schedule arrival order
	displayCap int
	version    uint64
}

func emptySnapshot(displayCap int) *Snapshot {
	return &Snapshot{
		records:    make(map[string]model.EffectRecord),
		displayCap: displayCap,
	}
}

// clone returns a writable copy with the version bumped.
func (s *Snapshot) clone() *Snapshot {
	records := make(map[string]model.EffectRecord, len(s.records)+1)
	for id, r := range s.records {
		records[id] = r
	}
	order := make([]string, len(s.order), len(s.order)+1)
	copy(order, s.order)

	return &Snapshot{
		records:    records,
		order:      order,
		displayCap: s.displayCap,
		version:    s.version + 1,
	}
}

// Version increases by one with every published change.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Len returns the number of tracked records.
func (s *Snapshot) Len() int {
	return len(s.order)
}

// Get returns the record for id.
func (s *Snapshot) Get(id string) (model.EffectRecord, bool) {
	r, ok := s.records[id]
	return r, ok
}

// IDs returns every tracked id in display order.
func (s *Snapshot) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// RenderList returns at most DisplayCap records in display order.
func (s *Snapshot) RenderList() []model.EffectRecord {
	n := len(s.order)
	if s.displayCap > 0 && n > s.displayCap {
		n = s.displayCap
	}
	return s.take(n)
}

// Hidden returns how many tracked records do not fit in the render list.
func (s *Snapshot) Hidden() int {
	if s.displayCap <= 0 || len(s.order) <= s.displayCap {
		return 0
	}
	return len(s.order) - s.displayCap
}

func (s *Snapshot) take(n int) []model.EffectRecord {
	out := make([]model.EffectRecord, 0, n)
	for _, id := range s.order[:n] {
		out = append(out, s.records[id])
	}
	return out
}

// removeID deletes id from a snapshot under construction.
func (s *Snapshot) removeID(id string) {
	delete(s.records, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
