package dedup

// SeenSet is the set of article ids that have been packaged. Ids are only
// ever added.
type SeenSet struct {
	ids   map[string]struct{}
	added []string
}

func NewSeenSet(ids ...string) *SeenSet {
	s := &SeenSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *SeenSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Insert adds id and reports whether it was absent.
func (s *SeenSet) Insert(id string) bool {
	if s.Contains(id) {
		return false
	}
	s.ids[id] = struct{}{}
	s.added = append(s.added, id)
	return true
}

func (s *SeenSet) Len() int {
	return len(s.ids)
}

// Added returns the ids inserted since the set was created, in insertion order.
func (s *SeenSet) Added() []string {
	return append([]string(nil), s.added...)
}
