package raptor

// paretoSet keeps elements no one of which dominates another. dominates(a, b) must report
// whether a is at least as good as b in every criterion; equal elements are not both kept.
type paretoSet[T any] struct {
	elements  []T
	dominates func(a, b T) bool
}

func newParetoSet[T any](dominates func(a, b T) bool) *paretoSet[T] {
	return &paretoSet[T]{dominates: dominates}
}

// add inserts e unless an existing element is at least as good, evicting elements e dominates.
func (s *paretoSet[T]) add(e T) bool {
	for _, existing := range s.elements {
		if s.dominates(existing, e) {
			return false
		}
	}
	kept := s.elements[:0]
	for _, existing := range s.elements {
		if !s.dominates(e, existing) {
			kept = append(kept, existing)
		}
	}
	clear(s.elements[len(kept):])
	s.elements = append(kept, e)
	return true
}

func (s *paretoSet[T]) len() int { return len(s.elements) }

func (s *paretoSet[T]) all() []T { return s.elements }

func (s *paretoSet[T]) reset() {
	clear(s.elements)
	s.elements = s.elements[:0]
}
