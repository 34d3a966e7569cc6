package raptor

import "sort"

// UnboundedTripIndex is returned when no trip matches. It is never a valid trip index.
const UnboundedTripIndex = -1

// tripSearch finds boardable trips in one pattern. The last result seeds the next binary search
// since successive queries in a round usually land close to each other.
type tripSearch struct {
	pattern *Pattern
	forward bool
	last    int
}

// Search returns the index of the best trip boardable at stopPos given the time bound. Forward
// searches return the earliest trip departing at or after bound, reverse searches the latest trip
// arriving at or before bound. Only trips better than limit are considered; pass
// UnboundedTripIndex to consider the whole timetable.
func (s *tripSearch) Search(bound, stopPos, limit int) int {
	var i int
	if s.forward {
		i = s.searchForward(bound, stopPos, limit)
	} else {
		i = s.searchReverse(bound, stopPos, limit)
	}
	if i != UnboundedTripIndex {
		s.last = i
	}
	return i
}

func (s *tripSearch) searchForward(bound, pos, limit int) int {
	trips := s.pattern.trips
	lo, hi := 0, len(trips)
	if limit != UnboundedTripIndex && limit < hi {
		hi = limit
	}
	if s.last >= lo && s.last < hi {
		if trips[s.last].departures[pos] >= bound {
			hi = s.last + 1
		} else {
			lo = s.last + 1
		}
	}
	i := lo + sort.Search(hi-lo, func(k int) bool {
		return trips[lo+k].departures[pos] >= bound
	})
	if i >= hi {
		return UnboundedTripIndex
	}
	return i
}

func (s *tripSearch) searchReverse(bound, pos, limit int) int {
	trips := s.pattern.trips
	lo, hi := 0, len(trips)
	if limit != UnboundedTripIndex {
		lo = limit + 1
	}
	if s.last >= lo && s.last < hi {
		if trips[s.last].arrivals[pos] <= bound {
			lo = s.last
		} else {
			hi = s.last
		}
	}
	// first trip arriving after bound; the one before it is the answer
	j := lo + sort.Search(hi-lo, func(k int) bool {
		return trips[lo+k].arrivals[pos] > bound
	})
	if j-1 < lo {
		return UnboundedTripIndex
	}
	return j - 1
}

// better reports whether trip index a is preferred over b for boarding in the search direction.
func (s *tripSearch) better(a, b int) bool {
	if b == UnboundedTripIndex {
		return a != UnboundedTripIndex
	}
	if s.forward {
		return a < b
	}
	return a > b
}
