package raptor

import (
	"cmp"
	"slices"
)

// destinationArrivals collects paths across all iterations of a request, keeping only those no
// other path beats on departure, arrival, transfers and (multi-criteria) cost.
type destinationArrivals struct {
	calc  TransitCalculator
	paths *paretoSet[*Path]
	// bestByRound[r] is the best destination time in search direction using at most r rides.
	bestByRound []int
}

func newDestinationArrivals(calc TransitCalculator, maxRounds int, mc bool) *destinationArrivals {
	d := &destinationArrivals{
		calc:        calc,
		bestByRound: make([]int, maxRounds+1),
	}
	for r := range d.bestByRound {
		d.bestByRound[r] = calc.UnreachedTime()
	}
	d.paths = newParetoSet(func(a, b *Path) bool {
		if a.EndTime > b.EndTime || a.StartTime < b.StartTime || a.NumberOfTransfers > b.NumberOfTransfers {
			return false
		}
		return !mc || a.GeneralizedCost <= b.GeneralizedCost
	})
	return d
}

func (d *destinationArrivals) bestTime(round int) int {
	if round >= len(d.bestByRound) {
		round = len(d.bestByRound) - 1
	}
	return d.bestByRound[round]
}

// add offers a path reached in the given round. destTime is its end time in search direction.
func (d *destinationArrivals) add(p *Path, round, destTime int) bool {
	if !d.paths.add(p) {
		return false
	}
	for r := round; r < len(d.bestByRound); r++ {
		if d.calc.IsBefore(destTime, d.bestByRound[r]) {
			d.bestByRound[r] = destTime
		}
	}
	return true
}

// sortedPaths returns the paths ordered by departure, arrival, transfers and cost.
func (d *destinationArrivals) sortedPaths() []*Path {
	paths := slices.Clone(d.paths.all())
	slices.SortFunc(paths, func(a, b *Path) int {
		return cmp.Or(
			cmp.Compare(a.StartTime, b.StartTime),
			cmp.Compare(a.EndTime, b.EndTime),
			cmp.Compare(a.NumberOfTransfers, b.NumberOfTransfers),
			cmp.Compare(a.GeneralizedCost, b.GeneralizedCost),
		)
	})
	return paths
}
