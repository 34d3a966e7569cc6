package gtfs

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jamespfennell/gtfs"

	"planner.onebusaway.org/internal/raptor"
)

// Snapshot is an immutable routing view of one service date. A new snapshot is
// published whenever static or realtime data changes; readers never see a partial update.
type Snapshot struct {
	Version     uint64
	ServiceDate time.Time // service day origin: noon minus twelve hours, local time
	BuiltAt     time.Time
	Data        *raptor.TransitData
	Feed        *Feed

	DelayedTrips  int
	SkippedTrips  int
	realtimeStamp time.Time
}

// ServiceDayStart returns the origin of GTFS times for the calendar day of date in loc.
// On DST days it differs from midnight.
func ServiceDayStart(date time.Time, loc *time.Location) time.Time {
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc).Add(-12 * time.Hour)
}

// SecondsOf converts an instant to seconds since the service day origin.
func (s *Snapshot) SecondsOf(t time.Time) int {
	return int(t.Sub(s.ServiceDate) / time.Second)
}

// TimeOf converts seconds since the service day origin to an instant.
func (s *Snapshot) TimeOf(seconds int) time.Time {
	return s.ServiceDate.Add(time.Duration(seconds) * time.Second)
}

// SameServiceDay reports whether t falls on the calendar day of this snapshot.
func (s *Snapshot) SameServiceDay(t time.Time) bool {
	return dateKey(t.In(s.Feed.Location)) == dateKey(s.ServiceDate.Add(12*time.Hour))
}

// RealtimeTimestamp is when the delays applied to this snapshot were fetched. Zero for static snapshots.
func (s *Snapshot) RealtimeTimestamp() time.Time { return s.realtimeStamp }

// RouteIDsForStop returns the distinct routes of the patterns serving a stop.
func (s *Snapshot) RouteIDsForStop(stop int) []string {
	var ids []string
	for _, pi := range s.Data.PatternsForStop(stop) {
		id := s.Data.Pattern(pi).RouteID
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func dateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

func serviceActive(s *gtfs.Service, date time.Time) bool {
	key := dateKey(date)
	for _, d := range s.RemovedDates {
		if dateKey(d) == key {
			return false
		}
	}
	for _, d := range s.AddedDates {
		if dateKey(d) == key {
			return true
		}
	}
	if key < dateKey(s.StartDate) || key > dateKey(s.EndDate) {
		return false
	}
	switch date.Weekday() {
	case time.Monday:
		return s.Monday
	case time.Tuesday:
		return s.Tuesday
	case time.Wednesday:
		return s.Wednesday
	case time.Thursday:
		return s.Thursday
	case time.Friday:
		return s.Friday
	case time.Saturday:
		return s.Saturday
	default:
		return s.Sunday
	}
}

// scheduledTimes returns the trip's stop times in stop_sequence order with
// missing times interpolated by stop position. ok is false when the first or last time is missing.
func scheduledTimes(trip *gtfs.ScheduledTrip) (sts []gtfs.ScheduledStopTime, arr, dep []int, ok bool) {
	sts = slices.Clone(trip.StopTimes)
	slices.SortFunc(sts, func(a, b gtfs.ScheduledStopTime) int { return cmp.Compare(a.StopSequence, b.StopSequence) })

	n := len(sts)
	arr, dep = make([]int, n), make([]int, n)
	known := make([]bool, n)
	for i, st := range sts {
		a, d := int(st.ArrivalTime/time.Second), int(st.DepartureTime/time.Second)
		if a == 0 && d == 0 && i > 0 {
			continue
		}
		if d == 0 {
			d = a
		}
		if a == 0 && i > 0 {
			a = d
		}
		arr[i], dep[i], known[i] = a, d, true
	}
	if n < 2 || !known[0] || !known[n-1] {
		return sts, nil, nil, false
	}

	prev := 0
	for i := 1; i < n; i++ {
		if !known[i] {
			continue
		}
		for j := prev + 1; j < i; j++ {
			t := dep[prev] + (arr[i]-dep[prev])*(j-prev)/(i-prev)
			arr[j], dep[j] = t, t
		}
		prev = i
	}
	return sts, arr, dep, true
}

// applyDelay shifts times by the trip's realtime updates. A delay holds from the
// stop it is reported for until the next update; times are kept non-decreasing.
// Updates that match no stop of the trip are ignored.
func applyDelay(sts []gtfs.ScheduledStopTime, arr, dep []int, delay TripDelay, dayStart time.Time) {
	at := make([]int, len(sts))
	has := make([]bool, len(sts))
	for _, u := range delay.Updates {
		i := slices.IndexFunc(sts, u.matches)
		if i < 0 {
			continue
		}
		d := u.Delay
		if !u.Time.IsZero() {
			d = int(u.Time.Sub(dayStart)/time.Second) - arr[i]
		}
		at[i], has[i] = d, true
	}

	current := 0
	for i := range sts {
		if has[i] {
			current = at[i]
		}
		arr[i] += current
		dep[i] += current
		if i > 0 && arr[i] < dep[i-1] {
			arr[i] = dep[i-1]
		}
		if dep[i] < arr[i] {
			dep[i] = arr[i]
		}
	}
}

func patternKey(routeID string, stops []int, noBoard, noAlight []bool) string {
	var b strings.Builder
	b.WriteString(routeID)
	for i, s := range stops {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(s))
		if noBoard[i] {
			b.WriteByte('b')
		}
		if noAlight[i] {
			b.WriteByte('a')
		}
	}
	return b.String()
}

// BuildSnapshot builds the routing data for the service day containing date,
// applying realtime delays keyed by trip id.
func (f *Feed) BuildSnapshot(date time.Time, delays map[string]TripDelay, version uint64) (*Snapshot, error) {
	local := date.In(f.Location)
	snap := &Snapshot{
		Version:     version,
		ServiceDate: ServiceDayStart(local, f.Location),
		BuiltAt:     time.Now(),
		Feed:        f,
	}

	active := make(map[string]bool, len(f.Static.Services))
	for i := range f.Static.Services {
		s := &f.Static.Services[i]
		active[s.Id] = serviceActive(s, local)
	}

	type group struct {
		input raptor.PatternInput
	}
	groups := make(map[string]*group)
	var order []string

	for i := range f.Static.Trips {
		trip := &f.Static.Trips[i]
		if trip.Service == nil || !active[trip.Service.Id] || trip.Route == nil {
			continue
		}
		sts, arr, dep, ok := scheduledTimes(trip)
		if !ok {
			snap.SkippedTrips++
			continue
		}
		if d, found := delays[trip.ID]; found && len(d.Updates) > 0 {
			applyDelay(sts, arr, dep, d, snap.ServiceDate)
			snap.DelayedTrips++
		}

		stops := make([]int, len(sts))
		noBoard, noAlight := make([]bool, len(sts)), make([]bool, len(sts))
		valid := true
		for j, st := range sts {
			if st.Stop == nil {
				valid = false
				break
			}
			idx, found := f.stopIndex[st.Stop.Id]
			if !found {
				valid = false
				break
			}
			stops[j] = idx
			key := stopTimeKey{tripID: trip.ID, sequence: st.StopSequence}
			noBoard[j] = f.noPickup[key]
			noAlight[j] = f.noDropOff[key]
			if dep[j] < arr[j] || (j > 0 && arr[j] < dep[j-1]) {
				valid = false
				break
			}
		}
		if !valid {
			snap.SkippedTrips++
			continue
		}

		key := patternKey(trip.Route.Id, stops, noBoard, noAlight)
		g := groups[key]
		if g == nil {
			g = &group{input: raptor.PatternInput{
				RouteID:     trip.Route.Id,
				Name:        f.routes[trip.Route.Id].DisplayName(),
				Stops:       stops,
				NoBoarding:  positions(noBoard),
				NoAlighting: positions(noAlight),
			}}
			groups[key] = g
			order = append(order, key)
		}
		g.input.Trips = append(g.input.Trips, raptor.TripInput{ID: trip.ID, Arrivals: arr, Departures: dep})
	}

	b := raptor.NewTransitDataBuilder(len(f.stops))
	for _, key := range order {
		b.AddPattern(groups[key].input)
	}
	for _, fp := range f.footpaths {
		b.AddTransfer(fp.FromStop, fp.ToStop, fp.Duration)
	}
	for _, c := range f.constraints {
		b.AddConstraint(c)
	}

	data, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building transit data for %s: %w", local.Format("2006-01-02"), err)
	}
	snap.Data = data
	return snap, nil
}

func positions(flags []bool) []int {
	var out []int
	for i, f := range flags {
		if f {
			out = append(out, i)
		}
	}
	return out
}
