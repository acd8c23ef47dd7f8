// Package rooms maintains the catalog of conference rooms and each
// room's booked time intervals. It answers availability and conflict
// queries for the scheduling layer.
package rooms

import (
	"sort"
	"time"
)

// Booking is a reserved half-open interval [Start, End) in a room's
// schedule. Bookings are keyed by their start instant.
type Booking struct {
	Start time.Time
	End   time.Time
}

// Spec captures the attributes of a room to be registered.
type Spec struct {
	Number          int
	Capacity        int
	SquareFootage   int
	Screens         int
	SoundSystem     bool
	Stage           bool
	Accessible      bool
	Wifi            bool
	SpecialFeatures string
	Description     string
}

// Room is a registered conference room together with its schedule of
// bookings, kept sorted ascending by start instant.
type Room struct {
	Spec
	bookings []Booking
}

// Schedule returns a copy of the room's bookings ordered by start time.
func (r *Room) Schedule() []Booking {
	out := make([]Booking, len(r.bookings))
	copy(out, r.bookings)
	return out
}

// Registry owns all registered rooms keyed by room number.
//
// Operations that take a room number treat an unknown number as a miss:
// queries return zero values or false. Callers are still expected to
// confirm existence with Exists before mutating a room's schedule.
type Registry struct {
	rooms map[int]*Room
}

// NewRegistry returns an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[int]*Room)}
}

// Add registers a new room from the given spec. It reports false when a
// room with the same number already exists, leaving the registry
// unchanged.
func (g *Registry) Add(spec Spec) bool {
	if _, ok := g.rooms[spec.Number]; ok {
		return false
	}
	g.rooms[spec.Number] = &Room{Spec: spec}
	return true
}

// Exists reports whether a room with the given number is registered.
func (g *Registry) Exists(number int) bool {
	_, ok := g.rooms[number]
	return ok
}

// Empty reports whether no rooms are registered.
func (g *Registry) Empty() bool {
	return len(g.rooms) == 0
}

// Numbers returns all registered room numbers in ascending order.
func (g *Registry) Numbers() []int {
	numbers := make([]int, 0, len(g.rooms))
	for number := range g.rooms {
		numbers = append(numbers, number)
	}
	sort.Ints(numbers)
	return numbers
}

// Details returns the spec of the given room. The second return value
// reports whether the room exists.
func (g *Registry) Details(number int) (Spec, bool) {
	room, ok := g.rooms[number]
	if !ok {
		return Spec{}, false
	}
	return room.Spec, true
}

// Capacity returns the seating capacity of the given room, or zero when
// the room is unknown.
func (g *Registry) Capacity(number int) int {
	room, ok := g.rooms[number]
	if !ok {
		return 0
	}
	return room.Capacity
}

// Schedule returns the bookings of the given room ordered by start time.
func (g *Registry) Schedule(number int) []Booking {
	room, ok := g.rooms[number]
	if !ok {
		return nil
	}
	return room.Schedule()
}

// IsAvailable reports whether the room has no booking overlapping the
// half-open interval [start, start+duration).
func (g *Registry) IsAvailable(number int, start time.Time, durationHours int) bool {
	room, ok := g.rooms[number]
	if !ok {
		return false
	}
	end := start.Add(time.Duration(durationHours) * time.Hour)
	for _, b := range room.bookings {
		if start.Before(b.End) && end.After(b.Start) {
			return false
		}
	}
	return true
}

// AvailableRooms returns the numbers of all rooms free for the interval
// [start, start+duration), in ascending order.
func (g *Registry) AvailableRooms(start time.Time, durationHours int) []int {
	available := make([]int, 0, len(g.rooms))
	for _, number := range g.Numbers() {
		if g.IsAvailable(number, start, durationHours) {
			available = append(available, number)
		}
	}
	return available
}

// HasCapacityConflict reports whether an event of the given capacity
// would exceed the room's capacity.
func (g *Registry) HasCapacityConflict(number, eventCapacity int) bool {
	return eventCapacity > g.Capacity(number)
}

// Book inserts the interval [start, start+duration) into the room's
// schedule, keeping bookings sorted by start instant.
//
// The caller must have confirmed availability with IsAvailable first;
// Book does not re-check for overlaps.
func (g *Registry) Book(number int, start time.Time, durationHours int) bool {
	room, ok := g.rooms[number]
	if !ok {
		return false
	}
	booking := Booking{Start: start, End: start.Add(time.Duration(durationHours) * time.Hour)}
	at := sort.Search(len(room.bookings), func(i int) bool {
		return room.bookings[i].Start.After(start)
	})
	room.bookings = append(room.bookings, Booking{})
	copy(room.bookings[at+1:], room.bookings[at:])
	room.bookings[at] = booking
	return true
}

// Unbook removes the booking keyed by the exact start instant. It
// reports whether a booking was removed.
func (g *Registry) Unbook(number int, start time.Time) bool {
	room, ok := g.rooms[number]
	if !ok {
		return false
	}
	for i, b := range room.bookings {
		if b.Start.Equal(start) {
			room.bookings = append(room.bookings[:i], room.bookings[i+1:]...)
			return true
		}
	}
	return false
}

// PurgeElapsed removes every booking in the room whose start instant is
// strictly before now.
func (g *Registry) PurgeElapsed(number int, now time.Time) {
	room, ok := g.rooms[number]
	if !ok {
		return
	}
	kept := room.bookings[:0]
	for _, b := range room.bookings {
		if !b.Start.Before(now) {
			kept = append(kept, b)
		}
	}
	room.bookings = kept
}

// CanDelete reports whether the room's schedule is empty. Callers should
// run PurgeElapsed first so stale past bookings do not block deletion.
func (g *Registry) CanDelete(number int) bool {
	room, ok := g.rooms[number]
	if !ok {
		return false
	}
	return len(room.bookings) == 0
}

// Delete removes the room from the registry.
func (g *Registry) Delete(number int) {
	delete(g.rooms, number)
}

// Restore replaces the room's schedule wholesale. It is used when
// rebuilding registry state from a persisted snapshot.
func (g *Registry) Restore(spec Spec, bookings []Booking) {
	room := &Room{Spec: spec, bookings: make([]Booking, len(bookings))}
	copy(room.bookings, bookings)
	sort.Slice(room.bookings, func(i, j int) bool {
		return room.bookings[i].Start.Before(room.bookings[j].Start)
	})
	g.rooms[spec.Number] = room
}
