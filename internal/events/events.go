// Package events maintains the catalog of scheduled conference events.
//
// The catalog keeps events ordered ascending by start time and enforces
// the enrollment and speaker-availability rules. Room bookings are
// referenced by room number only; keeping the room schedule consistent
// with the catalog is the scheduling coordinator's responsibility.
package events

import (
	"fmt"
	"strings"
	"time"
)

// Default conference operating hours. Events start on the hour between
// the open hour (inclusive) and close hour (exclusive).
const (
	DefaultOpenHour  = 9
	DefaultCloseHour = 17
)

// Event is a scheduled talk or session. Speakers are registered
// separately from attendees and never occupy attendee capacity.
type Event struct {
	Name      string
	Speakers  []string
	Start     time.Time
	RoomNum   int
	Duration  int
	Capacity  int
	Attendees []string
}

func (e Event) clone() Event {
	out := e
	out.Speakers = append([]string(nil), e.Speakers...)
	out.Attendees = append([]string(nil), e.Attendees...)
	return out
}

// Catalog owns the list of scheduled events, sorted ascending by start
// time with stable placement for equal starts.
type Catalog struct {
	events    []*Event
	openHour  int
	closeHour int
}

// NewCatalog returns an empty catalog using the default conference
// hours.
func NewCatalog() *Catalog {
	return NewCatalogWithHours(DefaultOpenHour, DefaultCloseHour)
}

// NewCatalogWithHours returns an empty catalog with the given operating
// hours. Out-of-range hours fall back to the defaults.
func NewCatalogWithHours(openHour, closeHour int) *Catalog {
	if openHour < 0 || closeHour > 24 || openHour >= closeHour {
		openHour, closeHour = DefaultOpenHour, DefaultCloseHour
	}
	return &Catalog{openHour: openHour, closeHour: closeHour}
}

// OpenHour returns the first hour of day at which events may start.
func (c *Catalog) OpenHour() int { return c.openHour }

// CloseHour returns the hour of day by which events must have started.
func (c *Catalog) CloseHour() int { return c.closeHour }

// StartTimes lists the legal start hours as zero-padded two-digit
// strings, in order.
func (c *Catalog) StartTimes() []string {
	times := make([]string, 0, c.closeHour-c.openHour)
	for hour := c.openHour; hour < c.closeHour; hour++ {
		times = append(times, fmt.Sprintf("%02d", hour))
	}
	return times
}

// normalizeName is the identity comparison for event names: leading and
// trailing whitespace and letter case are not significant.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (c *Catalog) find(name string) *Event {
	key := normalizeName(name)
	for _, e := range c.events {
		if normalizeName(e.Name) == key {
			return e
		}
	}
	return nil
}

// Exists reports whether an event with the given name is scheduled.
func (c *Catalog) Exists(name string) bool {
	return c.find(name) != nil
}

// Add schedules a new event. The insert is rejected silently when an
// event with the same name already exists, or when an event with the
// identical start time and speaker list is already scheduled.
func (c *Catalog) Add(name string, speakers []string, start time.Time, roomNum, durationHours, capacity int) {
	for _, e := range c.events {
		if normalizeName(e.Name) == normalizeName(name) {
			return
		}
		if e.Start.Equal(start) && equalSpeakers(e.Speakers, speakers) {
			return
		}
	}

	event := &Event{
		Name:     strings.TrimSpace(name),
		Speakers: append([]string(nil), speakers...),
		Start:    start,
		RoomNum:  roomNum,
		Duration: durationHours,
		Capacity: capacity,
	}

	at := len(c.events)
	for i, e := range c.events {
		if e.Start.After(start) {
			at = i
			break
		}
	}
	c.events = append(c.events, nil)
	copy(c.events[at+1:], c.events[at:])
	c.events[at] = event
}

func equalSpeakers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Delete removes the named event and reports whether a removal
// occurred. It does not release the corresponding room booking; the
// scheduling coordinator owns that cross-component step.
func (c *Catalog) Delete(name string) bool {
	key := normalizeName(name)
	for i, e := range c.events {
		if normalizeName(e.Name) == key {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return true
		}
	}
	return false
}

// ChangeCapacity sets the named event's capacity. It is a no-op when
// the event does not exist. The caller must already have verified that
// the new capacity covers the current headcount and fits the room.
func (c *Catalog) ChangeCapacity(name string, capacity int) {
	if e := c.find(name); e != nil {
		e.Capacity = capacity
	}
}

// CanEnroll reports whether the user may sign up for the named event.
// Enrollment is refused when the user speaks at the event, when the
// event's attendee list has reached capacity, or when the user already
// attends another event with the exact same start instant.
func (c *Catalog) CanEnroll(username, eventName string) bool {
	event := c.find(eventName)
	if event == nil {
		return false
	}
	if contains(event.Speakers, username) {
		return false
	}
	if len(event.Attendees) >= event.Capacity {
		return false
	}
	for _, e := range c.events {
		if e.Start.Equal(event.Start) && contains(e.Attendees, username) {
			return false
		}
	}
	return true
}

// Enroll adds the user to the event's attendee list when CanEnroll
// allows it. The caller is responsible for also recording the event on
// the user's registered-event list.
func (c *Catalog) Enroll(username, eventName string) bool {
	if !c.CanEnroll(username, eventName) {
		return false
	}
	event := c.find(eventName)
	event.Attendees = append(event.Attendees, username)
	return true
}

// Unenroll removes the user from the event's attendee list and reports
// whether the user was attending.
func (c *Catalog) Unenroll(username, eventName string) bool {
	event := c.find(eventName)
	if event == nil {
		return false
	}
	for i, attendee := range event.Attendees {
		if attendee == username {
			event.Attendees = append(event.Attendees[:i], event.Attendees[i+1:]...)
			return true
		}
	}
	return false
}

// hasTimeConflict applies the conference's hour-granularity conflict
// rule: two windows conflict when they fall on the same calendar day
// and either share a start hour or one starts strictly inside the
// other's span. Minutes are not considered.
func hasTimeConflict(e *Event, start time.Time, durationHours int) bool {
	ey, em, ed := e.Start.Date()
	y, m, d := start.Date()
	if ey != y || em != m || ed != d {
		return false
	}
	startHour := start.Hour()
	endHour := startHour + durationHours
	eStart := e.Start.Hour()
	eEnd := eStart + e.Duration
	switch {
	case eStart == startHour:
		return true
	case eStart < startHour && startHour < eEnd:
		return true
	default:
		return startHour < eStart && eStart < endHour
	}
}

// AvailableSpeakers filters the candidate list down to speakers with no
// scheduled event conflicting with the window [start, start+duration)
// under the hour-granularity rule.
func (c *Catalog) AvailableSpeakers(candidates []string, start time.Time, durationHours int) []string {
	unavailable := make(map[string]bool)
	for _, e := range c.events {
		if hasTimeConflict(e, start, durationHours) {
			for _, s := range e.Speakers {
				unavailable[s] = true
			}
		}
	}

	available := make([]string, 0, len(candidates))
	for _, s := range candidates {
		if !unavailable[s] {
			available = append(available, s)
		}
	}
	return available
}

// All returns a copy of every scheduled event in start-time order.
func (c *Catalog) All() []Event {
	out := make([]Event, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.clone())
	}
	return out
}

// OnDate returns all events occurring on the same calendar day as date.
func (c *Catalog) OnDate(date time.Time) []Event {
	y, m, d := date.Date()
	var out []Event
	for _, e := range c.events {
		ey, em, ed := e.Start.Date()
		if ey == y && em == m && ed == d {
			out = append(out, e.clone())
		}
	}
	return out
}

// BySpeaker returns all events at which the given speaker presents.
func (c *Catalog) BySpeaker(speaker string) []Event {
	var out []Event
	for _, e := range c.events {
		if contains(e.Speakers, speaker) {
			out = append(out, e.clone())
		}
	}
	return out
}

// AtHour returns all events starting at the given hour of day across
// all days. The hour is a zero-padded two-digit string as produced by
// StartTimes.
func (c *Catalog) AtHour(hour string) []Event {
	var out []Event
	for _, e := range c.events {
		if fmt.Sprintf("%02d", e.Start.Hour()) == hour {
			out = append(out, e.clone())
		}
	}
	return out
}

// ByNames returns the events whose names appear in the given list,
// preserving catalog order. Names that match no event are skipped.
func (c *Catalog) ByNames(names []string) []Event {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[normalizeName(n)] = true
	}
	var out []Event
	for _, e := range c.events {
		if wanted[normalizeName(e.Name)] {
			out = append(out, e.clone())
		}
	}
	return out
}

// EventNamesBySpeaker returns the names of all events the speaker
// presents at.
func (c *Catalog) EventNamesBySpeaker(speaker string) []string {
	var out []string
	for _, e := range c.events {
		if contains(e.Speakers, speaker) {
			out = append(out, e.Name)
		}
	}
	return out
}

// Attendees returns the attendee usernames of the named event.
func (c *Catalog) Attendees(name string) []string {
	if e := c.find(name); e != nil {
		return append([]string(nil), e.Attendees...)
	}
	return nil
}

// Speakers returns the speaker usernames of the named event.
func (c *Catalog) Speakers(name string) []string {
	if e := c.find(name); e != nil {
		return append([]string(nil), e.Speakers...)
	}
	return nil
}

// Capacity returns the named event's attendee capacity, or zero when
// the event does not exist.
func (c *Catalog) Capacity(name string) int {
	if e := c.find(name); e != nil {
		return e.Capacity
	}
	return 0
}

// Room returns the room number assigned to the named event. The second
// return value reports whether the event exists.
func (c *Catalog) Room(name string) (int, bool) {
	if e := c.find(name); e != nil {
		return e.RoomNum, true
	}
	return 0, false
}

// Start returns the named event's start instant. The second return
// value reports whether the event exists.
func (c *Catalog) Start(name string) (time.Time, bool) {
	if e := c.find(name); e != nil {
		return e.Start, true
	}
	return time.Time{}, false
}

// Duration returns the named event's duration in hours, or zero when
// the event does not exist.
func (c *Catalog) Duration(name string) int {
	if e := c.find(name); e != nil {
		return e.Duration
	}
	return 0
}

// Headcount returns the number of people at the named event including
// its speakers. This is the display and capacity-change figure;
// enrollment capacity counts attendees only. Returns -1 when the event
// does not exist.
func (c *Catalog) Headcount(name string) int {
	e := c.find(name)
	if e == nil {
		return -1
	}
	return len(e.Attendees) + len(e.Speakers)
}

// RemovePast drops every event whose start instant is not after now.
func (c *Catalog) RemovePast(now time.Time) {
	kept := c.events[:0]
	for _, e := range c.events {
		if e.Start.After(now) {
			kept = append(kept, e)
		}
	}
	c.events = kept
}

// Restore appends a persisted event without re-validating, keeping the
// catalog sorted. It is used when rebuilding state from a snapshot.
func (c *Catalog) Restore(event Event) {
	e := event.clone()
	at := len(c.events)
	for i, existing := range c.events {
		if existing.Start.After(e.Start) {
			at = i
			break
		}
	}
	c.events = append(c.events, nil)
	copy(c.events[at+1:], c.events[at:])
	c.events[at] = &e
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
