package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/conference-manager/internal/directory"
	"github.com/example/conference-manager/internal/events"
	"github.com/example/conference-manager/internal/rooms"
)

// Event duration bounds in hours.
const (
	minDurationHours = 1
	maxDurationHours = 3
	maxSpeakers      = 2
	minRoomCapacity  = 3
)

// UserDirectory exposes the account lookups the scheduling coordinator
// needs. The coordinator never owns user records itself.
type UserDirectory interface {
	Exists(username string) bool
	IsRole(username string, role directory.Role) bool
	Speakers() []string
	RegisteredEvents(username string) []string
	AddRegisteredEvent(username, eventName string) error
	RemoveRegisteredEvent(username, eventName string)
}

// CreateEventParams wraps the data required to schedule an event.
type CreateEventParams struct {
	Name       string
	Speakers   []string
	Start      time.Time
	RoomNumber int
	Duration   int
	Capacity   int
}

// SchedulingService composes the room registry and the event catalog,
// keeping both consistent across event creation and deletion.
//
// Every mutating method runs under the service mutex, so the add-event
// plus book-room pair (and its deletion counterpart) is never
// interleaved with another mutation.
type SchedulingService struct {
	mu     sync.Mutex
	rooms  *rooms.Registry
	events *events.Catalog
	users  UserDirectory
	now    func() time.Time
	logger *slog.Logger
}

// NewSchedulingService wires the scheduling coordinator's dependencies.
func NewSchedulingService(roomRegistry *rooms.Registry, catalog *events.Catalog, users UserDirectory, now func() time.Time, logger *slog.Logger) *SchedulingService {
	if now == nil {
		now = time.Now
	}
	return &SchedulingService{
		rooms:  roomRegistry,
		events: catalog,
		users:  users,
		now:    now,
		logger: defaultLogger(logger),
	}
}

func (s *SchedulingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SchedulingService", operation, attrs...)
}

// CreateEvent validates the request, confirms room and speaker
// availability, and on success schedules the event and books the room
// as one unit.
func (s *SchedulingService) CreateEvent(ctx context.Context, params CreateEventParams) (err error) {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "CreateEvent",
		"event", params.Name,
		"room", params.RoomNumber,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event created")
	}()

	name := strings.TrimSpace(params.Name)
	vErr := &ValidationError{}
	if name == "" {
		vErr.add("name", "name is required")
	}
	if params.Duration < minDurationHours || params.Duration > maxDurationHours {
		vErr.add("duration", fmt.Sprintf("duration must be between %d and %d hours", minDurationHours, maxDurationHours))
	}
	if len(params.Speakers) > maxSpeakers {
		vErr.add("speakers", fmt.Sprintf("at most %d speakers", maxSpeakers))
	}
	hour := params.Start.Hour()
	if hour < s.events.OpenHour() || hour+params.Duration > s.events.CloseHour() {
		vErr.add("time", "event must fall within conference hours")
	}
	if params.Capacity < 1 {
		vErr.add("capacity", "capacity must be positive")
	}
	if vErr.HasErrors() {
		return vErr
	}

	if s.events.Exists(name) {
		return ErrAlreadyExists
	}
	for _, speaker := range params.Speakers {
		if !s.users.IsRole(speaker, directory.RoleSpeaker) {
			vErr.add("speakers", fmt.Sprintf("%s is not a speaker", speaker))
			return vErr
		}
	}
	if !s.rooms.Exists(params.RoomNumber) {
		return ErrNotFound
	}
	if s.rooms.HasCapacityConflict(params.RoomNumber, params.Capacity) {
		vErr.add("capacity", "capacity exceeds room capacity")
		return vErr
	}
	if !s.rooms.IsAvailable(params.RoomNumber, params.Start, params.Duration) {
		vErr.add("room", "room is not available at that time")
		return vErr
	}
	available := s.events.AvailableSpeakers(params.Speakers, params.Start, params.Duration)
	if len(available) != len(params.Speakers) {
		vErr.add("speakers", "a speaker is not available at that time")
		return vErr
	}

	s.events.Add(name, params.Speakers, params.Start, params.RoomNumber, params.Duration, params.Capacity)
	if !s.events.Exists(name) {
		// Rejected by the catalog's duplicate time+speakers rule.
		vErr.add("speakers", "an identical event is already scheduled")
		return vErr
	}
	s.rooms.Book(params.RoomNumber, params.Start, params.Duration)
	return nil
}

// DeleteEvent removes the event from the catalog and releases its room
// booking. The room and start time are read before deletion since they
// are only available while the event exists. Attendees' registered
// event lists are cleaned up as well.
func (s *SchedulingService) DeleteEvent(ctx context.Context, name string) (err error) {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "DeleteEvent", "event", name)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	roomNumber, ok := s.events.Room(name)
	if !ok {
		return ErrNotFound
	}
	start, _ := s.events.Start(name)
	attendees := s.events.Attendees(name)

	if !s.events.Delete(name) {
		return ErrNotFound
	}
	s.rooms.Unbook(roomNumber, start)
	for _, attendee := range attendees {
		s.users.RemoveRegisteredEvent(attendee, name)
	}
	return nil
}

// ChangeCapacity updates the event's attendee capacity. The new value
// must cover everyone already at the event, speakers included, and fit
// the assigned room.
func (s *SchedulingService) ChangeCapacity(ctx context.Context, name string, capacity int) (err error) {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "ChangeCapacity", "event", name, "capacity", capacity)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change capacity", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "capacity changed")
	}()

	roomNumber, ok := s.events.Room(name)
	if !ok {
		return ErrNotFound
	}
	vErr := &ValidationError{}
	if headcount := s.events.Headcount(name); capacity < headcount {
		vErr.add("capacity", "capacity below current headcount")
	}
	if s.rooms.HasCapacityConflict(roomNumber, capacity) {
		vErr.add("capacity", "capacity exceeds room capacity")
	}
	if vErr.HasErrors() {
		return vErr
	}
	s.events.ChangeCapacity(name, capacity)
	return nil
}

// Enroll signs the user up for the event and mirrors the enrollment on
// the user's registered-event list, the cross-component invariant the
// catalog leaves to its caller.
func (s *SchedulingService) Enroll(ctx context.Context, username, eventName string) (err error) {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "Enroll", "user", username, "event", eventName)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to enroll", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user enrolled")
	}()

	if !s.users.Exists(username) {
		return ErrNotFound
	}
	if !s.events.Exists(eventName) {
		return ErrNotFound
	}
	if !s.events.Enroll(username, eventName) {
		vErr := &ValidationError{}
		vErr.add("enrollment", "user cannot enroll in this event")
		return vErr
	}
	return s.users.AddRegisteredEvent(username, eventName)
}

// Unenroll removes the user from the event and from their registered
// list.
func (s *SchedulingService) Unenroll(ctx context.Context, username, eventName string) (err error) {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "Unenroll", "user", username, "event", eventName)

	if !s.events.Unenroll(username, eventName) {
		err := ErrNotFound
		logger.ErrorContext(ctx, "failed to unenroll", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	s.users.RemoveRegisteredEvent(username, eventName)
	logger.InfoContext(ctx, "user unenrolled")
	return nil
}

// AddRoom registers a new room after validating its spec.
func (s *SchedulingService) AddRoom(ctx context.Context, spec rooms.Spec) (err error) {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "AddRoom", "room", spec.Number)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room added")
	}()

	vErr := &ValidationError{}
	if spec.Number < 0 {
		vErr.add("number", "room number must not be negative")
	}
	if spec.Capacity < minRoomCapacity {
		vErr.add("capacity", fmt.Sprintf("room capacity must be at least %d", minRoomCapacity))
	}
	if vErr.HasErrors() {
		return vErr
	}
	if !s.rooms.Add(spec) {
		return ErrAlreadyExists
	}
	return nil
}

// DeleteRoom removes a room. Elapsed bookings are purged first; a room
// still holding future bookings cannot be deleted.
func (s *SchedulingService) DeleteRoom(ctx context.Context, number int) (err error) {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "DeleteRoom", "room", number)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room deleted")
	}()

	if !s.rooms.Exists(number) {
		return ErrNotFound
	}
	s.rooms.PurgeElapsed(number, s.now())
	if !s.rooms.CanDelete(number) {
		vErr := &ValidationError{}
		vErr.add("room", "room still has future bookings")
		return vErr
	}
	s.rooms.Delete(number)
	return nil
}

// AvailableRooms lists rooms free for the window [start, start+duration).
func (s *SchedulingService) AvailableRooms(ctx context.Context, start time.Time, durationHours int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.AvailableRooms(start, durationHours)
}

// AvailableSpeakers lists registered speakers free for the window under
// the conference's hour-granularity rule.
func (s *SchedulingService) AvailableSpeakers(ctx context.Context, start time.Time, durationHours int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.AvailableSpeakers(s.users.Speakers(), start, durationHours)
}

// RegisteredEvents returns the full event records a user signed up for,
// in catalog order.
func (s *SchedulingService) RegisteredEvents(ctx context.Context, username string) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.ByNames(s.users.RegisteredEvents(username))
}

// Rooms lists the registered room numbers in ascending order.
func (s *SchedulingService) Rooms(ctx context.Context) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.Numbers()
}

// RoomDetails returns the attributes of a registered room.
func (s *SchedulingService) RoomDetails(ctx context.Context, number int) (rooms.Spec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.Details(number)
}

// Events lists every scheduled event ordered by start time.
func (s *SchedulingService) Events(ctx context.Context) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.All()
}
