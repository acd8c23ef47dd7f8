// Package persistence defines the snapshot contract between the
// conference core and its storage backend. The core's whole state is
// captured as four value snapshots (users, rooms, events, messages)
// loaded and saved as one atomic unit. The snapshot holds no session
// state: who is currently logged in is never persisted.
package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/conference-manager/internal/directory"
	"github.com/example/conference-manager/internal/events"
	"github.com/example/conference-manager/internal/messaging"
	"github.com/example/conference-manager/internal/rooms"
)

// Store loads and saves whole-state snapshots.
type Store interface {
	// Load returns the last saved snapshot. The boolean reports whether
	// a snapshot exists; a fresh store yields (zero, false, nil) and the
	// caller starts from empty state.
	Load(ctx context.Context) (Snapshot, bool, error)
	// Save persists the snapshot atomically: either all four sections
	// are written or none are.
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}

// Snapshot is the complete persisted state of the conference core.
type Snapshot struct {
	Users    UsersSnapshot   `json:"users"`
	Rooms    []RoomRecord    `json:"rooms"`
	Events   []EventRecord   `json:"events"`
	Messages MessageSnapshot `json:"messages"`
}

// UsersSnapshot holds all accounts and the unredeemed invitation code
// pool.
type UsersSnapshot struct {
	Accounts        []AccountRecord `json:"accounts"`
	InvitationCodes []string        `json:"invitation_codes"`
}

// AccountRecord is a persisted user account.
type AccountRecord struct {
	Username         string   `json:"username"`
	PasswordHash     string   `json:"password_hash"`
	Role             string   `json:"role"`
	RegisteredEvents []string `json:"registered_events,omitempty"`
	Friends          []string `json:"friends,omitempty"`
	FriendRequests   []string `json:"friend_requests,omitempty"`
}

// RoomRecord is a persisted room with its booked intervals.
type RoomRecord struct {
	Number          int             `json:"number"`
	Capacity        int             `json:"capacity"`
	SquareFootage   int             `json:"square_footage,omitempty"`
	Screens         int             `json:"screens,omitempty"`
	SoundSystem     bool            `json:"sound_system,omitempty"`
	Stage           bool            `json:"stage,omitempty"`
	Accessible      bool            `json:"accessible,omitempty"`
	Wifi            bool            `json:"wifi,omitempty"`
	SpecialFeatures string          `json:"special_features,omitempty"`
	Description     string          `json:"description,omitempty"`
	Bookings        []BookingRecord `json:"bookings,omitempty"`
}

// BookingRecord is a persisted half-open booking interval.
type BookingRecord struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// EventRecord is a persisted scheduled event.
type EventRecord struct {
	Name      string    `json:"name"`
	Speakers  []string  `json:"speakers,omitempty"`
	Start     time.Time `json:"start"`
	Room      int       `json:"room"`
	Duration  int       `json:"duration"`
	Capacity  int       `json:"capacity"`
	Attendees []string  `json:"attendees,omitempty"`
}

// MessageSnapshot holds both message partitions.
type MessageSnapshot struct {
	Live    []MessageRecord `json:"live,omitempty"`
	Deleted []MessageRecord `json:"deleted,omitempty"`
}

// MessageRecord is a persisted message with its per-side flags. Seq
// preserves insertion order, the tie-break for equal creation times.
type MessageRecord struct {
	ID                 uuid.UUID `json:"id"`
	Sender             string    `json:"sender"`
	Receiver           string    `json:"receiver"`
	Content            string    `json:"content"`
	CreatedAt          time.Time `json:"created_at"`
	Read               bool      `json:"read,omitempty"`
	ArchivedBySender   bool      `json:"archived_by_sender,omitempty"`
	ArchivedByReceiver bool      `json:"archived_by_receiver,omitempty"`
	DeletedBySender    bool      `json:"deleted_by_sender,omitempty"`
	DeletedByReceiver  bool      `json:"deleted_by_receiver,omitempty"`
	Seq                uint64    `json:"seq"`
}

// Capture builds a snapshot from the live core state.
func Capture(users *directory.Directory, roomRegistry *rooms.Registry, catalog *events.Catalog, store *messaging.Store) Snapshot {
	var snap Snapshot

	for _, acct := range users.Accounts() {
		snap.Users.Accounts = append(snap.Users.Accounts, AccountRecord{
			Username:         acct.Username,
			PasswordHash:     acct.PasswordHash,
			Role:             string(acct.Role),
			RegisteredEvents: acct.RegisteredEvents,
			Friends:          acct.Friends,
			FriendRequests:   acct.FriendRequests,
		})
	}
	snap.Users.InvitationCodes = users.InvitationCodes()

	for _, number := range roomRegistry.Numbers() {
		spec, _ := roomRegistry.Details(number)
		record := RoomRecord{
			Number:          spec.Number,
			Capacity:        spec.Capacity,
			SquareFootage:   spec.SquareFootage,
			Screens:         spec.Screens,
			SoundSystem:     spec.SoundSystem,
			Stage:           spec.Stage,
			Accessible:      spec.Accessible,
			Wifi:            spec.Wifi,
			SpecialFeatures: spec.SpecialFeatures,
			Description:     spec.Description,
		}
		for _, b := range roomRegistry.Schedule(number) {
			record.Bookings = append(record.Bookings, BookingRecord{Start: b.Start, End: b.End})
		}
		snap.Rooms = append(snap.Rooms, record)
	}

	for _, e := range catalog.All() {
		snap.Events = append(snap.Events, EventRecord{
			Name:      e.Name,
			Speakers:  e.Speakers,
			Start:     e.Start,
			Room:      e.RoomNum,
			Duration:  e.Duration,
			Capacity:  e.Capacity,
			Attendees: e.Attendees,
		})
	}

	live, deleted := store.All()
	snap.Messages.Live = messageRecords(live)
	snap.Messages.Deleted = messageRecords(deleted)

	return snap
}

func messageRecords(msgs []messaging.Message) []MessageRecord {
	out := make([]MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageRecord{
			ID:                 m.ID,
			Sender:             m.Sender,
			Receiver:           m.Receiver,
			Content:            m.Content,
			CreatedAt:          m.CreatedAt,
			Read:               m.Read,
			ArchivedBySender:   m.ArchivedBySender,
			ArchivedByReceiver: m.ArchivedByReceiver,
			DeletedBySender:    m.DeletedBySender,
			DeletedByReceiver:  m.DeletedByReceiver,
			Seq:                m.Seq(),
		})
	}
	return out
}

// Apply replays the snapshot into empty core state.
func Apply(snap Snapshot, users *directory.Directory, roomRegistry *rooms.Registry, catalog *events.Catalog, store *messaging.Store) {
	accounts := make([]directory.Account, 0, len(snap.Users.Accounts))
	for _, record := range snap.Users.Accounts {
		role, ok := directory.ParseRole(record.Role)
		if !ok {
			role = directory.RoleAttendee
		}
		accounts = append(accounts, directory.Account{
			Username:         record.Username,
			PasswordHash:     record.PasswordHash,
			Role:             role,
			RegisteredEvents: record.RegisteredEvents,
			Friends:          record.Friends,
			FriendRequests:   record.FriendRequests,
		})
	}
	users.Restore(accounts, snap.Users.InvitationCodes)

	for _, record := range snap.Rooms {
		bookings := make([]rooms.Booking, 0, len(record.Bookings))
		for _, b := range record.Bookings {
			bookings = append(bookings, rooms.Booking{Start: b.Start, End: b.End})
		}
		roomRegistry.Restore(rooms.Spec{
			Number:          record.Number,
			Capacity:        record.Capacity,
			SquareFootage:   record.SquareFootage,
			Screens:         record.Screens,
			SoundSystem:     record.SoundSystem,
			Stage:           record.Stage,
			Accessible:      record.Accessible,
			Wifi:            record.Wifi,
			SpecialFeatures: record.SpecialFeatures,
			Description:     record.Description,
		}, bookings)
	}

	for _, record := range snap.Events {
		catalog.Restore(events.Event{
			Name:      record.Name,
			Speakers:  record.Speakers,
			Start:     record.Start,
			RoomNum:   record.Room,
			Duration:  record.Duration,
			Capacity:  record.Capacity,
			Attendees: record.Attendees,
		})
	}

	for _, record := range append(snap.Messages.Live, snap.Messages.Deleted...) {
		store.Restore(messaging.Message{
			ID:                 record.ID,
			Sender:             record.Sender,
			Receiver:           record.Receiver,
			Content:            record.Content,
			CreatedAt:          record.CreatedAt,
			Read:               record.Read,
			ArchivedBySender:   record.ArchivedBySender,
			ArchivedByReceiver: record.ArchivedByReceiver,
			DeletedBySender:    record.DeletedBySender,
			DeletedByReceiver:  record.DeletedByReceiver,
		}, record.Seq)
	}
}
