package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/conference-manager/internal/persistence"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	dsn := filepath.Join(dir, "conference.db")
	store, err := Open(dsn)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func sampleSnapshot() persistence.Snapshot {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	return persistence.Snapshot{
		Users: persistence.UsersSnapshot{
			Accounts: []persistence.AccountRecord{
				{
					Username:     "alice",
					PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
					Role:         "Speaker",
					Friends:      []string{"bob"},
				},
				{
					Username:         "bob",
					PasswordHash:     "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
					Role:             "Attendee",
					RegisteredEvents: []string{"Keynote"},
					Friends:          []string{"alice"},
				},
			},
			InvitationCodes: []string{"aB3dE6gH9jK2mN5pQ8"},
		},
		Rooms: []persistence.RoomRecord{
			{
				Number:   5,
				Capacity: 50,
				Screens:  2,
				Wifi:     true,
				Bookings: []persistence.BookingRecord{
					{Start: start, End: start.Add(2 * time.Hour)},
				},
			},
		},
		Events: []persistence.EventRecord{
			{
				Name:      "Keynote",
				Speakers:  []string{"alice"},
				Start:     start,
				Room:      5,
				Duration:  2,
				Capacity:  40,
				Attendees: []string{"bob"},
			},
		},
		Messages: persistence.MessageSnapshot{
			Live: []persistence.MessageRecord{
				{
					ID:        uuid.New(),
					Sender:    "alice",
					Receiver:  "bob",
					Content:   "see you at the keynote",
					CreatedAt: start.Add(-time.Hour),
					Read:      true,
					Seq:       1,
				},
			},
			Deleted: []persistence.MessageRecord{
				{
					ID:                uuid.New(),
					Sender:            "bob",
					Receiver:          "alice",
					Content:           "old thread",
					CreatedAt:         start.Add(-48 * time.Hour),
					DeletedBySender:   true,
					DeletedByReceiver: true,
					Seq:               2,
				},
			},
		},
	}
}

func TestLoadEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Fatal("expected no snapshot in a fresh store")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	want := sampleSnapshot()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a snapshot after Save")
	}

	if len(got.Users.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(got.Users.Accounts))
	}
	if got.Users.Accounts[0].Username != "alice" || got.Users.Accounts[0].Role != "Speaker" {
		t.Fatalf("unexpected first account: %#v", got.Users.Accounts[0])
	}
	if len(got.Users.InvitationCodes) != 1 || got.Users.InvitationCodes[0] != want.Users.InvitationCodes[0] {
		t.Fatalf("unexpected invitation codes: %v", got.Users.InvitationCodes)
	}

	if len(got.Rooms) != 1 || got.Rooms[0].Number != 5 || got.Rooms[0].Capacity != 50 {
		t.Fatalf("unexpected rooms: %#v", got.Rooms)
	}
	if len(got.Rooms[0].Bookings) != 1 || !got.Rooms[0].Bookings[0].Start.Equal(want.Rooms[0].Bookings[0].Start) {
		t.Fatalf("unexpected bookings: %#v", got.Rooms[0].Bookings)
	}

	if len(got.Events) != 1 || got.Events[0].Name != "Keynote" || !got.Events[0].Start.Equal(want.Events[0].Start) {
		t.Fatalf("unexpected events: %#v", got.Events)
	}

	if len(got.Messages.Live) != 1 || len(got.Messages.Deleted) != 1 {
		t.Fatalf("unexpected message partitions: %d live, %d deleted", len(got.Messages.Live), len(got.Messages.Deleted))
	}
	if got.Messages.Live[0].ID != want.Messages.Live[0].ID || !got.Messages.Live[0].Read {
		t.Fatalf("unexpected live message: %#v", got.Messages.Live[0])
	}
	if got.Messages.Deleted[0].Seq != 2 {
		t.Fatalf("unexpected deleted message sequence: %d", got.Messages.Deleted[0].Seq)
	}
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := sampleSnapshot()
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := sampleSnapshot()
	second.Events = nil
	second.Users.Accounts = second.Users.Accounts[:1]
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a snapshot after Save")
	}
	if len(got.Events) != 0 {
		t.Fatalf("expected no events after overwrite, got %d", len(got.Events))
	}
	if len(got.Users.Accounts) != 1 {
		t.Fatalf("expected 1 account after overwrite, got %d", len(got.Users.Accounts))
	}
}

func TestLoadRejectsPartialSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.db.ExecContext(ctx, "DELETE FROM snapshots WHERE name = ?", sectionEvents); err != nil {
		t.Fatalf("failed to drop section: %v", err)
	}

	if _, _, err := store.Load(ctx); err == nil {
		t.Fatal("expected an error for a partial snapshot")
	}
}

func TestSnapshotPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "conference.db")

	store, err := Open(dsn)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dsn)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !ok {
		t.Fatal("expected the snapshot to survive a reopen")
	}
	if len(got.Rooms) != 1 || got.Rooms[0].Number != 5 {
		t.Fatalf("unexpected rooms after reopen: %#v", got.Rooms)
	}
}
