package messaging

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore() (*Store, func(time.Duration)) {
	current := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }
	advance := func(d time.Duration) { current = current.Add(d) }
	return NewStore(uuid.New, now), advance
}

func TestStore_Send(t *testing.T) {
	s, _ := newTestStore()
	id := s.Send("bob", "carol", "hello")

	msg, ok := s.Get(id)
	if !ok {
		t.Fatal("message not found after send")
	}
	if msg.Sender != "bob" || msg.Receiver != "carol" || msg.Content != "hello" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Read || msg.ArchivedBySender || msg.ArchivedByReceiver || msg.DeletedBySender || msg.DeletedByReceiver {
		t.Fatalf("new message has non-default flags: %+v", msg)
	}
	if !s.InLiveStore(id) {
		t.Fatal("new message must be live")
	}
}

func TestStore_ConversationOrdering(t *testing.T) {
	s, advance := newTestStore()
	first := s.Send("bob", "carol", "first")
	second := s.Send("carol", "bob", "second") // same instant, later insertion
	advance(time.Minute)
	third := s.Send("bob", "carol", "third")

	conv := s.Conversation("bob", "carol")
	if len(conv) != 3 {
		t.Fatalf("conversation length = %d, want 3", len(conv))
	}
	want := []uuid.UUID{first, second, third}
	for i, id := range want {
		if conv[i].ID != id {
			t.Fatalf("conversation order wrong at %d: %+v", i, conv)
		}
	}
}

func TestStore_ReadFlags(t *testing.T) {
	s, _ := newTestStore()
	id := s.Send("bob", "carol", "hi")

	if got := s.UnreadPartners("carol"); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("UnreadPartners = %v", got)
	}
	if got := s.UnreadPartners("bob"); len(got) != 0 {
		t.Fatalf("sender must have no unread messages, got %v", got)
	}

	s.MarkRead(id)
	if got := s.UnreadMessages("carol"); len(got) != 0 {
		t.Fatalf("unread after MarkRead = %v", got)
	}

	s.MarkUnread(id)
	if got := s.UnreadMessages("carol"); len(got) != 1 {
		t.Fatalf("unread after MarkUnread = %v", got)
	}
}

func TestStore_MarkConversationUnread(t *testing.T) {
	s, _ := newTestStore()
	s.Send("bob", "carol", "one")
	s.Send("bob", "carol", "two")
	s.Send("dave", "carol", "aside")

	s.MarkConversationRead("carol", "bob")
	s.MarkConversationRead("carol", "dave")
	if got := s.UnreadPartners("carol"); len(got) != 0 {
		t.Fatalf("unread after reading everything = %v", got)
	}

	s.MarkConversationUnread("carol", "bob")
	if got := s.UnreadPartners("carol"); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("unread after flipping bob back = %v", got)
	}
	if got := s.UnreadMessages("carol"); len(got) != 2 {
		t.Fatalf("every message from bob should be unread again, got %d", len(got))
	}
}

func TestStore_ArchiveRoundTrip(t *testing.T) {
	s, _ := newTestStore()
	s.Send("bob", "carol", "hi")

	s.ArchiveConversation("bob", "carol")

	if got := s.Partners("bob"); len(got) != 0 {
		t.Fatalf("archived conversation still visible: %v", got)
	}
	if got := s.ArchivedPartners("bob"); len(got) != 1 || got[0] != "carol" {
		t.Fatalf("ArchivedPartners = %v", got)
	}
	// Receiver's view is independent of the sender's archive flag.
	if got := s.Partners("carol"); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("receiver view affected by sender archive: %v", got)
	}

	s.UnarchiveConversation("bob", "carol")

	if got := s.Partners("bob"); len(got) != 1 || got[0] != "carol" {
		t.Fatalf("conversation not restored after unarchive: %v", got)
	}
}

func TestStore_DeleteSide(t *testing.T) {
	s, _ := newTestStore()
	id := s.Send("bob", "carol", "hi")
	s.Archive(id, SideSender)

	s.DeleteSide(id, SideSender)

	msg, _ := s.Get(id)
	if msg.ArchivedBySender {
		t.Fatal("delete must clear the same side's archive flag")
	}
	if !msg.DeletedBySender || msg.DeletedByReceiver {
		t.Fatalf("flags = %+v", msg)
	}
	if !s.InLiveStore(id) {
		t.Fatal("single-side delete must keep the message live")
	}
	if got := s.Conversation("bob", "carol"); len(got) != 0 {
		t.Fatalf("deleted side still sees conversation: %v", got)
	}
	if got := s.Conversation("carol", "bob"); len(got) != 1 {
		t.Fatalf("other side lost the conversation: %v", got)
	}

	s.DeleteSide(id, SideReceiver)

	if s.InLiveStore(id) || !s.InDeletedBin(id) {
		t.Fatal("message deleted by both sides must migrate to the deleted bin")
	}
}

func TestStore_DeleteBothIdempotent(t *testing.T) {
	s, _ := newTestStore()
	id := s.Send("bob", "carol", "hi")

	s.DeleteBoth(id)
	s.DeleteBoth(id) // already migrated, must not panic or duplicate

	if s.InLiveStore(id) || !s.InDeletedBin(id) {
		t.Fatal("message not in deleted bin after DeleteBoth")
	}
	if got := s.DeletedPartners("bob"); len(got) != 1 || got[0] != "carol" {
		t.Fatalf("DeletedPartners = %v", got)
	}
}

func TestStore_ArchiveAndDeleteNeverBothSet(t *testing.T) {
	s, _ := newTestStore()
	id := s.Send("bob", "carol", "hi")

	s.Archive(id, SideReceiver)
	s.DeleteSide(id, SideReceiver)
	s.Archive(id, SideReceiver) // deleted side must stay unarchivable

	msg, _ := s.Get(id)
	if msg.ArchivedByReceiver && msg.DeletedByReceiver {
		t.Fatal("archive and delete flags both set for the receiver")
	}
	if msg.ArchivedByReceiver {
		t.Fatal("deleted side accepted an archive")
	}
}

func TestStore_FullDeletionInvariant(t *testing.T) {
	s, _ := newTestStore()
	ids := []uuid.UUID{
		s.Send("bob", "carol", "one"),
		s.Send("bob", "carol", "two"),
		s.Send("carol", "bob", "three"),
	}
	s.DeleteSide(ids[0], SideSender)
	s.DeleteBoth(ids[1])

	for _, id := range ids {
		msg, ok := s.Get(id)
		if !ok {
			t.Fatalf("message %v lost", id)
		}
		fully := msg.DeletedBySender && msg.DeletedByReceiver
		if fully != s.InDeletedBin(id) {
			t.Fatalf("partition mismatch for %+v", msg)
		}
		if fully == s.InLiveStore(id) {
			t.Fatalf("message in wrong partition: %+v", msg)
		}
	}
}

func TestStore_DeleteConversationCascade(t *testing.T) {
	s, _ := newTestStore()
	first := s.Send("org", "bob", "notice")
	second := s.Send("bob", "org", "reply")

	s.DeleteConversation("org", "bob", true)

	for _, id := range []uuid.UUID{first, second} {
		if !s.InDeletedBin(id) {
			t.Fatalf("cascade delete left message %v live", id)
		}
	}
}

func TestStore_DeleteAllArchived(t *testing.T) {
	s, _ := newTestStore()
	a := s.Send("bob", "carol", "a")
	s.Send("bob", "dave", "b")
	s.Archive(a, SideSender)

	s.DeleteAllArchived("bob", false)

	msg, _ := s.Get(a)
	if !msg.DeletedBySender {
		t.Fatal("archived message not deleted")
	}
	if got := s.Partners("bob"); len(got) != 1 || got[0] != "dave" {
		t.Fatalf("Partners = %v", got)
	}
}

func TestStore_EmptyDeletedBin(t *testing.T) {
	s, _ := newTestStore()
	id := s.Send("bob", "carol", "hi")
	s.DeleteBoth(id)

	s.EmptyDeletedBin()

	if _, ok := s.Get(id); ok {
		t.Fatal("message still addressable after emptying the bin")
	}
}

func TestStore_Restore(t *testing.T) {
	s, _ := newTestStore()
	live := Message{ID: uuid.New(), Sender: "a", Receiver: "b", Content: "x", CreatedAt: time.Now()}
	gone := Message{ID: uuid.New(), Sender: "a", Receiver: "b", DeletedBySender: true, DeletedByReceiver: true}

	s.Restore(live, 7)
	s.Restore(gone, 3)

	if !s.InLiveStore(live.ID) || !s.InDeletedBin(gone.ID) {
		t.Fatal("restored messages landed in wrong partitions")
	}

	// New sends continue after the highest restored sequence.
	id := s.Send("a", "b", "new")
	msg, _ := s.Get(id)
	if msg.Seq() <= 7 {
		t.Fatalf("sequence did not advance past restored values: %d", msg.Seq())
	}
}
