// Package messaging owns all direct messages exchanged between
// conference users and derives per-user conversation views from them.
//
// Messages live in one of two partitions: the live store, addressable
// by every query, and the deleted bin holding messages removed by both
// sides. The viewer is threaded explicitly through every view; the
// store keeps no session state.
package messaging

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Side identifies which participant of a message an operation acts
// for.
type Side int

const (
	// SideSender addresses the sending participant's flags.
	SideSender Side = iota
	// SideReceiver addresses the receiving participant's flags.
	SideReceiver
)

// Message is a single direct message. The sender is immutable; the
// archive and delete flags are tracked independently per side.
type Message struct {
	ID                 uuid.UUID
	Sender             string
	Receiver           string
	Content            string
	CreatedAt          time.Time
	Read               bool
	ArchivedBySender   bool
	ArchivedByReceiver bool
	DeletedBySender    bool
	DeletedByReceiver  bool

	seq uint64
}

// Seq returns the message's insertion sequence, the tie-break for
// messages created at the same instant.
func (m Message) Seq() uint64 { return m.seq }

func (m *Message) archived(side Side) bool {
	if side == SideSender {
		return m.ArchivedBySender
	}
	return m.ArchivedByReceiver
}

func (m *Message) deleted(side Side) bool {
	if side == SideSender {
		return m.DeletedBySender
	}
	return m.DeletedByReceiver
}

func (m *Message) setArchived(side Side, v bool) {
	if side == SideSender {
		m.ArchivedBySender = v
	} else {
		m.ArchivedByReceiver = v
	}
}

// markDeleted sets the delete flag for the side. Deleting always clears
// that side's archive flag; a message is never archived and deleted on
// the same side.
func (m *Message) markDeleted(side Side) {
	if side == SideSender {
		m.DeletedBySender = true
		m.ArchivedBySender = false
	} else {
		m.DeletedByReceiver = true
		m.ArchivedByReceiver = false
	}
}

// Store owns all messages across the live and deleted partitions.
type Store struct {
	live    map[uuid.UUID]*Message
	deleted map[uuid.UUID]*Message
	nextSeq uint64
	newID   func() uuid.UUID
	now     func() time.Time
}

// NewStore constructs an empty store. Nil generators fall back to
// uuid.New and time.Now.
func NewStore(newID func() uuid.UUID, now func() time.Time) *Store {
	if newID == nil {
		newID = uuid.New
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		live:    make(map[uuid.UUID]*Message),
		deleted: make(map[uuid.UUID]*Message),
		newID:   newID,
		now:     now,
	}
}

// Send creates a live, unread, unarchived message and returns its id.
// Authorization is the messaging coordinator's concern; Send always
// succeeds.
func (s *Store) Send(sender, receiver, content string) uuid.UUID {
	s.nextSeq++
	msg := &Message{
		ID:        s.newID(),
		Sender:    sender,
		Receiver:  receiver,
		Content:   content,
		CreatedAt: s.now(),
		seq:       s.nextSeq,
	}
	s.live[msg.ID] = msg
	return msg.ID
}

// get resolves the id against the live partition first, then the
// deleted bin, mirroring how callers still need sender and receiver
// fields of fully deleted messages.
func (s *Store) get(id uuid.UUID) *Message {
	if m, ok := s.live[id]; ok {
		return m
	}
	return s.deleted[id]
}

// Get returns a copy of the message with the given id. The second
// return value reports whether the message exists in either partition.
func (s *Store) Get(id uuid.UUID) (Message, bool) {
	m := s.get(id)
	if m == nil {
		return Message{}, false
	}
	return *m, true
}

// InLiveStore reports whether the id refers to a live message.
func (s *Store) InLiveStore(id uuid.UUID) bool {
	_, ok := s.live[id]
	return ok
}

// InDeletedBin reports whether the id refers to a fully deleted
// message.
func (s *Store) InDeletedBin(id uuid.UUID) bool {
	_, ok := s.deleted[id]
	return ok
}

// SideOf returns the side the viewer holds on the message. The second
// return value is false when the viewer is not a participant or the
// message does not exist.
func (s *Store) SideOf(id uuid.UUID, viewer string) (Side, bool) {
	m := s.get(id)
	if m == nil {
		return 0, false
	}
	switch viewer {
	case m.Sender:
		return SideSender, true
	case m.Receiver:
		return SideReceiver, true
	}
	return 0, false
}

// MarkRead marks a live message as read by its receiver.
func (s *Store) MarkRead(id uuid.UUID) {
	if m, ok := s.live[id]; ok {
		m.Read = true
	}
}

// MarkUnread clears the read flag of a live message.
func (s *Store) MarkUnread(id uuid.UUID) {
	if m, ok := s.live[id]; ok {
		m.Read = false
	}
}

// Archive sets the side's archive flag on a live message. Deleted
// sides cannot be archived.
func (s *Store) Archive(id uuid.UUID, side Side) {
	m, ok := s.live[id]
	if !ok || m.deleted(side) {
		return
	}
	m.setArchived(side, true)
}

// Unarchive clears the side's archive flag on a live message.
func (s *Store) Unarchive(id uuid.UUID, side Side) {
	if m, ok := s.live[id]; ok {
		m.setArchived(side, false)
	}
}

// DeleteSide marks the message deleted on the given side, clearing that
// side's archive flag. When both sides have deleted the message it
// migrates to the deleted bin and leaves the live store.
func (s *Store) DeleteSide(id uuid.UUID, side Side) {
	m, ok := s.live[id]
	if !ok {
		return
	}
	m.markDeleted(side)
	s.migrateIfFullyDeleted(m)
}

// DeleteBoth marks the message deleted on both sides and migrates it to
// the deleted bin. Calling it again for an already migrated message is
// a no-op.
func (s *Store) DeleteBoth(id uuid.UUID) {
	m, ok := s.live[id]
	if !ok {
		return
	}
	m.markDeleted(SideSender)
	m.markDeleted(SideReceiver)
	s.migrateIfFullyDeleted(m)
}

func (s *Store) migrateIfFullyDeleted(m *Message) {
	if m.DeletedBySender && m.DeletedByReceiver {
		delete(s.live, m.ID)
		s.deleted[m.ID] = m
	}
}

// EmptyDeletedBin permanently discards every fully deleted message.
func (s *Store) EmptyDeletedBin() {
	s.deleted = make(map[uuid.UUID]*Message)
}

// history returns all live messages the viewer participates in,
// chronological with stable insertion-order ties. Archived and deleted
// filtering is applied by the callers.
func (s *Store) history(viewer string) []*Message {
	var msgs []*Message
	for _, m := range s.live {
		if m.Sender == viewer || m.Receiver == viewer {
			msgs = append(msgs, m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].seq < msgs[j].seq
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs
}

func (s *Store) visible(viewer string) []*Message {
	var out []*Message
	for _, m := range s.history(viewer) {
		side, _ := s.SideOf(m.ID, viewer)
		if m.archived(side) || m.deleted(side) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Store) archivedFor(viewer string) []*Message {
	var out []*Message
	for _, m := range s.history(viewer) {
		side, _ := s.SideOf(m.ID, viewer)
		if m.archived(side) {
			out = append(out, m)
		}
	}
	return out
}

// UnreadMessages returns the viewer's visible messages that they
// received and have not read, in chronological order.
func (s *Store) UnreadMessages(viewer string) []Message {
	var out []Message
	for _, m := range s.visible(viewer) {
		if m.Receiver == viewer && !m.Read {
			out = append(out, *m)
		}
	}
	return out
}

// partnerOf returns the other participant from the viewer's
// perspective.
func partnerOf(m *Message, viewer string) string {
	if m.Sender == viewer {
		return m.Receiver
	}
	return m.Sender
}

func partners(msgs []*Message, viewer string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range msgs {
		p := partnerOf(m, viewer)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Partners lists the viewer's visible conversation partners in order
// of earliest message.
func (s *Store) Partners(viewer string) []string {
	return partners(s.visible(viewer), viewer)
}

// ArchivedPartners lists partners with whom the viewer has archived
// messages.
func (s *Store) ArchivedPartners(viewer string) []string {
	return partners(s.archivedFor(viewer), viewer)
}

// UnreadPartners lists partners from whom the viewer has unread
// visible messages.
func (s *Store) UnreadPartners(viewer string) []string {
	unread := s.UnreadMessages(viewer)
	refs := make([]*Message, len(unread))
	for i := range unread {
		refs[i] = &unread[i]
	}
	return partners(refs, viewer)
}

func filterByPartner(msgs []*Message, partner string) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Sender == partner || m.Receiver == partner {
			out = append(out, *m)
		}
	}
	return out
}

// Conversation returns the viewer's visible message history with the
// partner, chronological ascending.
func (s *Store) Conversation(viewer, partner string) []Message {
	return filterByPartner(s.visible(viewer), partner)
}

// ArchivedConversation returns the viewer's archived message history
// with the partner.
func (s *Store) ArchivedConversation(viewer, partner string) []Message {
	return filterByPartner(s.archivedFor(viewer), partner)
}

// DeletedPartners lists partners appearing in the viewer's fully
// deleted messages.
func (s *Store) DeletedPartners(viewer string) []string {
	var msgs []*Message
	for _, m := range s.deleted {
		if m.Sender == viewer || m.Receiver == viewer {
			msgs = append(msgs, m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].seq < msgs[j].seq
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return partners(msgs, viewer)
}

// MarkConversationRead marks every visible message the viewer received
// from the partner as read.
func (s *Store) MarkConversationRead(viewer, partner string) {
	for _, m := range s.visible(viewer) {
		if m.Sender == partner && m.Receiver == viewer {
			m.Read = true
		}
	}
}

// MarkConversationUnread clears the read flag on every visible message
// the viewer received from the partner, returning the conversation to
// the unread listing.
func (s *Store) MarkConversationUnread(viewer, partner string) {
	for _, m := range s.visible(viewer) {
		if m.Sender == partner && m.Receiver == viewer {
			m.Read = false
		}
	}
}

// ArchiveConversation archives the viewer's side of every visible
// message exchanged with the partner.
func (s *Store) ArchiveConversation(viewer, partner string) {
	for _, m := range s.Conversation(viewer, partner) {
		side, _ := s.SideOf(m.ID, viewer)
		s.Archive(m.ID, side)
	}
}

// UnarchiveConversation clears the viewer's archive flag on every
// archived message exchanged with the partner, restoring them to the
// visible listing.
func (s *Store) UnarchiveConversation(viewer, partner string) {
	for _, m := range s.ArchivedConversation(viewer, partner) {
		side, _ := s.SideOf(m.ID, viewer)
		s.Unarchive(m.ID, side)
	}
}

// DeleteConversation deletes the viewer's visible conversation with
// the partner. With cascade set, both sides are deleted and the
// messages move to the deleted bin.
func (s *Store) DeleteConversation(viewer, partner string, cascade bool) {
	s.deleteMessages(s.Conversation(viewer, partner), viewer, cascade)
}

// DeleteArchivedConversation deletes the viewer's archived
// conversation with the partner.
func (s *Store) DeleteArchivedConversation(viewer, partner string, cascade bool) {
	s.deleteMessages(s.ArchivedConversation(viewer, partner), viewer, cascade)
}

// DeleteAllArchived deletes every archived message of the viewer.
func (s *Store) DeleteAllArchived(viewer string, cascade bool) {
	var msgs []Message
	for _, m := range s.archivedFor(viewer) {
		msgs = append(msgs, *m)
	}
	s.deleteMessages(msgs, viewer, cascade)
}

func (s *Store) deleteMessages(msgs []Message, viewer string, cascade bool) {
	for _, m := range msgs {
		if cascade {
			s.DeleteBoth(m.ID)
			continue
		}
		if side, ok := s.SideOf(m.ID, viewer); ok {
			s.DeleteSide(m.ID, side)
		}
	}
}

// All returns every message in both partitions, for snapshotting.
func (s *Store) All() (live, deleted []Message) {
	live = collect(s.live)
	deleted = collect(s.deleted)
	return live, deleted
}

func collect(part map[uuid.UUID]*Message) []Message {
	out := make([]Message, 0, len(part))
	for _, m := range part {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Restore reinserts a persisted message into the correct partition,
// assigning it the given insertion sequence. The store's sequence
// counter advances past the highest restored value.
func (s *Store) Restore(m Message, seq uint64) {
	msg := m
	msg.seq = seq
	if seq > s.nextSeq {
		s.nextSeq = seq
	}
	if msg.DeletedBySender && msg.DeletedByReceiver {
		s.deleted[msg.ID] = &msg
		return
	}
	s.live[msg.ID] = &msg
}
