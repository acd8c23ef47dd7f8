package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/example/conference-manager/internal/directory"
	"github.com/example/conference-manager/internal/events"
	"github.com/example/conference-manager/internal/messaging"
)

// MessagingDirectory exposes the account lookups the messaging
// coordinator needs for its permission policy and for broadcast
// recipient rosters.
type MessagingDirectory interface {
	Exists(username string) bool
	RoleOf(username string) (directory.Role, bool)
	CanSend(sender, receiver string) bool
	IsFriend(username, other string) bool
	AddFriendRequest(sender, receiver string) bool
	RespondFriendRequest(username, requester string, accept bool)
	Friends(username string) []string
	FriendRequests(username string) []string
	Speakers() []string
	Attendees() []string
	VIPs() []string
}

// EventRoster exposes the catalog lookup behind a speaker's broadcast
// to the attendees of their own events.
type EventRoster interface {
	BySpeaker(speaker string) []events.Event
}

// MessagingService enforces the role-based send policy over the
// conversation store. Deletion by privileged roles (Organizer, VIP)
// cascades to both sides of a conversation; other roles only ever
// delete their own side.
type MessagingService struct {
	mu     sync.Mutex
	store  *messaging.Store
	users  MessagingDirectory
	events EventRoster
	logger *slog.Logger
}

// NewMessagingService wires the messaging coordinator's dependencies.
func NewMessagingService(store *messaging.Store, users MessagingDirectory, roster EventRoster, logger *slog.Logger) *MessagingService {
	return &MessagingService{
		store:  store,
		users:  users,
		events: roster,
		logger: defaultLogger(logger),
	}
}

func (s *MessagingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MessagingService", operation, attrs...)
}

// privileged reports whether the user holds a role whose deletions
// cascade to both sides of a conversation.
func (s *MessagingService) privileged(username string) bool {
	role, ok := s.users.RoleOf(username)
	if !ok {
		return false
	}
	return role == directory.RoleOrganizer || role == directory.RoleVIP
}

// SendMessage delivers a message after the role policy allows it.
// Attendee senders additionally need an established friendship to
// message an attendee or VIP; other roles message freely within the
// CanSend policy.
func (s *MessagingService) SendMessage(ctx context.Context, sender, receiver, content string) (err error) {
	if s == nil {
		return fmt.Errorf("MessagingService is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "SendMessage", "sender", sender, "receiver", receiver)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to send message", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "message sent")
	}()

	if strings.TrimSpace(content) == "" {
		vErr := &ValidationError{}
		vErr.add("content", "message content is required")
		return vErr
	}
	if !s.users.CanSend(sender, receiver) {
		return ErrUnauthorized
	}
	if role, _ := s.users.RoleOf(sender); role == directory.RoleAttendee {
		if recvRole, _ := s.users.RoleOf(receiver); recvRole == directory.RoleAttendee || recvRole == directory.RoleVIP {
			if !s.users.IsFriend(sender, receiver) {
				return ErrNotFriends
			}
		}
	}
	s.store.Send(sender, receiver, content)
	return nil
}

// Reply delivers a message to an existing conversation partner. A
// reply needs no fresh permission check: having a visible conversation
// with the partner is the authorization.
func (s *MessagingService) Reply(ctx context.Context, sender, partner, content string) (err error) {
	if s == nil {
		return fmt.Errorf("MessagingService is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "Reply", "sender", sender, "partner", partner)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reply", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reply sent")
	}()

	if strings.TrimSpace(content) == "" {
		vErr := &ValidationError{}
		vErr.add("content", "message content is required")
		return vErr
	}
	for _, p := range s.store.Partners(sender) {
		if p == partner {
			s.store.Send(sender, partner, content)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MessagingService) broadcast(sender, content string, recipients []string) int {
	sent := 0
	for _, receiver := range recipients {
		if receiver == sender {
			continue
		}
		s.store.Send(sender, receiver, content)
		sent++
	}
	return sent
}

// MessageAllSpeakers sends the content to every registered speaker.
// Organizers only. Returns the number of messages delivered.
func (s *MessagingService) MessageAllSpeakers(ctx context.Context, sender, content string) (sent int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "MessageAllSpeakers", "sender", sender)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to message speakers", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "speakers messaged", "sent", sent)
	}()

	if strings.TrimSpace(content) == "" {
		vErr := &ValidationError{}
		vErr.add("content", "message content is required")
		return 0, vErr
	}
	if role, _ := s.users.RoleOf(sender); role != directory.RoleOrganizer {
		return 0, ErrUnauthorized
	}
	return s.broadcast(sender, content, s.users.Speakers()), nil
}

// MessageAllAttendees sends the content to every attendee and VIP.
// Organizers only. Returns the number of messages delivered.
func (s *MessagingService) MessageAllAttendees(ctx context.Context, sender, content string) (sent int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "MessageAllAttendees", "sender", sender)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to message attendees", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "attendees messaged", "sent", sent)
	}()

	if strings.TrimSpace(content) == "" {
		vErr := &ValidationError{}
		vErr.add("content", "message content is required")
		return 0, vErr
	}
	if role, _ := s.users.RoleOf(sender); role != directory.RoleOrganizer {
		return 0, ErrUnauthorized
	}
	sent = s.broadcast(sender, content, s.users.Attendees())
	sent += s.broadcast(sender, content, s.users.VIPs())
	return sent, nil
}

// MessageEventAttendees sends the content to every attendee enrolled in
// any of the sender's events, each at most once. Speakers only. Returns
// the number of messages delivered.
func (s *MessagingService) MessageEventAttendees(ctx context.Context, sender, content string) (sent int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "MessageEventAttendees", "sender", sender)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to message event attendees", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event attendees messaged", "sent", sent)
	}()

	if strings.TrimSpace(content) == "" {
		vErr := &ValidationError{}
		vErr.add("content", "message content is required")
		return 0, vErr
	}
	if role, _ := s.users.RoleOf(sender); role != directory.RoleSpeaker {
		return 0, ErrUnauthorized
	}

	seen := make(map[string]bool)
	var recipients []string
	for _, event := range s.events.BySpeaker(sender) {
		for _, attendee := range event.Attendees {
			if !seen[attendee] {
				seen[attendee] = true
				recipients = append(recipients, attendee)
			}
		}
	}
	return s.broadcast(sender, content, recipients), nil
}

// Conversations lists the viewer's visible conversation partners.
func (s *MessagingService) Conversations(ctx context.Context, viewer string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Partners(viewer)
}

// ArchivedConversations lists partners with archived history.
func (s *MessagingService) ArchivedConversations(ctx context.Context, viewer string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ArchivedPartners(viewer)
}

// UnreadConversations lists partners with unread messages for the
// viewer.
func (s *MessagingService) UnreadConversations(ctx context.Context, viewer string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.UnreadPartners(viewer)
}

// DeletedConversations lists partners appearing in the viewer's fully
// deleted messages.
func (s *MessagingService) DeletedConversations(ctx context.Context, viewer string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.DeletedPartners(viewer)
}

// Conversation returns the viewer's visible history with the partner,
// oldest first.
func (s *MessagingService) Conversation(ctx context.Context, viewer, partner string) []messaging.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Conversation(viewer, partner)
}

// ArchivedConversation returns the viewer's archived history with the
// partner.
func (s *MessagingService) ArchivedConversation(ctx context.Context, viewer, partner string) []messaging.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ArchivedConversation(viewer, partner)
}

// MarkConversationRead marks all messages the viewer received from the
// partner as read.
func (s *MessagingService) MarkConversationRead(ctx context.Context, viewer, partner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.MarkConversationRead(viewer, partner)
}

// MarkConversationUnread flips the viewer's conversation with the
// partner back to unread.
func (s *MessagingService) MarkConversationUnread(ctx context.Context, viewer, partner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.MarkConversationUnread(viewer, partner)
}

// EmptyDeletedBin discards every message in the deleted bin. Only
// privileged roles (Organizer, VIP) may clear it.
func (s *MessagingService) EmptyDeletedBin(ctx context.Context, username string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "EmptyDeletedBin", "user", username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to empty deleted bin", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "deleted bin emptied")
	}()

	if !s.privileged(username) {
		return ErrUnauthorized
	}
	s.store.EmptyDeletedBin()
	return nil
}

// ArchiveConversation archives the viewer's side of the conversation.
func (s *MessagingService) ArchiveConversation(ctx context.Context, viewer, partner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.ArchiveConversation(viewer, partner)
	s.loggerWith(ctx, "ArchiveConversation", "viewer", viewer, "partner", partner).
		InfoContext(ctx, "conversation archived")
}

// UnarchiveConversation restores the conversation to the viewer's
// visible listing.
func (s *MessagingService) UnarchiveConversation(ctx context.Context, viewer, partner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.UnarchiveConversation(viewer, partner)
}

// DeleteConversation deletes the viewer's visible conversation with
// the partner, cascading to both sides for privileged roles.
func (s *MessagingService) DeleteConversation(ctx context.Context, viewer, partner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cascade := s.privileged(viewer)
	s.store.DeleteConversation(viewer, partner, cascade)
	s.loggerWith(ctx, "DeleteConversation", "viewer", viewer, "partner", partner, "cascade", cascade).
		InfoContext(ctx, "conversation deleted")
}

// DeleteArchivedConversation deletes the viewer's archived
// conversation with the partner, cascading for privileged roles.
func (s *MessagingService) DeleteArchivedConversation(ctx context.Context, viewer, partner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.DeleteArchivedConversation(viewer, partner, s.privileged(viewer))
}

// DeleteAllArchivedConversations deletes every archived message of the
// viewer, cascading for privileged roles.
func (s *MessagingService) DeleteAllArchivedConversations(ctx context.Context, viewer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.DeleteAllArchived(viewer, s.privileged(viewer))
}

// SendFriendRequest records a pending friend request on the receiver's
// account. VIP requests surface first in the receiver's listing.
func (s *MessagingService) SendFriendRequest(ctx context.Context, sender, receiver string) (err error) {
	if s == nil {
		return fmt.Errorf("MessagingService is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.loggerWith(ctx, "SendFriendRequest", "sender", sender, "receiver", receiver)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to send friend request", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "friend request sent")
	}()

	if !s.users.Exists(sender) || !s.users.Exists(receiver) {
		return ErrNotFound
	}
	if !s.users.AddFriendRequest(sender, receiver) {
		return ErrAlreadyExists
	}
	return nil
}

// RespondFriendRequest accepts or declines a pending request.
func (s *MessagingService) RespondFriendRequest(ctx context.Context, username, requester string, accept bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users.RespondFriendRequest(username, requester, accept)
}

// Friends returns the user's friend list.
func (s *MessagingService) Friends(ctx context.Context, username string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.Friends(username)
}

// FriendRequests returns the user's pending incoming requests.
func (s *MessagingService) FriendRequests(ctx context.Context, username string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.FriendRequests(username)
}
