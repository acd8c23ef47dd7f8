package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/example/conference-manager/internal/application"
	"github.com/example/conference-manager/internal/directory"
	"github.com/example/conference-manager/internal/rooms"
)

// startLayout is the console form of an event start instant, e.g.
// 2024-06-01T10 for ten in the morning.
const startLayout = "2006-01-02T15"

// session is the line-driven console surface over the coordinators. It
// tracks at most one logged-in user; all domain rules live below it.
type session struct {
	users      *directory.Directory
	scheduling *application.SchedulingService
	messaging  *application.MessagingService
	out        io.Writer
	current    string
}

func newSession(users *directory.Directory, scheduling *application.SchedulingService, messaging *application.MessagingService, out io.Writer) *session {
	return &session{
		users:      users,
		scheduling: scheduling,
		messaging:  messaging,
		out:        out,
	}
}

// run reads commands until quit, EOF, or context cancellation.
func (s *session) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	s.printf("conference console ready, type help for commands")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if !s.execute(ctx, scanner.Text()) {
			return nil
		}
	}
}

// execute runs one command line and reports whether the session should
// keep going.
func (s *session) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	command, args := fields[0], fields[1:]

	switch command {
	case "quit", "exit":
		return false
	case "help":
		s.printHelp()
	case "register":
		s.register(args)
	case "register-vip":
		s.registerVIP(args)
	case "login":
		s.login(args)
	case "logout":
		s.current = ""
		s.printf("logged out")
	case "whoami":
		s.whoami()
	case "invite":
		s.invite()
	case "rooms":
		s.listRooms(ctx)
	case "add-room":
		s.addRoom(ctx, args)
	case "delete-room":
		s.deleteRoom(ctx, args)
	case "available-rooms":
		s.availableRooms(ctx, args)
	case "events":
		s.listEvents(ctx)
	case "create-event":
		s.createEvent(ctx, args)
	case "delete-event":
		s.deleteEvent(ctx, args)
	case "capacity":
		s.changeCapacity(ctx, args)
	case "enroll":
		s.enroll(ctx, args)
	case "unenroll":
		s.unenroll(ctx, args)
	case "my-events":
		s.myEvents(ctx)
	case "available-speakers":
		s.availableSpeakers(ctx, args)
	case "send":
		s.send(ctx, args)
	case "reply":
		s.reply(ctx, args)
	case "inbox":
		s.inbox(ctx)
	case "unread":
		s.unread(ctx)
	case "conversation":
		s.conversation(ctx, args)
	case "archive":
		s.archive(ctx, args)
	case "unarchive":
		s.unarchive(ctx, args)
	case "archived":
		s.archived(ctx)
	case "delete-conversation":
		s.deleteConversation(ctx, args)
	case "mark-unread":
		s.markUnread(ctx, args)
	case "deleted":
		s.deleted(ctx)
	case "empty-deleted-bin":
		s.emptyDeletedBin(ctx)
	case "message-speakers":
		s.messageSpeakers(ctx, args)
	case "message-attendees":
		s.messageAttendees(ctx, args)
	case "message-my-attendees":
		s.messageEventAttendees(ctx, args)
	case "friends":
		s.friends(ctx)
	case "requests":
		s.requests(ctx)
	case "friend":
		s.friendRequest(ctx, args)
	case "accept":
		s.respondRequest(ctx, args, true)
	case "decline":
		s.respondRequest(ctx, args, false)
	default:
		s.printf("unknown command %q, type help for commands", command)
	}
	return true
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *session) printError(err error) {
	var verr *application.ValidationError
	switch {
	case errors.As(err, &verr):
		for field, message := range verr.FieldErrors {
			s.printf("invalid %s: %s", field, message)
		}
	case errors.Is(err, application.ErrUnauthorized):
		s.printf("not allowed")
	case errors.Is(err, application.ErrNotFound):
		s.printf("not found")
	case errors.Is(err, application.ErrAlreadyExists):
		s.printf("already exists")
	case errors.Is(err, application.ErrNotFriends):
		s.printf("you must be friends first")
	default:
		s.printf("error: %v", err)
	}
}

func (s *session) printHelp() {
	s.printf(`account:   register <user> <password> <role> | register-vip <user> <password> <code>
           login <user> <password> | logout | whoami | invite
rooms:     rooms | add-room <number> <capacity> | delete-room <number>
           available-rooms <start> <hours>
events:    events | create-event <name> <start> <room> <hours> <capacity> <speaker...>
           delete-event <name> | capacity <name> <n> | enroll <name> | unenroll <name>
           my-events | available-speakers <start> <hours>
messages:  send <user> <text...> | reply <user> <text...> | inbox | unread
           conversation <user> | mark-unread <user> | archive <user>
           unarchive <user> | archived | delete-conversation <user>
           deleted | empty-deleted-bin
           message-speakers <text...> | message-attendees <text...>
           message-my-attendees <text...>
friends:   friends | requests | friend <user> | accept <user> | decline <user>
           (start format: ` + startLayout + `, e.g. 2024-06-01T10)`)
}

func (s *session) loggedIn() bool {
	if s.current == "" {
		s.printf("log in first")
		return false
	}
	return true
}

func (s *session) organizer() bool {
	if !s.loggedIn() {
		return false
	}
	if !s.users.IsRole(s.current, directory.RoleOrganizer) {
		s.printf("organizers only")
		return false
	}
	return true
}

func (s *session) register(args []string) {
	if len(args) != 3 {
		s.printf("usage: register <user> <password> <role>")
		return
	}
	role, ok := directory.ParseRole(args[2])
	if !ok || role == directory.RoleVIP {
		s.printf("role must be one of Attendee, Speaker, Organizer")
		return
	}
	if err := s.users.Register(args[0], args[1], role); err != nil {
		s.printError(err)
		return
	}
	s.printf("registered %s as %s", args[0], role)
}

func (s *session) registerVIP(args []string) {
	if len(args) != 3 {
		s.printf("usage: register-vip <user> <password> <code>")
		return
	}
	if err := s.users.RegisterVIP(args[0], args[1], args[2]); err != nil {
		s.printError(err)
		return
	}
	s.printf("registered %s as %s", args[0], directory.RoleVIP)
}

func (s *session) login(args []string) {
	if len(args) != 2 {
		s.printf("usage: login <user> <password>")
		return
	}
	if !s.users.Login(args[0], args[1]) {
		s.printf("invalid credentials")
		return
	}
	s.current = args[0]
	s.printf("welcome, %s", s.current)
}

func (s *session) whoami() {
	if s.current == "" {
		s.printf("not logged in")
		return
	}
	role, _ := s.users.RoleOf(s.current)
	s.printf("%s (%s)", s.current, role)
}

func (s *session) invite() {
	if !s.organizer() {
		return
	}
	code, err := s.users.NewInvitationCode()
	if err != nil {
		s.printError(err)
		return
	}
	s.printf("invitation code: %s", code)
}

func (s *session) listRooms(ctx context.Context) {
	numbers := s.scheduling.Rooms(ctx)
	if len(numbers) == 0 {
		s.printf("no rooms registered")
		return
	}
	for _, number := range numbers {
		spec, _ := s.scheduling.RoomDetails(ctx, number)
		s.printf("room %d: capacity %d", number, spec.Capacity)
	}
}

func (s *session) addRoom(ctx context.Context, args []string) {
	if !s.organizer() {
		return
	}
	if len(args) != 2 {
		s.printf("usage: add-room <number> <capacity>")
		return
	}
	number, err1 := strconv.Atoi(args[0])
	capacity, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		s.printf("number and capacity must be integers")
		return
	}
	if err := s.scheduling.AddRoom(ctx, rooms.Spec{Number: number, Capacity: capacity}); err != nil {
		s.printError(err)
		return
	}
	s.printf("room %d added", number)
}

func (s *session) deleteRoom(ctx context.Context, args []string) {
	if !s.organizer() {
		return
	}
	if len(args) != 1 {
		s.printf("usage: delete-room <number>")
		return
	}
	number, err := strconv.Atoi(args[0])
	if err != nil {
		s.printf("number must be an integer")
		return
	}
	if err := s.scheduling.DeleteRoom(ctx, number); err != nil {
		s.printError(err)
		return
	}
	s.printf("room %d deleted", number)
}

func (s *session) parseStart(value string) (time.Time, bool) {
	start, err := time.Parse(startLayout, value)
	if err != nil {
		s.printf("start must look like %s", startLayout)
		return time.Time{}, false
	}
	return start, true
}

func (s *session) availableRooms(ctx context.Context, args []string) {
	if len(args) != 2 {
		s.printf("usage: available-rooms <start> <hours>")
		return
	}
	start, ok := s.parseStart(args[0])
	if !ok {
		return
	}
	hours, err := strconv.Atoi(args[1])
	if err != nil {
		s.printf("hours must be an integer")
		return
	}
	numbers := s.scheduling.AvailableRooms(ctx, start, hours)
	if len(numbers) == 0 {
		s.printf("no rooms available")
		return
	}
	for _, number := range numbers {
		s.printf("room %d", number)
	}
}

func (s *session) listEvents(ctx context.Context) {
	all := s.scheduling.Events(ctx)
	if len(all) == 0 {
		s.printf("no events scheduled")
		return
	}
	for _, e := range all {
		s.printf("%s at %s, room %d, %dh, speakers %s, %d enrolled of %d",
			e.Name, e.Start.Format(startLayout), e.RoomNum, e.Duration,
			strings.Join(e.Speakers, ","), len(e.Attendees), e.Capacity)
	}
}

func (s *session) createEvent(ctx context.Context, args []string) {
	if !s.organizer() {
		return
	}
	if len(args) < 6 {
		s.printf("usage: create-event <name> <start> <room> <hours> <capacity> <speaker...>")
		return
	}
	start, ok := s.parseStart(args[1])
	if !ok {
		return
	}
	room, err1 := strconv.Atoi(args[2])
	hours, err2 := strconv.Atoi(args[3])
	capacity, err3 := strconv.Atoi(args[4])
	if err1 != nil || err2 != nil || err3 != nil {
		s.printf("room, hours and capacity must be integers")
		return
	}
	err := s.scheduling.CreateEvent(ctx, application.CreateEventParams{
		Name:       args[0],
		Speakers:   args[5:],
		Start:      start,
		RoomNumber: room,
		Duration:   hours,
		Capacity:   capacity,
	})
	if err != nil {
		s.printError(err)
		return
	}
	s.printf("event %s scheduled", args[0])
}

func (s *session) deleteEvent(ctx context.Context, args []string) {
	if !s.organizer() {
		return
	}
	if len(args) != 1 {
		s.printf("usage: delete-event <name>")
		return
	}
	if err := s.scheduling.DeleteEvent(ctx, args[0]); err != nil {
		s.printError(err)
		return
	}
	s.printf("event %s deleted", args[0])
}

func (s *session) changeCapacity(ctx context.Context, args []string) {
	if !s.organizer() {
		return
	}
	if len(args) != 2 {
		s.printf("usage: capacity <name> <n>")
		return
	}
	capacity, err := strconv.Atoi(args[1])
	if err != nil {
		s.printf("capacity must be an integer")
		return
	}
	if err := s.scheduling.ChangeCapacity(ctx, args[0], capacity); err != nil {
		s.printError(err)
		return
	}
	s.printf("capacity of %s is now %d", args[0], capacity)
}

func (s *session) enroll(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) != 1 {
		s.printf("usage: enroll <name>")
		return
	}
	if err := s.scheduling.Enroll(ctx, s.current, args[0]); err != nil {
		s.printError(err)
		return
	}
	s.printf("enrolled in %s", args[0])
}

func (s *session) unenroll(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) != 1 {
		s.printf("usage: unenroll <name>")
		return
	}
	if err := s.scheduling.Unenroll(ctx, s.current, args[0]); err != nil {
		s.printError(err)
		return
	}
	s.printf("unenrolled from %s", args[0])
}

func (s *session) myEvents(ctx context.Context) {
	if !s.loggedIn() {
		return
	}
	mine := s.scheduling.RegisteredEvents(ctx, s.current)
	if len(mine) == 0 {
		s.printf("no registered events")
		return
	}
	for _, e := range mine {
		s.printf("%s at %s, room %d", e.Name, e.Start.Format(startLayout), e.RoomNum)
	}
}

func (s *session) availableSpeakers(ctx context.Context, args []string) {
	if len(args) != 2 {
		s.printf("usage: available-speakers <start> <hours>")
		return
	}
	start, ok := s.parseStart(args[0])
	if !ok {
		return
	}
	hours, err := strconv.Atoi(args[1])
	if err != nil {
		s.printf("hours must be an integer")
		return
	}
	speakers := s.scheduling.AvailableSpeakers(ctx, start, hours)
	if len(speakers) == 0 {
		s.printf("no speakers available")
		return
	}
	s.printf("%s", strings.Join(speakers, ", "))
}

func (s *session) send(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) < 2 {
		s.printf("usage: send <user> <text...>")
		return
	}
	if err := s.messaging.SendMessage(ctx, s.current, args[0], strings.Join(args[1:], " ")); err != nil {
		s.printError(err)
		return
	}
	s.printf("sent to %s", args[0])
}

func (s *session) reply(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) < 2 {
		s.printf("usage: reply <user> <text...>")
		return
	}
	if err := s.messaging.Reply(ctx, s.current, args[0], strings.Join(args[1:], " ")); err != nil {
		s.printError(err)
		return
	}
	s.printf("replied to %s", args[0])
}

func (s *session) inbox(ctx context.Context) {
	if !s.loggedIn() {
		return
	}
	partners := s.messaging.Conversations(ctx, s.current)
	if len(partners) == 0 {
		s.printf("no conversations")
		return
	}
	unread := make(map[string]bool)
	for _, partner := range s.messaging.UnreadConversations(ctx, s.current) {
		unread[partner] = true
	}
	for _, partner := range partners {
		marker := ""
		if unread[partner] {
			marker = " *"
		}
		s.printf("%s%s", partner, marker)
	}
}

func (s *session) unread(ctx context.Context) {
	if !s.loggedIn() {
		return
	}
	partners := s.messaging.UnreadConversations(ctx, s.current)
	if len(partners) == 0 {
		s.printf("no unread conversations")
		return
	}
	for _, partner := range partners {
		s.printf("%s", partner)
	}
}

func (s *session) conversation(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) != 1 {
		s.printf("usage: conversation <user>")
		return
	}
	msgs := s.messaging.Conversation(ctx, s.current, args[0])
	if len(msgs) == 0 {
		s.printf("no messages with %s", args[0])
		return
	}
	for _, m := range msgs {
		s.printf("[%s] %s: %s", m.CreatedAt.Format("2006-01-02 15:04"), m.Sender, m.Content)
	}
	s.messaging.MarkConversationRead(ctx, s.current, args[0])
}

func (s *session) archive(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) != 1 {
		s.printf("usage: archive <user>")
		return
	}
	s.messaging.ArchiveConversation(ctx, s.current, args[0])
	s.printf("archived conversation with %s", args[0])
}

func (s *session) unarchive(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) != 1 {
		s.printf("usage: unarchive <user>")
		return
	}
	s.messaging.UnarchiveConversation(ctx, s.current, args[0])
	s.printf("unarchived conversation with %s", args[0])
}

func (s *session) archived(ctx context.Context) {
	if !s.loggedIn() {
		return
	}
	partners := s.messaging.ArchivedConversations(ctx, s.current)
	if len(partners) == 0 {
		s.printf("no archived conversations")
		return
	}
	for _, partner := range partners {
		s.printf("%s", partner)
	}
}

func (s *session) deleteConversation(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) != 1 {
		s.printf("usage: delete-conversation <user>")
		return
	}
	s.messaging.DeleteConversation(ctx, s.current, args[0])
	s.printf("deleted conversation with %s", args[0])
}

func (s *session) markUnread(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) != 1 {
		s.printf("usage: mark-unread <user>")
		return
	}
	s.messaging.MarkConversationUnread(ctx, s.current, args[0])
	s.printf("marked conversation with %s as unread", args[0])
}

func (s *session) deleted(ctx context.Context) {
	if !s.loggedIn() {
		return
	}
	partners := s.messaging.DeletedConversations(ctx, s.current)
	if len(partners) == 0 {
		s.printf("deleted bin is empty")
		return
	}
	for _, partner := range partners {
		s.printf("%s", partner)
	}
}

func (s *session) emptyDeletedBin(ctx context.Context) {
	if !s.loggedIn() {
		return
	}
	if err := s.messaging.EmptyDeletedBin(ctx, s.current); err != nil {
		s.printError(err)
		return
	}
	s.printf("deleted bin emptied")
}

func (s *session) messageSpeakers(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) < 1 {
		s.printf("usage: message-speakers <text...>")
		return
	}
	sent, err := s.messaging.MessageAllSpeakers(ctx, s.current, strings.Join(args, " "))
	if err != nil {
		s.printError(err)
		return
	}
	s.printf("sent to %d speakers", sent)
}

func (s *session) messageAttendees(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) < 1 {
		s.printf("usage: message-attendees <text...>")
		return
	}
	sent, err := s.messaging.MessageAllAttendees(ctx, s.current, strings.Join(args, " "))
	if err != nil {
		s.printError(err)
		return
	}
	s.printf("sent to %d attendees", sent)
}

func (s *session) messageEventAttendees(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) < 1 {
		s.printf("usage: message-my-attendees <text...>")
		return
	}
	sent, err := s.messaging.MessageEventAttendees(ctx, s.current, strings.Join(args, " "))
	if err != nil {
		s.printError(err)
		return
	}
	s.printf("sent to %d event attendees", sent)
}

func (s *session) friends(ctx context.Context) {
	if !s.loggedIn() {
		return
	}
	friends := s.messaging.Friends(ctx, s.current)
	if len(friends) == 0 {
		s.printf("no friends yet")
		return
	}
	s.printf("%s", strings.Join(friends, ", "))
}

func (s *session) requests(ctx context.Context) {
	if !s.loggedIn() {
		return
	}
	pending := s.messaging.FriendRequests(ctx, s.current)
	if len(pending) == 0 {
		s.printf("no pending requests")
		return
	}
	for _, requester := range pending {
		s.printf("%s", requester)
	}
}

func (s *session) friendRequest(ctx context.Context, args []string) {
	if !s.loggedIn() {
		return
	}
	if len(args) != 1 {
		s.printf("usage: friend <user>")
		return
	}
	if err := s.messaging.SendFriendRequest(ctx, s.current, args[0]); err != nil {
		s.printError(err)
		return
	}
	s.printf("friend request sent to %s", args[0])
}

func (s *session) respondRequest(ctx context.Context, args []string, accept bool) {
	if !s.loggedIn() {
		return
	}
	if len(args) != 1 {
		s.printf("usage: accept|decline <user>")
		return
	}
	s.messaging.RespondFriendRequest(ctx, s.current, args[0], accept)
	if accept {
		s.printf("you are now friends with %s", args[0])
	} else {
		s.printf("declined %s", args[0])
	}
}
