// Package directory owns the conference's user accounts: roles,
// credentials, friend relationships, registered events, and the
// one-time invitation codes gating VIP sign-up.
package directory

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sort"
	"strings"
)

// Role is the closed set of account types. Role-specific behavior is
// decided by policy functions dispatching on the role, not by
// subtyping.
type Role string

const (
	RoleAttendee  Role = "Attendee"
	RoleSpeaker   Role = "Speaker"
	RoleOrganizer Role = "Organizer"
	RoleVIP       Role = "VIP"
)

// ParseRole maps a stored role string onto the closed role set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAttendee, RoleSpeaker, RoleOrganizer, RoleVIP:
		return Role(s), true
	}
	return "", false
}

var (
	// ErrUsernameTaken is returned when the username duplicates an
	// existing account, compared case-insensitively.
	ErrUsernameTaken = errors.New("directory: username already taken")
	// ErrInvalidUsername is returned for empty usernames or usernames
	// containing spaces.
	ErrInvalidUsername = errors.New("directory: invalid username")
	// ErrInvalidPassword is returned when the password violates the
	// sign-up policy.
	ErrInvalidPassword = errors.New("directory: invalid password")
	// ErrInvalidRole is returned for a role outside the closed set.
	ErrInvalidRole = errors.New("directory: invalid role")
	// ErrInvalidInvitationCode is returned when a VIP sign-up presents
	// a code that is not in the pool and is not the master code.
	ErrInvalidInvitationCode = errors.New("directory: invalid invitation code")
	// ErrUnknownUser is returned when the named account does not exist.
	ErrUnknownUser = errors.New("directory: unknown user")
)

const (
	invitationCodeLength = 18
	codeAlphabet         = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// DefaultMasterCode always redeems, bypassing the one-time pool.
	DefaultMasterCode = "Lindsey Is Awesome"
)

// Account is a single user record. Friend requests are pending
// incoming entries on the receiver's account.
type Account struct {
	Username         string
	PasswordHash     string
	Role             Role
	RegisteredEvents []string
	Friends          []string
	FriendRequests   []string
}

func (a Account) clone() Account {
	out := a
	out.RegisteredEvents = append([]string(nil), a.RegisteredEvents...)
	out.Friends = append([]string(nil), a.Friends...)
	out.FriendRequests = append([]string(nil), a.FriendRequests...)
	return out
}

// Directory stores all accounts keyed by exact username, together with
// the pool of unredeemed invitation codes.
type Directory struct {
	accounts   map[string]*Account
	codes      []string
	masterCode string
}

// New returns an empty directory with the default master code.
func New() *Directory {
	return NewWithMasterCode(DefaultMasterCode)
}

// NewWithMasterCode returns an empty directory whose master invitation
// code is the given value. An empty value disables the master code.
func NewWithMasterCode(masterCode string) *Directory {
	return &Directory{
		accounts:   make(map[string]*Account),
		masterCode: masterCode,
	}
}

// validPassword applies the sign-up policy: 4 to 8 characters, no
// spaces, and no run of three or more identical characters.
func validPassword(password string) bool {
	if len(password) < 4 || len(password) > 8 {
		return false
	}
	if strings.Contains(password, " ") {
		return false
	}
	run := 1
	for i := 1; i < len(password); i++ {
		if password[i] == password[i-1] {
			run++
			if run == 3 {
				return false
			}
		} else {
			run = 1
		}
	}
	return true
}

// IsDuplicate reports whether the username collides with an existing
// account under case-insensitive comparison.
func (d *Directory) IsDuplicate(username string) bool {
	for name := range d.accounts {
		if strings.EqualFold(name, username) {
			return true
		}
	}
	return false
}

// Register creates a new account of the given role. VIP accounts must
// be created through RegisterVIP.
func (d *Directory) Register(username, password string, role Role) error {
	if role == RoleVIP {
		return ErrInvalidInvitationCode
	}
	return d.create(username, password, role)
}

// RegisterVIP creates a VIP account after redeeming the invitation
// code. The code is consumed even though account creation may still
// fail on credential validation, matching single-use semantics.
func (d *Directory) RegisterVIP(username, password, code string) error {
	if !d.RedeemInvitationCode(code) {
		return ErrInvalidInvitationCode
	}
	return d.create(username, password, RoleVIP)
}

func (d *Directory) create(username, password string, role Role) error {
	if _, ok := ParseRole(string(role)); !ok {
		return ErrInvalidRole
	}
	if username == "" || strings.Contains(username, " ") {
		return ErrInvalidUsername
	}
	if d.IsDuplicate(username) {
		return ErrUsernameTaken
	}
	if !validPassword(password) {
		return ErrInvalidPassword
	}
	hash, err := CreatePasswordHash(password, DefaultArgon2idParams)
	if err != nil {
		return err
	}
	d.accounts[username] = &Account{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	return nil
}

// Login reports whether the username exists and the password matches
// its stored hash.
func (d *Directory) Login(username, password string) bool {
	acct, ok := d.accounts[username]
	if !ok {
		return false
	}
	return VerifyPassword(acct.PasswordHash, password) == nil
}

// Exists reports whether the account exists, by exact username.
func (d *Directory) Exists(username string) bool {
	_, ok := d.accounts[username]
	return ok
}

// RoleOf returns the account's role. The second return value reports
// whether the account exists.
func (d *Directory) RoleOf(username string) (Role, bool) {
	acct, ok := d.accounts[username]
	if !ok {
		return "", false
	}
	return acct.Role, true
}

// IsRole reports whether the account exists and holds the given role.
func (d *Directory) IsRole(username string, role Role) bool {
	got, ok := d.RoleOf(username)
	return ok && got == role
}

// usersOfRole returns the usernames of all accounts holding the role,
// sorted for deterministic listings.
func (d *Directory) usersOfRole(role Role) []string {
	var out []string
	for name, acct := range d.accounts {
		if acct.Role == role {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Speakers returns the usernames of all speaker accounts.
func (d *Directory) Speakers() []string { return d.usersOfRole(RoleSpeaker) }

// Attendees returns the usernames of all attendee accounts.
func (d *Directory) Attendees() []string { return d.usersOfRole(RoleAttendee) }

// Organizers returns the usernames of all organizer accounts.
func (d *Directory) Organizers() []string { return d.usersOfRole(RoleOrganizer) }

// VIPs returns the usernames of all VIP accounts.
func (d *Directory) VIPs() []string { return d.usersOfRole(RoleVIP) }

// RegisteredEvents returns the event names the user signed up for.
func (d *Directory) RegisteredEvents(username string) []string {
	if acct, ok := d.accounts[username]; ok {
		return append([]string(nil), acct.RegisteredEvents...)
	}
	return nil
}

// AddRegisteredEvent records an event on the user's registered list.
func (d *Directory) AddRegisteredEvent(username, eventName string) error {
	acct, ok := d.accounts[username]
	if !ok {
		return ErrUnknownUser
	}
	acct.RegisteredEvents = append(acct.RegisteredEvents, eventName)
	return nil
}

// RemoveRegisteredEvent deletes an event from the user's registered
// list, if present.
func (d *Directory) RemoveRegisteredEvent(username, eventName string) {
	acct, ok := d.accounts[username]
	if !ok {
		return
	}
	for i, name := range acct.RegisteredEvents {
		if name == eventName {
			acct.RegisteredEvents = append(acct.RegisteredEvents[:i], acct.RegisteredEvents[i+1:]...)
			return
		}
	}
}

// CanSend reports whether the sender may message the receiver.
// Organizers, speakers, and VIPs may message anyone; attendees may
// message anyone except organizers. Self-sends and unknown receivers
// are always refused.
func (d *Directory) CanSend(sender, receiver string) bool {
	if !d.Exists(receiver) || sender == receiver {
		return false
	}
	switch role, _ := d.RoleOf(sender); role {
	case RoleOrganizer, RoleSpeaker, RoleVIP:
		return true
	default:
		return !d.IsRole(receiver, RoleOrganizer)
	}
}

// NewInvitationCode generates a fresh 18-character alphanumeric code,
// adds it to the redeemable pool, and returns it.
func (d *Directory) NewInvitationCode() (string, error) {
	buf := make([]byte, invitationCodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	code := string(buf)
	d.codes = append(d.codes, code)
	return code, nil
}

// RedeemInvitationCode consumes the code from the pool, reporting
// whether it was valid. Each pooled code redeems exactly once; the
// master code redeems any number of times.
func (d *Directory) RedeemInvitationCode(code string) bool {
	for i, c := range d.codes {
		if c == code {
			d.codes = append(d.codes[:i], d.codes[i+1:]...)
			return true
		}
	}
	return d.masterCode != "" && code == d.masterCode
}

// IsFriend reports whether other is on the user's friend list.
func (d *Directory) IsFriend(username, other string) bool {
	acct, ok := d.accounts[username]
	return ok && contains(acct.Friends, other)
}

// RequestPending reports whether requester has a pending friend
// request on the user's account.
func (d *Directory) RequestPending(username, requester string) bool {
	acct, ok := d.accounts[username]
	return ok && contains(acct.FriendRequests, requester)
}

// AddFriendRequest records a pending request from sender on the
// receiver's account. Requests from VIP senders are prepended so they
// surface first. The request is refused when the two are already
// friends or an identical request is already pending.
func (d *Directory) AddFriendRequest(sender, receiver string) bool {
	to, ok := d.accounts[receiver]
	if !ok || !d.Exists(sender) {
		return false
	}
	if d.IsFriend(sender, receiver) || d.RequestPending(receiver, sender) {
		return false
	}
	if d.IsRole(sender, RoleVIP) {
		to.FriendRequests = append([]string{sender}, to.FriendRequests...)
	} else {
		to.FriendRequests = append(to.FriendRequests, sender)
	}
	return true
}

// RespondFriendRequest resolves the pending request from requester on
// the user's account. Accepting adds the symmetric friendship edge to
// both accounts; either way the pending entry is removed.
func (d *Directory) RespondFriendRequest(username, requester string, accept bool) {
	acct, ok := d.accounts[username]
	if !ok {
		return
	}
	if d.IsFriend(username, requester) {
		return
	}
	if accept {
		if other, ok := d.accounts[requester]; ok {
			acct.Friends = append(acct.Friends, requester)
			other.Friends = append(other.Friends, username)
		}
	}
	for i, name := range acct.FriendRequests {
		if name == requester {
			acct.FriendRequests = append(acct.FriendRequests[:i], acct.FriendRequests[i+1:]...)
			return
		}
	}
}

// Friends returns the user's friend list.
func (d *Directory) Friends(username string) []string {
	if acct, ok := d.accounts[username]; ok {
		return append([]string(nil), acct.Friends...)
	}
	return nil
}

// FriendRequests returns the user's pending incoming requests in
// priority order.
func (d *Directory) FriendRequests(username string) []string {
	if acct, ok := d.accounts[username]; ok {
		return append([]string(nil), acct.FriendRequests...)
	}
	return nil
}

// Accounts returns a copy of every account, sorted by username, for
// snapshotting.
func (d *Directory) Accounts() []Account {
	out := make([]Account, 0, len(d.accounts))
	for _, acct := range d.accounts {
		out = append(out, acct.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// InvitationCodes returns the unredeemed code pool, for snapshotting.
func (d *Directory) InvitationCodes() []string {
	return append([]string(nil), d.codes...)
}

// Restore reinserts persisted accounts and the unredeemed code pool
// without re-validating credentials.
func (d *Directory) Restore(accounts []Account, codes []string) {
	for _, acct := range accounts {
		a := acct.clone()
		d.accounts[a.Username] = &a
	}
	d.codes = append([]string(nil), codes...)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
