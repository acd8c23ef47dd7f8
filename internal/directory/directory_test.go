package directory

import (
	"errors"
	"testing"
)

func mustRegister(t *testing.T, d *Directory, username string, role Role) {
	t.Helper()
	if err := d.Register(username, "pass1", role); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}

func TestDirectory_Register(t *testing.T) {
	t.Run("creates an account and verifies login", func(t *testing.T) {
		d := New()
		if err := d.Register("bob", "go4it", RoleAttendee); err != nil {
			t.Fatalf("register: %v", err)
		}
		if !d.Login("bob", "go4it") {
			t.Fatal("login with correct password failed")
		}
		if d.Login("bob", "wrong") {
			t.Fatal("login with wrong password succeeded")
		}
		if role, _ := d.RoleOf("bob"); role != RoleAttendee {
			t.Fatalf("role = %s", role)
		}
	})

	t.Run("rejects case-insensitive duplicate usernames", func(t *testing.T) {
		d := New()
		mustRegister(t, d, "Bob", RoleAttendee)
		err := d.Register("bOB", "pass1", RoleSpeaker)
		if !errors.Is(err, ErrUsernameTaken) {
			t.Fatalf("err = %v, want ErrUsernameTaken", err)
		}
	})

	t.Run("rejects usernames with spaces", func(t *testing.T) {
		d := New()
		if err := d.Register("b ob", "pass1", RoleAttendee); !errors.Is(err, ErrInvalidUsername) {
			t.Fatalf("err = %v, want ErrInvalidUsername", err)
		}
	})

	t.Run("refuses VIP role without invitation", func(t *testing.T) {
		d := New()
		if err := d.Register("vip", "pass1", RoleVIP); !errors.Is(err, ErrInvalidInvitationCode) {
			t.Fatalf("err = %v, want ErrInvalidInvitationCode", err)
		}
	})
}

func TestDirectory_PasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{"minimum length", "ab1d", true},
		{"maximum length", "abcdefg8", true},
		{"too short", "ab1", false},
		{"too long", "abcdefg89", false},
		{"contains space", "ab cd", false},
		{"three identical in a row", "aaab", false},
		{"two identical in a row allowed", "aabb", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := New()
			err := d.Register("user", tc.password, RoleAttendee)
			if tc.ok && err != nil {
				t.Fatalf("register: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidPassword) {
				t.Fatalf("err = %v, want ErrInvalidPassword", err)
			}
		})
	}
}

func TestDirectory_InvitationCodes(t *testing.T) {
	t.Run("generated code redeems exactly once", func(t *testing.T) {
		d := New()
		code, err := d.NewInvitationCode()
		if err != nil {
			t.Fatalf("new code: %v", err)
		}
		if len(code) != 18 {
			t.Fatalf("code length = %d, want 18", len(code))
		}
		if !d.RedeemInvitationCode(code) {
			t.Fatal("first redemption failed")
		}
		if d.RedeemInvitationCode(code) {
			t.Fatal("second redemption succeeded")
		}
	})

	t.Run("master code bypasses the pool", func(t *testing.T) {
		d := New()
		if !d.RedeemInvitationCode(DefaultMasterCode) || !d.RedeemInvitationCode(DefaultMasterCode) {
			t.Fatal("master code must always redeem")
		}
	})

	t.Run("VIP sign-up consumes the code", func(t *testing.T) {
		d := New()
		code, _ := d.NewInvitationCode()
		if err := d.RegisterVIP("vip", "pass1", code); err != nil {
			t.Fatalf("register vip: %v", err)
		}
		if !d.IsRole("vip", RoleVIP) {
			t.Fatal("account is not a VIP")
		}
		if err := d.RegisterVIP("vip2", "pass1", code); !errors.Is(err, ErrInvalidInvitationCode) {
			t.Fatalf("err = %v, want ErrInvalidInvitationCode", err)
		}
	})
}

func TestDirectory_CanSend(t *testing.T) {
	d := New()
	mustRegister(t, d, "org", RoleOrganizer)
	mustRegister(t, d, "spk", RoleSpeaker)
	mustRegister(t, d, "att", RoleAttendee)
	mustRegister(t, d, "att2", RoleAttendee)
	code, _ := d.NewInvitationCode()
	if err := d.RegisterVIP("vip", "pass1", code); err != nil {
		t.Fatalf("register vip: %v", err)
	}

	tests := []struct {
		sender, receiver string
		want             bool
	}{
		{"org", "att", true},
		{"spk", "org", true},
		{"vip", "org", true},
		{"att", "att2", true},
		{"att", "spk", true},
		{"att", "org", false}, // attendees never message organizers
		{"att", "att", false}, // self
		{"att", "ghost", false},
	}

	for _, tc := range tests {
		if got := d.CanSend(tc.sender, tc.receiver); got != tc.want {
			t.Errorf("CanSend(%s, %s) = %v, want %v", tc.sender, tc.receiver, got, tc.want)
		}
	}
}

func TestDirectory_FriendProtocol(t *testing.T) {
	t.Run("request then accept builds a symmetric edge", func(t *testing.T) {
		d := New()
		mustRegister(t, d, "bob", RoleAttendee)
		mustRegister(t, d, "carol", RoleAttendee)

		if !d.AddFriendRequest("bob", "carol") {
			t.Fatal("request refused")
		}
		if !d.RequestPending("carol", "bob") {
			t.Fatal("request not pending on receiver")
		}
		if d.AddFriendRequest("bob", "carol") {
			t.Fatal("duplicate request accepted")
		}

		d.RespondFriendRequest("carol", "bob", true)

		if !d.IsFriend("carol", "bob") || !d.IsFriend("bob", "carol") {
			t.Fatal("friendship edge not symmetric")
		}
		if d.RequestPending("carol", "bob") {
			t.Fatal("pending entry not removed after accept")
		}
	})

	t.Run("decline removes the pending entry only", func(t *testing.T) {
		d := New()
		mustRegister(t, d, "bob", RoleAttendee)
		mustRegister(t, d, "carol", RoleAttendee)
		d.AddFriendRequest("bob", "carol")

		d.RespondFriendRequest("carol", "bob", false)

		if d.IsFriend("carol", "bob") {
			t.Fatal("declined request created a friendship")
		}
		if d.RequestPending("carol", "bob") {
			t.Fatal("pending entry not removed after decline")
		}
	})

	t.Run("VIP requests are prioritized", func(t *testing.T) {
		d := New()
		mustRegister(t, d, "bob", RoleAttendee)
		mustRegister(t, d, "carol", RoleAttendee)
		code, _ := d.NewInvitationCode()
		if err := d.RegisterVIP("vip", "pass1", code); err != nil {
			t.Fatalf("register vip: %v", err)
		}

		d.AddFriendRequest("bob", "carol")
		d.AddFriendRequest("vip", "carol")

		got := d.FriendRequests("carol")
		if len(got) != 2 || got[0] != "vip" {
			t.Fatalf("requests = %v, want vip first", got)
		}
	})
}

func TestDirectory_RegisteredEvents(t *testing.T) {
	d := New()
	mustRegister(t, d, "bob", RoleAttendee)

	if err := d.AddRegisteredEvent("bob", "Keynote"); err != nil {
		t.Fatalf("add registered event: %v", err)
	}
	if got := d.RegisteredEvents("bob"); len(got) != 1 || got[0] != "Keynote" {
		t.Fatalf("registered events = %v", got)
	}

	d.RemoveRegisteredEvent("bob", "Keynote")
	if got := d.RegisteredEvents("bob"); len(got) != 0 {
		t.Fatalf("registered events after removal = %v", got)
	}

	if err := d.AddRegisteredEvent("ghost", "Keynote"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("err = %v, want ErrUnknownUser", err)
	}
}

func TestDirectory_RoleRosters(t *testing.T) {
	d := New()
	mustRegister(t, d, "spk2", RoleSpeaker)
	mustRegister(t, d, "spk1", RoleSpeaker)
	mustRegister(t, d, "org", RoleOrganizer)

	if got := d.Speakers(); len(got) != 2 || got[0] != "spk1" || got[1] != "spk2" {
		t.Fatalf("Speakers = %v", got)
	}
	if got := d.Organizers(); len(got) != 1 || got[0] != "org" {
		t.Fatalf("Organizers = %v", got)
	}
}

func TestDirectory_RestoreRoundTrip(t *testing.T) {
	d := New()
	mustRegister(t, d, "bob", RoleAttendee)
	code, _ := d.NewInvitationCode()

	restored := New()
	restored.Restore(d.Accounts(), d.InvitationCodes())

	if !restored.Login("bob", "pass1") {
		t.Fatal("restored account cannot log in")
	}
	if !restored.RedeemInvitationCode(code) {
		t.Fatal("restored code pool lost the code")
	}
}
