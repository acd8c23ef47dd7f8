package config

import (
	"os"
	"strings"
	"testing"
)

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unset := []string{
			"CONFERENCE_SQLITE_DSN",
			"CONFERENCE_OPEN_HOUR",
			"CONFERENCE_CLOSE_HOUR",
			"CONFERENCE_MASTER_INVITE",
		}
		for _, key := range unset {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.SQLiteDSN != "file:conference.db?_foreign_keys=on" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.OpenHour != 9 || cfg.CloseHour != 17 {
			t.Fatalf("expected default hours 9-17, got %d-%d", cfg.OpenHour, cfg.CloseHour)
		}
		if cfg.MasterInviteCode != "" {
			t.Fatalf("expected no master invite override, got %q", cfg.MasterInviteCode)
		}
	})

	t.Run("parses set values", func(t *testing.T) {
		t.Setenv("CONFERENCE_SQLITE_DSN", "file:/tmp/conference.db")
		t.Setenv("CONFERENCE_OPEN_HOUR", "8")
		t.Setenv("CONFERENCE_CLOSE_HOUR", "22")
		t.Setenv("CONFERENCE_MASTER_INVITE", "override-code")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.SQLiteDSN != "file:/tmp/conference.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.OpenHour != 8 || cfg.CloseHour != 22 {
			t.Fatalf("expected hours 8-22, got %d-%d", cfg.OpenHour, cfg.CloseHour)
		}
		if cfg.MasterInviteCode != "override-code" {
			t.Fatalf("unexpected master invite code: %q", cfg.MasterInviteCode)
		}
	})

	t.Run("errors on non-numeric hours", func(t *testing.T) {
		t.Setenv("CONFERENCE_OPEN_HOUR", "nine")
		t.Setenv("CONFERENCE_CLOSE_HOUR", "17")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for non-numeric open hour")
		}
		if !strings.Contains(err.Error(), "CONFERENCE_OPEN_HOUR") {
			t.Fatalf("error should name the offending variable: %q", err.Error())
		}
	})

	t.Run("errors when hours are inverted", func(t *testing.T) {
		t.Setenv("CONFERENCE_OPEN_HOUR", "18")
		t.Setenv("CONFERENCE_CLOSE_HOUR", "9")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error when the close hour precedes the open hour")
		}
	})

	t.Run("collects every invalid value in one error", func(t *testing.T) {
		t.Setenv("CONFERENCE_OPEN_HOUR", "-1")
		t.Setenv("CONFERENCE_CLOSE_HOUR", "25")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for out-of-range hours")
		}
		msg := err.Error()
		if !strings.Contains(msg, "CONFERENCE_OPEN_HOUR") || !strings.Contains(msg, "CONFERENCE_CLOSE_HOUR") {
			t.Fatalf("error should name both variables: %q", msg)
		}
	})
}
