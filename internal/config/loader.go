package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config captures environment driven configuration values for the
// conference service.
type Config struct {
	SQLiteDSN        string
	OpenHour         int
	CloseHour        int
	MasterInviteCode string
}

// Load parses configuration values from the current process environment.
//
// Every field has a sensible default; set values are validated and all
// invalid entries are reported together.
func Load() (Config, error) {
	cfg := Config{
		SQLiteDSN: "file:conference.db?_foreign_keys=on",
		OpenHour:  9,
		CloseHour: 17,
	}

	invalid := make([]string, 0, 2)

	if dsn := strings.TrimSpace(os.Getenv("CONFERENCE_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if hourValue := strings.TrimSpace(os.Getenv("CONFERENCE_OPEN_HOUR")); hourValue != "" {
		hour, err := strconv.Atoi(hourValue)
		if err != nil || hour < 0 || hour > 23 {
			invalid = append(invalid, "CONFERENCE_OPEN_HOUR")
		} else {
			cfg.OpenHour = hour
		}
	}

	if hourValue := strings.TrimSpace(os.Getenv("CONFERENCE_CLOSE_HOUR")); hourValue != "" {
		hour, err := strconv.Atoi(hourValue)
		if err != nil || hour < 1 || hour > 24 {
			invalid = append(invalid, "CONFERENCE_CLOSE_HOUR")
		} else {
			cfg.CloseHour = hour
		}
	}

	if cfg.CloseHour <= cfg.OpenHour {
		invalid = append(invalid, "CONFERENCE_OPEN_HOUR/CONFERENCE_CLOSE_HOUR")
	}

	if code := strings.TrimSpace(os.Getenv("CONFERENCE_MASTER_INVITE")); code != "" {
		cfg.MasterInviteCode = code
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
