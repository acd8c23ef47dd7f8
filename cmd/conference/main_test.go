package main

import (
	"testing"
	"time"

	"github.com/example/conference-manager/internal/events"
	"github.com/example/conference-manager/internal/testfixtures"
)

func TestPurgePastEvents(t *testing.T) {
	now := testfixtures.ReferenceTime()
	catalog := events.NewCatalog()
	catalog.Add("Retrospective", []string{"alice"}, now.Add(-48*time.Hour), 5, 1, 40)
	catalog.Add("Keynote", []string{"alice"}, now.Add(24*time.Hour), 5, 1, 40)

	if purged := purgePastEvents(catalog, now); purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}

	remaining := catalog.All()
	if len(remaining) != 1 || remaining[0].Name != "Keynote" {
		t.Fatalf("remaining = %v, want only Keynote", remaining)
	}
}
