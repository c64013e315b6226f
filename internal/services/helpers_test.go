package services

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/nexusbot/internal/models"
	"github.com/yoockh/nexusbot/internal/records"
)

// Friday 2025-01-03 12:00 UTC
var friday = time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func seedBot(store *records.MemoryStore, b models.Bot) models.Bot {
	if b.ID == "" {
		b.ID = "7b0c2f4e-0000-4000-8000-000000000001"
	}
	if b.Name == "" {
		b.Name = "Ana"
	}
	if err := store.Insert(context.Background(), models.CollectionBots, &b); err != nil {
		panic(err)
	}
	return b
}

func schedulingBot() models.Bot {
	return models.Bot{
		ID:             "7b0c2f4e-0000-4000-8000-000000000002",
		Name:           "Clinic",
		RoleDefinition: "You book dental appointments.",
		KnowledgeBase:  "We are a dental clinic.",
		SchedulingConfig: models.ConfigJSON(`{
			"enabled": true,
			"durationMinutes": 30,
			"availability": [{"day": "monday", "enabled": true, "start": "09:00", "end": "17:00"}]
		}`),
	}
}

func profileOf(b models.Bot) *models.BotProfile {
	p := b.Normalize(models.ProfileDefaults{Timezone: "UTC"})
	return &p
}

var errStoreDown = errors.New("store down")

// failingInserts is a reachable store whose writes fail.
type failingInserts struct {
	*records.MemoryStore
}

func (f failingInserts) Insert(context.Context, string, any) error { return errStoreDown }

func (f failingInserts) Update(context.Context, string, map[string]any, ...records.Filter) error {
	return errStoreDown
}
