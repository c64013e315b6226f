package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/nexusbot/internal/cache"
	"github.com/yoockh/nexusbot/internal/logger"
	"github.com/yoockh/nexusbot/internal/models"
	"github.com/yoockh/nexusbot/internal/records"
	"github.com/yoockh/nexusbot/internal/utils"
)

func TestBotServiceMissingBotIsUnavailableWithoutWrites(t *testing.T) {
	store := records.NewMemoryStore()
	seedBot(store, models.Bot{})
	writes := store.Writes()

	svc := NewBotService(store, nil, time.Minute, models.ProfileDefaults{Timezone: "UTC"}, logger.Discard())
	_, err := svc.Get(context.Background(), "missing-id")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	assert.Equal(t, writes, store.Writes())
}

func TestBotServiceNormalizesProfile(t *testing.T) {
	store := records.NewMemoryStore()
	b := seedBot(store, models.Bot{
		Name:             "Ana",
		LeadConfig:       models.ConfigJSON(`{"enabled": true, "phoneRequired": true}`),
		SchedulingConfig: models.ConfigJSON(`{"enabled": true}`),
	})

	svc := NewBotService(store, nil, 0, models.ProfileDefaults{Timezone: "Europe/Lisbon"}, logger.Discard())
	p, err := svc.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, models.DefaultThemeColor, p.ThemeColor)
	assert.True(t, p.Lead.Enabled)
	assert.Equal(t, []string{models.LeadFieldPhone}, p.Lead.Fields())
	assert.Equal(t, models.DefaultDurationMinutes, p.Scheduling.DurationMinutes)
	assert.Equal(t, "Europe/Lisbon", p.Scheduling.Timezone)
	assert.Len(t, p.Scheduling.Availability, 7)
}

func TestBotServiceUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := records.NewMemoryStore()
	b := seedBot(store, models.Bot{Name: "Ana"})
	svc := NewBotService(store, cache.NewRedisCache(rdb), time.Minute, models.ProfileDefaults{}, logger.Discard())
	ctx := context.Background()

	_, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.BotKey(b.ID)))

	// served from cache even after the row is gone
	require.NoError(t, store.Delete(ctx, models.CollectionBots, records.Eq("id", b.ID)))
	p, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name)
}

func TestBotServiceCacheDownFallsBackToStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	mr.Close()

	store := records.NewMemoryStore()
	b := seedBot(store, models.Bot{Name: "Ana"})
	svc := NewBotService(store, cache.NewRedisCache(rdb), time.Minute, models.ProfileDefaults{}, logger.Discard())

	p, err := svc.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name)
}

func TestBotServiceDisconnectedStore(t *testing.T) {
	svc := NewBotService(records.Disconnected{}, nil, 0, models.ProfileDefaults{}, logger.Discard())
	_, err := svc.Get(context.Background(), "b1")
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))

	_, err = svc.Get(context.Background(), " ")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
