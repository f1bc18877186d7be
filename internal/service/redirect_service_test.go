package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"geolink-go/constant"
	"geolink-go/internal/cache"
	"geolink-go/internal/dto"
	"geolink-go/internal/model"
	"geolink-go/internal/queue"
)

type redirectFixture struct {
	redis   *miniredis.Miniredis
	pool    *redis.Pool
	db      *gorm.DB
	service *RedirectService
}

func newRedirectFixture(t *testing.T) *redirectFixture {
	t.Helper()

	s := miniredis.RunT(t)
	addr := s.Addr()
	pool := &redis.Pool{
		MaxIdle: 2,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}
	t.Cleanup(func() { pool.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Link{}))

	logger := zap.NewNop()
	linkCache := cache.NewLinkCache(pool, logger, 0)
	publisher := queue.NewPublisher(pool, logger)

	return &redirectFixture{
		redis:   s,
		pool:    pool,
		db:      db,
		service: NewRedirectService(db, linkCache, publisher, logger),
	}
}

func (f *redirectFixture) seedLink(t *testing.T) *model.Link {
	t.Helper()
	link := &model.Link{
		LinkID:    "abc123",
		AccountID: "acct-1",
		Name:      "Launch page",
		Destinations: map[string]string{
			"default": "https://example.com",
			"US":      "https://example.com/us",
			"FR":      "https://example.fr",
		},
	}
	require.NoError(t, f.db.Create(link).Error)
	return link
}

func (f *redirectFixture) streamEntries(t *testing.T) []dto.ClickMessage {
	t.Helper()
	entries, err := f.redis.Stream(constant.ClickStream)
	if err != nil {
		return nil
	}
	msgs := make([]dto.ClickMessage, 0, len(entries))
	for _, e := range entries {
		var msg dto.ClickMessage
		require.NoError(t, json.Unmarshal([]byte(e.Values[1]), &msg))
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestResolveUnknownLinkIsMissWithoutSideEffects(t *testing.T) {
	f := newRedirectFixture(t)
	f.seedLink(t)

	dest, ok := f.service.Resolve(context.Background(), "zzz999", "US", nil, nil)
	assert.False(t, ok)
	assert.Empty(t, dest)

	// No click event and no cache write for an unknown identifier.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.streamEntries(t))
	assert.False(t, f.redis.Exists(constant.GetLinkSnapshotKey("zzz999")))
}

func TestResolveMalformedIDIsMiss(t *testing.T) {
	f := newRedirectFixture(t)

	_, ok := f.service.Resolve(context.Background(), "not a link id!", "US", nil, nil)
	assert.False(t, ok)
}

func TestResolvePicksCountryDestinationAndEmitsClick(t *testing.T) {
	f := newRedirectFixture(t)
	f.seedLink(t)

	dest, ok := f.service.Resolve(context.Background(), "abc123", "FR", nil, nil)
	require.True(t, ok)
	assert.Equal(t, "https://example.fr", dest)

	assert.Eventually(t, func() bool {
		return len(f.streamEntries(t)) == 1
	}, time.Second, 10*time.Millisecond)

	msgs := f.streamEntries(t)
	assert.Equal(t, dto.ClickMessageType, msgs[0].Type)
	assert.Equal(t, "abc123", msgs[0].Data.ID)
	assert.Equal(t, "FR", msgs[0].Data.Country)
	assert.Equal(t, "https://example.fr", msgs[0].Data.Destination)
	assert.NotZero(t, msgs[0].Data.ClickedTime)
}

func TestResolveFillsCacheAfterStoreMiss(t *testing.T) {
	f := newRedirectFixture(t)
	f.seedLink(t)

	_, ok := f.service.Resolve(context.Background(), "abc123", "US", nil, nil)
	require.True(t, ok)

	key := constant.GetLinkSnapshotKey("abc123")
	assert.Eventually(t, func() bool {
		return f.redis.Exists(key)
	}, time.Second, 10*time.Millisecond)
}

func TestResolveServesFromCacheWithoutStore(t *testing.T) {
	f := newRedirectFixture(t)
	link := f.seedLink(t)

	// Warm the cache, then remove the row: a cached snapshot must be enough.
	linkCache := cache.NewLinkCache(f.pool, zap.NewNop(), 0)
	linkCache.Put(context.Background(), link)
	require.NoError(t, f.db.Delete(&model.Link{}, link.ID).Error)

	dest, ok := f.service.Resolve(context.Background(), "abc123", "US", nil, nil)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/us", dest)
}

func TestResolveFallsBackToDefaultForUnmappedCountry(t *testing.T) {
	f := newRedirectFixture(t)
	f.seedLink(t)

	dest, ok := f.service.Resolve(context.Background(), "abc123", "BR", nil, nil)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", dest)
}

func TestResolveSurvivesEnqueueFailure(t *testing.T) {
	f := newRedirectFixture(t)
	f.seedLink(t)
	f.redis.Close()

	dest, ok := f.service.Resolve(context.Background(), "abc123", "US", nil, nil)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/us", dest)
}

func TestResolveForwardsCoordinates(t *testing.T) {
	f := newRedirectFixture(t)
	f.seedLink(t)

	lat, lon := 48.85, 2.35
	_, ok := f.service.Resolve(context.Background(), "abc123", "FR", &lat, &lon)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		return len(f.streamEntries(t)) == 1
	}, time.Second, 10*time.Millisecond)

	msgs := f.streamEntries(t)
	require.NotNil(t, msgs[0].Data.Latitude)
	require.NotNil(t, msgs[0].Data.Longitude)
	assert.InDelta(t, 48.85, *msgs[0].Data.Latitude, 0.0001)
	assert.InDelta(t, 2.35, *msgs[0].Data.Longitude, 0.0001)
}
