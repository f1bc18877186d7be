package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"geolink-go/internal/cache"
	"geolink-go/internal/dto"
	"geolink-go/internal/model"
	"geolink-go/internal/queue"
	"geolink-go/pkg/utils"
)

// sideEffectTimeout bounds the detached cache fill and click publish so a
// slow Redis can never hold goroutines forever.
const sideEffectTimeout = 2 * time.Second

// RedirectService resolves a link identifier to a geo-specific destination
// and emits the click event. Everything that is not the redirect itself is
// best-effort: a cache or enqueue failure is logged and swallowed, because
// click loss is acceptable and broken navigation is not.
type RedirectService struct {
	db        *gorm.DB
	cache     *cache.LinkCache
	publisher *queue.Publisher
	logger    *zap.Logger
}

func NewRedirectService(db *gorm.DB, linkCache *cache.LinkCache, publisher *queue.Publisher, logger *zap.Logger) *RedirectService {
	return &RedirectService{
		db:        db,
		cache:     linkCache,
		publisher: publisher,
		logger:    logger,
	}
}

// Resolve looks the link up cache-first, picks the destination for the
// request country and enqueues the click. The second return is false when the
// identifier is unknown; the caller answers 404 and no side effect happens.
func (s *RedirectService) Resolve(ctx context.Context, linkID, country string, latitude, longitude *float64) (string, bool) {
	if err := utils.ValidateLinkID(linkID); err != nil {
		return "", false
	}

	link, hit := s.cache.Get(ctx, linkID)
	if !hit {
		var stored model.Link
		err := s.db.WithContext(ctx).Where("link_id = ?", linkID).First(&stored).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Error("Failed to load link",
					zap.String("link_id", linkID),
					zap.Error(err))
			}
			return "", false
		}
		link = &stored

		// Fill the cache off the request path; Put swallows its own errors.
		fill := *link
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			defer cancel()
			s.cache.Put(fillCtx, &fill)
		}()
	}

	destination := SelectDestination(link.Destinations, country)

	s.emitClick(link, country, destination, latitude, longitude)

	return destination, true
}

// emitClick enqueues the click event without blocking the redirect. An
// enqueue failure is logged and dropped.
func (s *RedirectService) emitClick(link *model.Link, country, destination string, latitude, longitude *float64) {
	msg := dto.ClickMessage{
		Type: dto.ClickMessageType,
		Data: dto.ClickData{
			ID:          link.LinkID,
			AccountID:   link.AccountID,
			Country:     country,
			Destination: destination,
			ClickedTime: time.Now().UnixMilli(),
			Latitude:    latitude,
			Longitude:   longitude,
		},
	}

	go func() {
		publishCtx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := s.publisher.Publish(publishCtx, msg); err != nil {
			s.logger.Warn("Failed to enqueue click event",
				zap.String("link_id", msg.Data.ID),
				zap.String("country", msg.Data.Country),
				zap.Error(err))
		}
	}()
}
