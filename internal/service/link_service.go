package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"geolink-go/internal/apperrors"
	"geolink-go/internal/cache"
	"geolink-go/internal/dto"
	"geolink-go/internal/model"
	"geolink-go/pkg/utils"
	"geolink-go/response"
)

const linkIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxIDAttempts bounds regeneration when a freshly generated identifier
// collides with an existing row.
const maxIDAttempts = 5

// LinkService owns the authoritative link records. All dependencies are
// injected; there is no package-level store handle.
type LinkService struct {
	db     *gorm.DB
	cache  *cache.LinkCache
	logger *zap.Logger
}

func NewLinkService(db *gorm.DB, linkCache *cache.LinkCache, logger *zap.Logger) *LinkService {
	return &LinkService{
		db:     db,
		cache:  linkCache,
		logger: logger,
	}
}

// Create validates the destinations mapping, generates a unique link
// identifier and persists the record.
func (s *LinkService) Create(ctx context.Context, req dto.CreateLinkRequest) (*model.Link, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.InvalidRequestError(err.Error())
	}

	link := &model.Link{
		AccountID:    req.AccountID,
		Name:         req.Name,
		Destinations: utils.NormalizeDestinations(req.Destinations),
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		linkID, err := generateLinkID()
		if err != nil {
			s.logger.Error("Failed to generate link id", zap.Error(err))
			return nil, apperrors.SystemErrorDefault()
		}

		var existing model.Link
		err = s.db.WithContext(ctx).Where("link_id = ?", linkID).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Failed to check link id uniqueness", zap.Error(err))
			return nil, apperrors.SystemErrorDefault()
		}

		link.LinkID = linkID
		if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
			s.logger.Error("Failed to persist link", zap.Error(err))
			return nil, apperrors.SystemErrorDefault()
		}
		return link, nil
	}

	return nil, apperrors.SystemError("error.link_id_exhausted")
}

// Update replaces the name and destinations mapping, bumps UpdatedAt and
// synchronously invalidates the cached snapshot before acknowledging. If the
// invalidation fails the update is still durable and the TTL bounds the
// staleness window, but the caller is told.
func (s *LinkService) Update(ctx context.Context, linkID string, req dto.UpdateLinkRequest) error {
	if err := req.Validate(); err != nil {
		return apperrors.InvalidRequestError(err.Error())
	}

	var existing model.Link
	if err := s.db.WithContext(ctx).Where("link_id = ?", linkID).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.LinkNotFoundError()
		}
		s.logger.Warn("Failed to load link for update",
			zap.String("link_id", linkID),
			zap.Error(err))
		return apperrors.SystemErrorDefault()
	}

	existing.Name = req.Name
	existing.Destinations = utils.NormalizeDestinations(req.Destinations)
	existing.UpdatedAt = time.Now()

	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		s.logger.Warn("Failed to update link",
			zap.String("link_id", linkID),
			zap.Error(err))
		return apperrors.SystemErrorDefault()
	}

	if err := s.cache.Invalidate(ctx, linkID); err != nil {
		return apperrors.BusinessError(http.StatusInternalServerError, "error.cache_invalidate_failed")
	}

	return nil
}

// Get loads one link by identifier.
func (s *LinkService) Get(ctx context.Context, linkID string) (*model.Link, error) {
	var link model.Link
	if err := s.db.WithContext(ctx).Where("link_id = ?", linkID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.LinkNotFoundError()
		}
		return nil, apperrors.SystemErrorDefault()
	}
	return &link, nil
}

// List returns a page of links, optionally filtered by account.
func (s *LinkService) List(ctx context.Context, page, size int, accountID string) (*response.PageResponse[model.Link], error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}

	db := s.db.WithContext(ctx).Model(&model.Link{})
	if accountID != "" {
		db = db.Where("account_id = ?", accountID)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, apperrors.SystemError("error.link_count_failed")
	}

	if total == 0 {
		return &response.PageResponse[model.Link]{
			Page:      page,
			Size:      size,
			Total:     0,
			TotalPage: 0,
			List:      []model.Link{},
		}, nil
	}

	var links []model.Link
	if err := db.
		Limit(size).
		Offset((page - 1) * size).
		Order("id DESC").
		Find(&links).Error; err != nil {
		s.logger.Warn("Failed to list links", zap.Error(err))
		return nil, apperrors.SystemErrorDefault()
	}

	totalPage := (int(total) + size - 1) / size

	return &response.PageResponse[model.Link]{
		Page:      page,
		Size:      size,
		Total:     int(total),
		TotalPage: totalPage,
		List:      links,
	}, nil
}

func generateLinkID() (string, error) {
	id := make([]byte, utils.LinkIDLength)
	max := big.NewInt(int64(len(linkIDAlphabet)))
	for i := range id {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		id[i] = linkIDAlphabet[n.Int64()]
	}
	return string(id), nil
}
