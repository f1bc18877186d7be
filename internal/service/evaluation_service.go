package service

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"geolink-go/internal/apperrors"
	"geolink-go/internal/model"
	"geolink-go/response"
)

// EvaluationService reads evaluation runs and outcomes. Writes happen only
// inside the workflow.
type EvaluationService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewEvaluationService(db *gorm.DB, logger *zap.Logger) *EvaluationService {
	return &EvaluationService{
		db:     db,
		logger: logger,
	}
}

// GetRun returns the checkpoint state of one workflow run.
func (s *EvaluationService) GetRun(ctx context.Context, runID string) (*model.EvaluationRun, error) {
	var run model.EvaluationRun
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.BusinessError(http.StatusNotFound, "error.run_not_found")
		}
		s.logger.Warn("Failed to load evaluation run",
			zap.String("run_id", runID),
			zap.Error(err))
		return nil, apperrors.SystemErrorDefault()
	}
	return &run, nil
}

// ListByLink returns a page of evaluation outcomes for one link, newest
// first.
func (s *EvaluationService) ListByLink(ctx context.Context, linkID string, page, size int) (*response.PageResponse[model.Evaluation], error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}

	db := s.db.WithContext(ctx).Model(&model.Evaluation{}).Where("link_id = ?", linkID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, apperrors.SystemError("error.evaluation_count_failed")
	}

	if total == 0 {
		return &response.PageResponse[model.Evaluation]{
			Page:      page,
			Size:      size,
			Total:     0,
			TotalPage: 0,
			List:      []model.Evaluation{},
		}, nil
	}

	var evaluations []model.Evaluation
	if err := db.
		Limit(size).
		Offset((page - 1) * size).
		Order("created_at DESC").
		Find(&evaluations).Error; err != nil {
		s.logger.Warn("Failed to list evaluations",
			zap.String("link_id", linkID),
			zap.Error(err))
		return nil, apperrors.SystemErrorDefault()
	}

	totalPage := (int(total) + size - 1) / size

	return &response.PageResponse[model.Evaluation]{
		Page:      page,
		Size:      size,
		Total:     int(total),
		TotalPage: totalPage,
		List:      evaluations,
	}, nil
}
