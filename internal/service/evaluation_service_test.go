package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"geolink-go/internal/apperrors"
	"geolink-go/internal/model"
)

func newEvaluationService(t *testing.T) (*EvaluationService, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Evaluation{}, &model.EvaluationRun{}))
	return NewEvaluationService(db, zap.NewNop()), db
}

func TestGetRunReturnsCheckpointState(t *testing.T) {
	svc, db := newEvaluationService(t)

	require.NoError(t, db.Create(&model.EvaluationRun{
		RunID:          "44444444-4444-4444-4444-444444444444",
		LinkID:         "abc123",
		AccountID:      "acct-1",
		DestinationURL: "https://example.com",
		State:          model.RunStateAnalyzing,
		Rendered:       true,
	}).Error)

	run, err := svc.GetRun(context.Background(), "44444444-4444-4444-4444-444444444444")
	require.NoError(t, err)
	assert.Equal(t, model.RunStateAnalyzing, run.State)
	assert.True(t, run.Rendered)
}

func TestGetRunUnknownIsNotFound(t *testing.T) {
	svc, _ := newEvaluationService(t)

	_, err := svc.GetRun(context.Background(), "missing")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.Code)
}

func TestListByLinkNewestFirst(t *testing.T) {
	svc, db := newEvaluationService(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&model.Evaluation{
			ID:             fmt.Sprintf("00000000-0000-0000-0000-00000000000%d", i),
			LinkID:         "abc123",
			AccountID:      "acct-1",
			DestinationURL: "https://example.com",
			Status:         model.EvaluationStatusAvailable,
			Reason:         fmt.Sprintf("check %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	require.NoError(t, db.Create(&model.Evaluation{
		ID:             "99999999-9999-9999-9999-999999999999",
		LinkID:         "other1",
		AccountID:      "acct-1",
		DestinationURL: "https://example.org",
		Status:         model.EvaluationStatusUnknown,
	}).Error)

	page, err := svc.ListByLink(context.Background(), "abc123", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPage)
	require.Len(t, page.List, 2)
	assert.Equal(t, "check 2", page.List[0].Reason)
	assert.Equal(t, "check 1", page.List[1].Reason)
}

func TestListByLinkEmpty(t *testing.T) {
	svc, _ := newEvaluationService(t)

	page, err := svc.ListByLink(context.Background(), "abc123", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.List)
}
