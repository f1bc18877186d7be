package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"geolink-go/internal/cache"
	"geolink-go/internal/classify"
	"geolink-go/internal/middleware"
	"geolink-go/internal/model"
	"geolink-go/internal/queue"
	"geolink-go/internal/render"
	"geolink-go/internal/service"
	"geolink-go/internal/workflow"
)

type stubRenderer struct{}

func (stubRenderer) Render(ctx context.Context, url string) (*render.Page, error) {
	return &render.Page{BodyText: "rendered body", HTML: "<html></html>"}, nil
}

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, pageText string) (*classify.Verdict, error) {
	return &classify.Verdict{Status: model.EvaluationStatusAvailable, Reason: "live product page"}, nil
}

type apiFixture struct {
	router *gin.Engine
	db     *gorm.DB
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	require.NoError(t, db.AutoMigrate(
		&model.Link{}, &model.LinkClick{},
		&model.Evaluation{}, &model.EvaluationRun{},
	))

	logger := zap.NewNop()
	linkCache := cache.NewLinkCache(pool, logger, 0)
	publisher := queue.NewPublisher(pool, logger)
	redirectService := service.NewRedirectService(db, linkCache, publisher, logger)
	evaluationService := service.NewEvaluationService(db, logger)
	orchestrator := workflow.NewOrchestrator(db, stubRenderer{}, stubClassifier{}, logger)

	redirectHandler := NewRedirectHandler(redirectService, "CF-IPCountry")
	evaluationHandler := NewEvaluationHandler(orchestrator, evaluationService, logger)

	r := gin.New()
	r.Use(middleware.GlobalErrorMiddleware())

	api := r.Group("/api")
	{
		api.POST("/evaluations", evaluationHandler.Trigger)
		api.GET("/evaluations/:runId", evaluationHandler.GetRun)
	}

	r.Use(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		redirectHandler.Redirect(c)
	})

	return &apiFixture{router: r, db: db}
}

func (f *apiFixture) seedLink(t *testing.T) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.Link{
		LinkID:    "abc123",
		AccountID: "acct-1",
		Name:      "Launch page",
		Destinations: map[string]string{
			"default": "https://example.com",
			"US":      "https://example.com/us",
			"FR":      "https://example.fr",
		},
	}).Error)
}

func (f *apiFixture) get(path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRedirectUsesCountryHeader(t *testing.T) {
	f := newAPIFixture(t)
	f.seedLink(t)

	w := f.get("/abc123", map[string]string{"CF-IPCountry": "US"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/us", w.Header().Get("Location"))

	w = f.get("/abc123", map[string]string{"CF-IPCountry": "FR"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.fr", w.Header().Get("Location"))
}

func TestRedirectWithoutCountryFallsBackToDefault(t *testing.T) {
	f := newAPIFixture(t)
	f.seedLink(t)

	w := f.get("/abc123", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Location"))
}

func TestRedirectIsNotCacheable(t *testing.T) {
	f := newAPIFixture(t)
	f.seedLink(t)

	w := f.get("/abc123", map[string]string{"CF-IPCountry": "US"})
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
}

func TestRedirectUnknownLinkIs404(t *testing.T) {
	f := newAPIFixture(t)
	f.seedLink(t)

	w := f.get("/zzz999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerEvaluationAccepted(t *testing.T) {
	f := newAPIFixture(t)
	f.seedLink(t)

	w := f.postJSON("/api/evaluations",
		`{"linkId":"abc123","destinationUrl":"https://example.com/us","accountId":"acct-1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var envelope struct {
		Data struct {
			RunID string `json:"runId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.RunID)

	// The run executes off the request; with stub steps it completes quickly.
	assert.Eventually(t, func() bool {
		var run model.EvaluationRun
		if err := f.db.Where("run_id = ?", envelope.Data.RunID).First(&run).Error; err != nil {
			return false
		}
		return run.State == model.RunStateCompleted
	}, 2*time.Second, 20*time.Millisecond)
}

func TestTriggerEvaluationRejectsMissingFields(t *testing.T) {
	f := newAPIFixture(t)

	w := f.postJSON("/api/evaluations", `{"linkId":"abc123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, f.db.Model(&model.EvaluationRun{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTriggerEvaluationRejectsMalformedJSON(t *testing.T) {
	f := newAPIFixture(t)

	w := f.postJSON("/api/evaluations", `{"linkId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRunUnknownIs404(t *testing.T) {
	f := newAPIFixture(t)

	w := f.get("/api/evaluations/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
