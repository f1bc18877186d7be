// Package workflow runs the durable destination-evaluation pipeline:
// Render -> Analyze -> Persist, checkpointed per step so a crash resumes at
// the first unfinished step instead of repeating the expensive render.
package workflow

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"geolink-go/internal/apperrors"
	"geolink-go/internal/classify"
	"geolink-go/internal/dto"
	"geolink-go/internal/model"
	"geolink-go/internal/render"
	"geolink-go/pkg/retry"
)

// Per-attempt wait bound. Exceeding it is a step failure, not a hang.
const defaultStepTimeout = 60 * time.Second

// Orchestrator drives evaluation runs. Instances are independent: no two
// steps of one run execute concurrently, while separate runs (even for the
// same link) proceed fully in parallel and may append independent rows.
type Orchestrator struct {
	db         *gorm.DB
	renderer   render.Renderer
	classifier classify.Classifier
	logger     *zap.Logger
	validate   *validator.Validate

	retryCfg    retry.Config
	stepTimeout time.Duration
}

func NewOrchestrator(db *gorm.DB, renderer render.Renderer, classifier classify.Classifier, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		db:          db,
		renderer:    renderer,
		classifier:  classifier,
		logger:      logger,
		validate:    validator.New(),
		retryCfg:    retry.DefaultConfig(),
		stepTimeout: defaultStepTimeout,
	}
}

// WithRetryConfig overrides the per-step retry policy.
func (o *Orchestrator) WithRetryConfig(cfg retry.Config) *Orchestrator {
	o.retryCfg = cfg
	return o
}

// WithStepTimeout overrides the per-attempt wait bound.
func (o *Orchestrator) WithStepTimeout(d time.Duration) *Orchestrator {
	o.stepTimeout = d
	return o
}

// Start validates the trigger payload and creates the checkpoint row in the
// initial Rendering state. The payload is strongly typed: a missing or
// misnamed field fails loudly here instead of being treated as absent.
func (o *Orchestrator) Start(ctx context.Context, trigger dto.EvaluationTrigger) (*model.EvaluationRun, error) {
	if err := o.validate.Struct(&trigger); err != nil {
		return nil, apperrors.InvalidTriggerPayloadError(err)
	}

	run := &model.EvaluationRun{
		RunID:          uuid.NewString(),
		LinkID:         trigger.LinkID,
		AccountID:      trigger.AccountID,
		DestinationURL: trigger.DestinationURL,
		State:          model.RunStateRendering,
	}

	if err := o.db.WithContext(ctx).Create(run).Error; err != nil {
		o.logger.Error("Failed to create evaluation run",
			zap.String("link_id", trigger.LinkID),
			zap.Error(err))
		return nil, apperrors.SystemErrorDefault()
	}

	return run, nil
}

// Execute advances a run from its current checkpoint to a terminal state.
// Completed steps are skipped on re-entry.
func (o *Orchestrator) Execute(ctx context.Context, run *model.EvaluationRun) error {
	if run.Terminal() {
		return nil
	}

	if !run.Rendered {
		if err := o.renderStep(ctx, run); err != nil {
			return o.fail(ctx, run, model.StepRender, err)
		}
	}

	if run.Status == "" {
		if err := o.analyzeStep(ctx, run); err != nil {
			return o.fail(ctx, run, model.StepAnalyze, err)
		}
	}

	if run.EvaluationID == "" {
		if err := o.persistStep(ctx, run); err != nil {
			return o.fail(ctx, run, model.StepPersist, err)
		}
	}

	run.State = model.RunStateCompleted
	if err := o.checkpoint(ctx, run); err != nil {
		return err
	}

	o.logger.Info("Evaluation run completed",
		zap.String("run_id", run.RunID),
		zap.String("link_id", run.LinkID),
		zap.String("status", run.Status),
		zap.String("evaluation_id", run.EvaluationID))
	return nil
}

// Resume loads a run and continues it. Terminal runs are left alone; a
// Failed run needs a fresh trigger, never an automatic restart.
func (o *Orchestrator) Resume(ctx context.Context, runID string) error {
	var run model.EvaluationRun
	if err := o.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error; err != nil {
		return err
	}
	return o.Execute(ctx, &run)
}

// ResumeStranded continues non-terminal runs that have not checkpointed
// within staleAfter, picking them up after a crash mid-pipeline.
func (o *Orchestrator) ResumeStranded(ctx context.Context, staleAfter time.Duration) {
	var runs []model.EvaluationRun
	cutoff := time.Now().Add(-staleAfter)
	err := o.db.WithContext(ctx).
		Where("state NOT IN ?", []string{model.RunStateCompleted, model.RunStateFailed}).
		Where("updated_at < ?", cutoff).
		Find(&runs).Error
	if err != nil {
		o.logger.Error("Failed to list stranded evaluation runs", zap.Error(err))
		return
	}

	for i := range runs {
		run := runs[i]
		o.logger.Info("Resuming stranded evaluation run",
			zap.String("run_id", run.RunID),
			zap.String("state", run.State))
		if err := o.Execute(ctx, &run); err != nil {
			o.logger.Warn("Stranded evaluation run did not complete",
				zap.String("run_id", run.RunID),
				zap.Error(err))
		}
	}
}

func (o *Orchestrator) renderStep(ctx context.Context, run *model.EvaluationRun) error {
	var page *render.Page
	err := retry.Do(ctx, o.retryCfg, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
		defer cancel()

		rendered, renderErr := o.renderer.Render(attemptCtx, run.DestinationURL)
		if renderErr != nil {
			return renderErr
		}
		page = rendered
		return nil
	})
	if err != nil {
		return err
	}

	run.RenderedText = page.BodyText
	run.Rendered = true
	run.State = model.RunStateAnalyzing
	return o.checkpoint(ctx, run)
}

func (o *Orchestrator) analyzeStep(ctx context.Context, run *model.EvaluationRun) error {
	var verdict *classify.Verdict
	err := retry.Do(ctx, o.retryCfg, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
		defer cancel()

		// Stateless and idempotent for identical input, so retries are safe.
		v, classifyErr := o.classifier.Classify(attemptCtx, run.RenderedText)
		if classifyErr != nil {
			return classifyErr
		}
		verdict = v
		return nil
	})
	if err != nil {
		return err
	}

	run.Status = verdict.Status
	run.Reason = verdict.Reason
	run.State = model.RunStatePersisting
	return o.checkpoint(ctx, run)
}

func (o *Orchestrator) persistStep(ctx context.Context, run *model.EvaluationRun) error {
	var evaluationID string
	err := retry.Do(ctx, o.retryCfg, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
		defer cancel()

		// A fresh identifier per attempt: a retry after an ambiguous success
		// can leave more than one row for the same logical run. Known
		// limitation, tolerated because evaluations are append-only.
		evaluation := model.Evaluation{
			ID:             uuid.NewString(),
			LinkID:         run.LinkID,
			AccountID:      run.AccountID,
			DestinationURL: run.DestinationURL,
			Status:         run.Status,
			Reason:         run.Reason,
		}
		if insertErr := o.db.WithContext(attemptCtx).Create(&evaluation).Error; insertErr != nil {
			return insertErr
		}
		evaluationID = evaluation.ID
		return nil
	})
	if err != nil {
		return err
	}

	run.EvaluationID = evaluationID
	return o.checkpoint(ctx, run)
}

// fail records the terminal failure with the step that exhausted its
// retries. The orchestrator never auto-retries a failed run.
func (o *Orchestrator) fail(ctx context.Context, run *model.EvaluationRun, step string, cause error) error {
	run.State = model.RunStateFailed
	run.FailedStep = step

	if err := o.checkpoint(ctx, run); err != nil {
		o.logger.Error("Failed to record evaluation run failure",
			zap.String("run_id", run.RunID),
			zap.Error(err))
	}

	o.logger.Warn("Evaluation run failed",
		zap.String("run_id", run.RunID),
		zap.String("link_id", run.LinkID),
		zap.String("failed_step", step),
		zap.Error(cause))
	return cause
}

func (o *Orchestrator) checkpoint(ctx context.Context, run *model.EvaluationRun) error {
	return o.db.WithContext(ctx).Save(run).Error
}
